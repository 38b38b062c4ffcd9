// Command vbdemo builds a frame of dependent render buffers, renders it on
// the software backend and prints the frame statistics.
package main

import (
	"flag"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/vbuf"
	"github.com/gogpu/vbuf/render"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML renderer configuration")
		buffers    = flag.Int("buffers", 8, "independent layers composited into the surface")
		depth      = flag.Int("depth", 3, "length of the dependency chain behind each layer")
		size       = flag.Int("size", 512, "surface size in pixels")
		output     = flag.String("output", "", "write the surface to this PNG file")
		verbose    = flag.Bool("v", false, "log scheduling details")
	)
	flag.Parse()

	if *verbose {
		vbuf.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := vbuf.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = vbuf.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	r, err := render.NewRenderer(render.WithConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer r.Close()

	surface := render.NewImageTarget(*size, *size)
	if err := drawFrame(r, surface, *buffers, *depth, float64(*size)); err != nil {
		log.Fatalf("Failed to build frame: %v", err)
	}
	stats, err := r.End()
	if err != nil {
		log.Fatalf("Failed to render frame: %v", err)
	}

	log.Println(stats)
	log.Printf("scratch layers %d, splits %d, pixels skipped %d, images reclaimed %d",
		stats.ScratchLayers, stats.Splits, stats.PixelsSkipped, stats.ImagesReclaimed)

	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to create output: %v", err)
		}
		defer f.Close()
		if err := png.Encode(f, surface.Image()); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Surface saved to %s", *output)
	}
}

// drawFrame records n layers laid out in a grid. Each layer sits on top of
// a chain of depth buffers, every link copying the one before it and
// adding a band of its own.
func drawFrame(r *render.Renderer, surface render.Target, n, depth int, size float64) error {
	if err := r.Begin(); err != nil {
		return err
	}
	screen, err := r.CreateRenderTarget(surface, render.WithLabel("surface"))
	if err != nil {
		return err
	}
	bg, err := r.CreateColor(color.RGBA{R: 0x20, G: 0x20, B: 0x30, A: 0xff})
	if err != nil {
		return err
	}
	if err := screen.Draw(render.Draw{Shader: render.ShaderSolid, Blend: render.BlendOpaque, Item: bg, Box: render.NewRect(0, 0, size, size)}); err != nil {
		return err
	}

	cols := 1
	for cols*cols < n {
		cols++
	}
	cell := size / float64(cols)
	for i := range n {
		layer, err := chain(r, i, depth, cell)
		if err != nil {
			return err
		}
		x, y := float64(i%cols)*cell, float64(i/cols)*cell
		if err := screen.Draw(render.Draw{Shader: render.ShaderImage, Source: layer, Box: render.NewRect(x, y, cell, cell)}); err != nil {
			return err
		}
	}
	return nil
}

func chain(r *render.Renderer, i, depth int, cell float64) (render.Buffer, error) {
	g := render.NewGroup(render.NewRectGeometry(render.NewRect(0, 0, cell, cell), 1, 0))
	var prev render.Buffer
	for d := range max(depth, 1) {
		b, err := r.CreateImage(g)
		if err != nil {
			return render.Buffer{}, err
		}
		if !prev.IsZero() {
			if err := b.Draw(render.Draw{Shader: render.ShaderImage, Source: prev, Box: render.NewRect(0, 0, cell, cell)}); err != nil {
				return render.Buffer{}, err
			}
		}
		c, err := r.CreateColor(color.RGBA{
			R: uint8(40 * (i % 6)),
			G: uint8(255 - 30*(d%8)),
			B: uint8(60 * (d % 4)),
			A: 0xff,
		})
		if err != nil {
			return render.Buffer{}, err
		}
		band := cell / float64(depth+1)
		if err := b.Draw(render.Draw{Shader: render.ShaderSolid, Item: c, Box: render.NewRect(0, float64(d)*band, cell, band)}); err != nil {
			return render.Buffer{}, err
		}
		if err := b.Finish(); err != nil {
			return render.Buffer{}, err
		}
		prev = b
	}
	return prev, nil
}
