// Package vbuf is a deferred render-buffer engine for 2D compositing.
//
// # Overview
//
// vbuf sits between a 2D drawing front end and a GPU. Offscreen layers,
// clip masks, shadow maps and the final surface are all render buffers:
// draw calls queue commands, reading another buffer records a dependency,
// and the whole frame is resolved at once. Buffers render in waves into a
// shared scratch surface and land in a sparse tiled atlas, where tiles no
// command touches take no memory at all.
//
// # Quick Start
//
//	import "github.com/gogpu/vbuf/render"
//
//	r, err := render.NewRenderer()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//
//	r.Begin()
//	layer, _ := r.CreateImage(render.NewGroup(render.NewRectGeometry(render.NewRect(0, 0, 256, 256), 1, 0)))
//	// queue draws on layer, then read it from other buffers
//	stats, _ := r.End()
//
// # Configuration
//
// Scratch surface sizes, the split threshold for oversized buffers and the
// quad-tree tuning live in Config. DefaultConfig returns working values and
// LoadConfig reads overrides from a TOML file.
//
// # Logging
//
// The library is silent by default. SetLogger installs a log/slog logger;
// scheduling detail is logged at Debug and absorbed failures at Warn.
//
// # Architecture
//
// The library is organized into:
//   - render: Renderer, buffers, the wave scheduler and clip elements
//   - internal/command: command lists and the hit-detection quad-tree
//   - internal/atlas: the sparse tiled image atlas
//   - internal/pack: rectangle and interval packers for scratch surfaces
//   - internal/clip: clip geometry and the tile classification algebra
//   - internal/shader, internal/backend: shader library and pass backends
package vbuf

// Version is the current version of the library.
const Version = "0.1.0-alpha.1"
