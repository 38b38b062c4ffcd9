package render

import (
	"image"

	"github.com/gogpu/vbuf"
)

// Option configures a Renderer during creation.
//
// Example:
//
//	cfg, _ := vbuf.LoadConfig("vbuf.toml")
//	r, err := render.NewRenderer(render.WithConfig(cfg))
type Option func(*options)

type options struct {
	cfg     vbuf.Config
	atlas   *Atlas
	backend Backend
}

func defaultOptions() options {
	return options{cfg: vbuf.DefaultConfig()}
}

// WithConfig sets the renderer tuning. The config is validated by
// NewRenderer.
func WithConfig(cfg vbuf.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithAtlas makes the renderer allocate backing images from a. By default
// a private atlas with the configured tile budget is used.
func WithAtlas(a *Atlas) Option {
	return func(o *options) {
		o.atlas = a
	}
}

// WithBackend sets the backend that executes passes. By default passes run
// on the software backend.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// BufferOption configures a buffer during creation.
type BufferOption func(*bufferOptions)

type bufferOptions struct {
	label string
	full  []image.Point
	empty []image.Point
	keep  bool
}

// WithLabel names the buffer in logs and pass labels.
func WithLabel(label string) BufferOption {
	return func(o *bufferOptions) {
		o.label = label
	}
}

// WithForcedTiles marks tiles of an image buffer as known full or known
// empty. Full tiles read as opaque white without storage; empty tiles get
// no storage even if commands touch them.
func WithForcedTiles(full, empty []image.Point) BufferOption {
	return func(o *bufferOptions) {
		o.full = full
		o.empty = empty
	}
}

// WithKeepContents makes a render target keep its previous pixels instead
// of being cleared before its pass.
func WithKeepContents() BufferOption {
	return func(o *bufferOptions) {
		o.keep = true
	}
}
