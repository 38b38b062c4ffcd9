package backend

import (
	"image"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// ImageTarget is a CPU image target.
type ImageTarget struct {
	img *image.RGBA
}

// NewImageTarget returns a transparent target of the given size.
func NewImageTarget(w, h int) *ImageTarget {
	return &ImageTarget{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// WrapImage returns a target drawing into img. img must have a zero origin.
func WrapImage(img *image.RGBA) *ImageTarget {
	return &ImageTarget{img: img}
}

// Size implements Target.
func (t *ImageTarget) Size() image.Point {
	return t.img.Bounds().Size()
}

// Format implements Target.
func (t *ImageTarget) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// Image returns the pixels of the target.
func (t *ImageTarget) Image() *image.RGBA {
	return t.img
}

// DeviceTarget is a render target presented through a GPU device
// provider. The software backend renders it into an offscreen frame that
// the presenter uploads.
type DeviceTarget struct {
	provider gpucontext.DeviceProvider
	frame    *image.RGBA
}

// NewDeviceTarget returns a target of the given size on provider's surface.
func NewDeviceTarget(provider gpucontext.DeviceProvider, w, h int) *DeviceTarget {
	return &DeviceTarget{
		provider: provider,
		frame:    image.NewRGBA(image.Rect(0, 0, w, h)),
	}
}

// Size implements Target.
func (t *DeviceTarget) Size() image.Point {
	return t.frame.Bounds().Size()
}

// Format returns the surface format of the provider, or RGBA8Unorm when
// the provider is headless.
func (t *DeviceTarget) Format() gputypes.TextureFormat {
	if f := t.provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		return f
	}
	return gputypes.TextureFormatRGBA8Unorm
}

// Provider returns the device provider.
func (t *DeviceTarget) Provider() gpucontext.DeviceProvider {
	return t.provider
}

// Image returns the offscreen frame.
func (t *DeviceTarget) Image() *image.RGBA {
	return t.frame
}

// Software reports whether the provider's adapter is a CPU renderer.
func (t *DeviceTarget) Software() bool {
	return t.provider.AdapterInfo().Type == gpucontext.AdapterTypeSoftware
}
