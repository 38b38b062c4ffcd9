package render

import "errors"

// Errors returned by the render package. They report misuse of the API;
// the call that returns one has no effect.
var (
	// ErrFrameActive is returned by Begin while a frame is open.
	ErrFrameActive = errors.New("render: frame already active")

	// ErrNoFrame is returned by calls that need an open frame.
	ErrNoFrame = errors.New("render: no active frame")

	// ErrStaleBuffer is returned for buffers of a previous frame or the
	// zero Buffer.
	ErrStaleBuffer = errors.New("render: stale buffer")

	// ErrStaleHandle is returned for item data and clip handles that were
	// released or belong to a previous frame.
	ErrStaleHandle = errors.New("render: stale handle")

	// ErrBufferFinished is returned when a finished buffer is modified.
	ErrBufferFinished = errors.New("render: buffer already finished")

	// ErrUnfinishedDependency is returned when a buffer would read a
	// buffer that is still recording.
	ErrUnfinishedDependency = errors.New("render: dependency not finished")

	// ErrDependencyCycle is returned by AddSiblingDependency when the
	// edge would close a cycle.
	ErrDependencyCycle = errors.New("render: dependency cycle")

	// ErrNotSampleable is returned when a render target is used as a
	// dependency.
	ErrNotSampleable = errors.New("render: render targets cannot be sampled")

	// ErrNotDrawable is returned for draws into buffers that only stitch
	// other buffers together.
	ErrNotDrawable = errors.New("render: buffer does not accept draws")

	// ErrNotFinished is returned when the backing image of a buffer that
	// is still recording is requested.
	ErrNotFinished = errors.New("render: buffer not finished")

	// ErrImageReleased is returned when the backing image was already
	// reclaimed.
	ErrImageReleased = errors.New("render: image released")

	// ErrInvalidSize is returned for shadow maps longer than the shadow
	// scratch surface and for non-positive sizes.
	ErrInvalidSize = errors.New("render: invalid size")
)
