package render

import "fmt"

// Stats describes the work done during one frame.
type Stats struct {
	Frame uint64

	BuffersCreated  int
	BuffersRendered int
	Draws           int

	// Waves is the number of scheduler waves.
	Waves int
	// ScratchLayers is the largest number of scratch layers used by a wave.
	ScratchLayers int
	// ShadowLayers is the largest number of shadow rows used by a wave.
	ShadowLayers int

	// TilesBacked and TilesSkipped count backing tiles with and without
	// storage. PixelsSkipped is the area of the skipped tiles.
	TilesBacked   int
	TilesSkipped  int
	PixelsSkipped int
	// TilesBlitted counts tiles copied from scratch surfaces into the atlas.
	TilesBlitted int
	// ImagesReclaimed counts backing images released once every reader
	// had rendered.
	ImagesReclaimed int

	// Splits counts sub-images created for oversized buffers.
	Splits int
	// CommandsCulled counts opaque commands removed by snapshots.
	CommandsCulled int

	AllocationFailures int
	PassFailures       int

	// AtlasTilesInUse is the number of atlas slots held by live images and
	// AtlasBytesInUse the pixel storage behind them.
	AtlasTilesInUse int
	AtlasBytesInUse int
}

// String returns a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("frame %d: %d/%d buffers in %d waves, %d draws, tiles %d backed %d skipped %d blitted, %d failures",
		s.Frame, s.BuffersRendered, s.BuffersCreated, s.Waves, s.Draws,
		s.TilesBacked, s.TilesSkipped, s.TilesBlitted, s.AllocationFailures)
}
