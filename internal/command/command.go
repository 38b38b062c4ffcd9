// Package command holds the draw commands queued into one render buffer.
//
// A List keeps commands in three sub-lists replayed in a fixed order:
// occluders, opaque commands and typical (blended) commands. Opaque and
// occluder commands receive increasing depth tokens; a typical command
// carries the token of the last opaque command submitted before it, so a
// GreaterEqual depth test rejects exactly the blended fragments covered by
// later opaque geometry.
//
// A quad-tree index over command bounding boxes answers "which commands
// touch this rectangle" and backs region rendering and snapshot copies.
package command

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// ShaderID identifies a registered shader.
type ShaderID uint16

// ItemRef references per-draw values (colors, parameters) owned by the
// renderer. NoItem means the shader needs no values.
type ItemRef int32

// NoItem is the ItemRef of a command without item data.
const NoItem ItemRef = -1

// VertexRange is a run of vertices produced by a tessellator.
type VertexRange struct {
	First uint32
	Count uint32
}

// IsEmpty reports whether the range holds no vertices.
func (v VertexRange) IsEmpty() bool {
	return v.Count == 0
}

// BlendMode selects how a command's output combines with the target.
type BlendMode uint8

const (
	// BlendSourceOver composites premultiplied color over the target.
	BlendSourceOver BlendMode = iota
	// BlendOpaque replaces the target; the command is opaque.
	BlendOpaque
	// BlendAlpha composites straight alpha color over the target.
	BlendAlpha
	// BlendAdditive adds source to target.
	BlendAdditive
)

// String returns the name of the blend mode.
func (b BlendMode) String() string {
	switch b {
	case BlendSourceOver:
		return "source-over"
	case BlendOpaque:
		return "opaque"
	case BlendAlpha:
		return "alpha"
	case BlendAdditive:
		return "additive"
	}
	return fmt.Sprintf("BlendMode(%d)", uint8(b))
}

// IsOpaque reports whether commands using b fully overwrite what is below.
func (b BlendMode) IsOpaque() bool {
	return b == BlendOpaque
}

// State returns the pipeline blend state for b.
func (b BlendMode) State() gputypes.BlendState {
	switch b {
	case BlendOpaque:
		return gputypes.BlendStateReplace()
	case BlendAlpha:
		return gputypes.BlendStateAlpha()
	case BlendAdditive:
		add := gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		}
		return gputypes.BlendState{Color: add, Alpha: add}
	}
	return gputypes.BlendStatePremultiplied()
}

// DepthCompare is the depth test used when replaying a List.
const DepthCompare = gputypes.CompareFunctionGreaterEqual

// Category is the sub-list a command is replayed from.
type Category uint8

const (
	// Occluder commands are opaque and cover their whole box; they are
	// replayed first so their depth rejects hidden work early.
	Occluder Category = iota
	// Opaque commands overwrite the target.
	Opaque
	// Typical commands blend and replay in submission order.
	Typical

	categoryCount
)

// String returns the name of the category.
func (c Category) String() string {
	switch c {
	case Occluder:
		return "occluder"
	case Opaque:
		return "opaque"
	case Typical:
		return "typical"
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// DrawCommand is one queued draw.
type DrawCommand struct {
	Shader   ShaderID
	Item     ItemRef
	Vertices VertexRange
	Blend    BlendMode

	// Occluder marks an opaque command known to cover its whole box.
	Occluder bool

	// Z is the depth token assigned by List.Add.
	Z uint32
}

// Category returns the sub-list cmd belongs to.
func (cmd DrawCommand) Category() Category {
	switch {
	case !cmd.Blend.IsOpaque():
		return Typical
	case cmd.Occluder:
		return Occluder
	}
	return Opaque
}
