// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend defines the boundary between the render-buffer core and
// the code that executes draws, and provides a software implementation.
//
// The core opens one pass per scratch layer or render target, issues the
// draws of every buffer packed into it, and closes the pass. A Backend never
// influences scheduling; draws are fire-and-forget.
package backend

import (
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/vbuf/internal/command"
	"github.com/gogpu/vbuf/internal/geom"
	"github.com/gogpu/vbuf/internal/shader"
)

// Target is a surface a pass renders into.
type Target interface {
	Size() image.Point
	Format() gputypes.TextureFormat
}

// Pass describes one render pass.
type Pass struct {
	Target Target
	// Shaders is the consolidated shader set of every draw in the pass.
	Shaders *shader.UberKey
	// Clear clears color and depth before the first draw.
	Clear bool
	// Label names the pass in logs and debuggers.
	Label string
}

// DrawData is one draw in target coordinates.
type DrawData struct {
	// Z is the depth token of the command.
	Z        uint32
	Shader   shader.ID
	Blend    command.BlendMode
	Values   []float32
	Vertices command.VertexRange

	// Box is the area covered by the vertices, in target pixels.
	Box geom.Rect
	// ClipWindow is the scissor rectangle in target pixels.
	ClipWindow image.Rectangle

	// Source and Mask are sampled images. SourceMap and MaskMap take a
	// point in target pixels to the matching point of the image; target
	// pixel p reads the image pixel under the map of its center.
	Source    image.Image
	SourceMap geom.Transform
	Mask      image.Image
	MaskMap   geom.Transform
}

// Backend executes passes.
type Backend interface {
	// CreateUberShadingKey returns an empty shader set.
	CreateUberShadingKey() *shader.UberKey
	// AddShader adds a shader to a set.
	AddShader(key *shader.UberKey, id shader.ID) error
	// BeginPass opens a pass. Draws go to its target until EndPass.
	BeginPass(p Pass) error
	// DrawRenderData issues one draw.
	DrawRenderData(d DrawData)
	// EndPass closes the current pass.
	EndPass() error
}
