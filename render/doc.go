// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render is the deferred-rendering core of vbuf.
//
// Drawing does not touch pixels. Every draw call appends a command to a
// render buffer, and a buffer that samples another buffer (an image brush,
// a clip mask, a stroke or shadow source) records a dependency on it. At
// the end of the frame the Renderer resolves the dependency graph in waves:
// each wave packs the buffers whose dependencies are complete into a
// fixed-size scratch surface, renders them in one pass per scratch layer,
// and blits the results into a sparse tiled atlas.
//
// # Frame lifecycle
//
//	r, _ := render.NewRenderer()
//	r.Begin()
//	b, _ := r.CreateImage(render.NewGroup(render.NewRectGeometry(render.NewRect(0, 0, 64, 64), 1, 0)))
//	red, _ := r.CreateColor(color.RGBA{R: 255, A: 255})
//	b.Draw(render.Draw{Shader: render.ShaderSolid, Item: red, Box: render.NewRect(8, 8, 16, 16)})
//	stats, _ := r.End()
//
// Buffers move through four states: Recording, Finished, Scheduled and
// Rendered. Finishing a buffer finishes everything it depends on, so the
// graph is acyclic by construction. End finishes every buffer that is still
// recording. Handles from a frame are rejected with ErrStaleBuffer once the
// next frame begins.
//
// # Sparse backing
//
// When a buffer is finished its backing image is sized from its geometry
// and every tile is classified against the geometry and the boxes of the
// queued commands. Tiles that no command touches get no storage. Buffers
// larger than the configured maximum render size are split into tile-aligned
// sub-images that render separately and are stitched back by sharing tiles.
//
// # Clips
//
// A ClipElement is a mask image used as a clip region. CombineClip splits a
// new fill against an existing element into clip-in and clip-out elements
// and classifies every tile of the fill into one of six classes, which
// Composite uses to pick flat fills, mask tiles or dual-mask tiles.
//
// Resource exhaustion never fails a frame: a buffer whose tiles cannot be
// allocated is marked failed, reads as transparent, and still unblocks the
// buffers that depend on it.
//
// A Renderer is not safe for concurrent use.
package render
