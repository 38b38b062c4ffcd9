package geom

import "math"

// HalfPlane is the set of points with A*x + B*y + C >= 0.
type HalfPlane struct {
	A, B, C float64
}

// Eval returns the signed value of the plane equation at p.
func (h HalfPlane) Eval(p Point) float64 {
	return h.A*p.X + h.B*p.Y + h.C
}

// Inside reports whether p lies in the closed half-plane.
func (h HalfPlane) Inside(p Point) bool {
	return h.Eval(p) >= 0
}

// SignedArea returns twice the signed area of the polygon; positive when the
// vertices wind clockwise in y-down coordinates.
func SignedArea(poly []Point) float64 {
	var sum float64
	n := len(poly)
	for i := range n {
		p, q := poly[i], poly[(i+1)%n]
		sum += p.X*q.Y - q.X*p.Y
	}
	return sum
}

// PolygonArea returns the unsigned area of a simple polygon.
func PolygonArea(poly []Point) float64 {
	return math.Abs(SignedArea(poly)) / 2
}

// ConvexPlanes returns the inward-facing half-planes bounding a convex
// polygon. Degenerate edges are skipped. Returns nil for fewer than three
// vertices or zero area.
func ConvexPlanes(poly []Point) []HalfPlane {
	if len(poly) < 3 {
		return nil
	}
	orient := SignedArea(poly)
	if orient == 0 {
		return nil
	}
	sign := 1.0
	if orient < 0 {
		sign = -1
	}

	planes := make([]HalfPlane, 0, len(poly))
	n := len(poly)
	for i := range n {
		p, q := poly[i], poly[(i+1)%n]
		d := q.Sub(p)
		if d.X == 0 && d.Y == 0 {
			continue
		}
		// Interior is to the right of each edge for clockwise winding.
		a := -d.Y * sign
		b := d.X * sign
		planes = append(planes, HalfPlane{A: a, B: b, C: -(a*p.X + b*p.Y)})
	}
	return planes
}

// ClipPolygon clips a convex polygon against a half-plane using one
// Sutherland-Hodgman pass. The result is appended to dst[:0].
func ClipPolygon(dst, poly []Point, h HalfPlane) []Point {
	dst = dst[:0]
	n := len(poly)
	if n == 0 {
		return dst
	}
	prev := poly[n-1]
	prevD := h.Eval(prev)
	for _, cur := range poly {
		curD := h.Eval(cur)
		switch {
		case curD >= 0 && prevD >= 0:
			dst = append(dst, cur)
		case curD >= 0 && prevD < 0:
			dst = append(dst, prev.Lerp(cur, prevD/(prevD-curD)), cur)
		case curD < 0 && prevD >= 0:
			dst = append(dst, prev.Lerp(cur, prevD/(prevD-curD)))
		}
		prev, prevD = cur, curD
	}
	return dst
}

// ClipRect clips the rectangle r against all planes and returns the
// resulting convex polygon. The scratch slices are reused between calls.
func ClipRect(r Rect, planes []HalfPlane, scratch *[2][]Point) []Point {
	corners := r.Corners()
	cur := append(scratch[0][:0], corners[:]...)
	next := scratch[1]
	for _, h := range planes {
		next = ClipPolygon(next, cur, h)
		cur, next = next, cur
		if len(cur) < 3 {
			break
		}
	}
	scratch[0], scratch[1] = cur, next
	return cur
}

// RectHitsPlanes reports whether r and the intersection of the half-planes
// share a region of positive area.
func RectHitsPlanes(r Rect, planes []HalfPlane) bool {
	if r.IsEmpty() {
		return false
	}
	if len(planes) == 0 {
		return true
	}
	var scratch [2][]Point
	poly := ClipRect(r, planes, &scratch)
	return len(poly) >= 3 && PolygonArea(poly) > 0
}
