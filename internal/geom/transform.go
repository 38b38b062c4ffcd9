package geom

// Transform is a uniform scale followed by a translation:
//
//	q = p*Scale + Translate
//
// It maps between the pixel space of a drawing and the image space of the
// surface that backs it. Scale is always positive.
type Transform struct {
	Scale     float64
	Translate Point
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Apply maps a point.
func (t Transform) Apply(p Point) Point {
	return Point{X: p.X*t.Scale + t.Translate.X, Y: p.Y*t.Scale + t.Translate.Y}
}

// ApplyRect maps a rectangle. The result is exact since the transform
// has no rotation.
func (t Transform) ApplyRect(r Rect) Rect {
	return Rect{
		X: r.X*t.Scale + t.Translate.X,
		Y: r.Y*t.Scale + t.Translate.Y,
		W: r.W * t.Scale,
		H: r.H * t.Scale,
	}
}

// ApplyPlane maps a half-plane so that a point p is inside the source plane
// exactly when Apply(p) is inside the result.
func (t Transform) ApplyPlane(h HalfPlane) HalfPlane {
	// p = (q - T) / s, so a*p.x + b*p.y + c >= 0 becomes, after scaling by s > 0,
	// a*q.x + b*q.y + (c*s - a*T.x - b*T.y) >= 0.
	return HalfPlane{
		A: h.A,
		B: h.B,
		C: h.C*t.Scale - h.A*t.Translate.X - h.B*t.Translate.Y,
	}
}

// Inverse returns the inverse transform.
func (t Transform) Inverse() Transform {
	inv := 1 / t.Scale
	return Transform{
		Scale:     inv,
		Translate: Point{X: -t.Translate.X * inv, Y: -t.Translate.Y * inv},
	}
}

// Then returns the transform that applies t first and u second.
func (t Transform) Then(u Transform) Transform {
	return Transform{
		Scale:     t.Scale * u.Scale,
		Translate: u.Apply(t.Translate),
	}
}

// Translated returns t followed by a translation of d.
func (t Transform) Translated(d Point) Transform {
	return Transform{Scale: t.Scale, Translate: t.Translate.Add(d)}
}
