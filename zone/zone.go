// Package zone defines polygonal regions of a camera frame and tests whether points fall in them.
package zone

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

var (
	// ErrEmptyZone is returned when a zone has no polygons.
	ErrEmptyZone = errors.New("zone has no polygons")
	// ErrDegeneratePolygon is returned for polygons with fewer than 3 vertices or no area.
	ErrDegeneratePolygon = errors.New("degenerate polygon")
)

// edgeEpsilon is how far, in pixels, a point may sit from an edge and still be on it.
const edgeEpsilon = 1e-9

// Polygon is a simple polygon given by its vertices in drawing order. It is implicitly closed.
type Polygon []r2.Point

// Zone is a named region made of one or more polygons. A point is in the zone when it is in any
// of them, boundaries included. A Zone never changes after New.
type Zone struct {
	name     string
	polygons []Polygon
	bounds   []r2.Rect
}

// New validates the polygons and returns a zone covering their union.
func New(name string, polygons ...Polygon) (*Zone, error) {
	if len(polygons) == 0 {
		return nil, errors.Wrapf(ErrEmptyZone, "zone %q", name)
	}
	z := &Zone{
		name:     name,
		polygons: make([]Polygon, 0, len(polygons)),
		bounds:   make([]r2.Rect, 0, len(polygons)),
	}
	for i, p := range polygons {
		if len(p) < 3 {
			return nil, errors.Wrapf(ErrDegeneratePolygon, "zone %q polygon %d has %d vertices, need at least 3", name, i, len(p))
		}
		if p.area() == 0 {
			return nil, errors.Wrapf(ErrDegeneratePolygon, "zone %q polygon %d has no area", name, i)
		}
		cp := make(Polygon, len(p))
		copy(cp, p)
		z.polygons = append(z.polygons, cp)
		z.bounds = append(z.bounds, r2.RectFromPoints(cp...))
	}
	return z, nil
}

// FromConfig builds a zone from its attribute form: a list of polygons, each a list of [x, y].
func FromConfig(name string, raw [][][2]float64) (*Zone, error) {
	polygons := make([]Polygon, 0, len(raw))
	for _, rawPoly := range raw {
		p := make(Polygon, 0, len(rawPoly))
		for _, v := range rawPoly {
			if math.IsNaN(v[0]) || math.IsNaN(v[1]) || math.IsInf(v[0], 0) || math.IsInf(v[1], 0) {
				return nil, errors.Errorf("zone %q has a non-finite vertex %v", name, v)
			}
			p = append(p, r2.Point{X: v[0], Y: v[1]})
		}
		polygons = append(polygons, p)
	}
	return New(name, polygons...)
}

// Name returns the zone's name.
func (z *Zone) Name() string {
	return z.name
}

// Polygons returns a copy of the zone's polygons.
func (z *Zone) Polygons() []Polygon {
	out := make([]Polygon, len(z.polygons))
	for i, p := range z.polygons {
		out[i] = append(Polygon(nil), p...)
	}
	return out
}

// Contains reports whether p lies inside or on the boundary of any of the zone's polygons.
func (z *Zone) Contains(p r2.Point) bool {
	for i, poly := range z.polygons {
		if !z.bounds[i].ContainsPoint(p) {
			continue
		}
		if poly.onBoundary(p) || poly.encloses(p) {
			return true
		}
	}
	return false
}

// ContainsImagePoint is Contains for pixel coordinates.
func (z *Zone) ContainsImagePoint(p image.Point) bool {
	return z.Contains(r2.Point{X: float64(p.X), Y: float64(p.Y)})
}

// area returns the absolute shoelace area.
func (p Polygon) area() float64 {
	var sum float64
	for i := range p {
		sum += p[i].Cross(p[(i+1)%len(p)])
	}
	return math.Abs(sum) / 2
}

func (p Polygon) onBoundary(pt r2.Point) bool {
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		if math.Abs(b.Sub(a).Cross(pt.Sub(a))) > edgeEpsilon {
			continue
		}
		if r2.RectFromPoints(a, b).ContainsPoint(pt) {
			return true
		}
	}
	return false
}

// encloses is the even-odd ray casting test. Points on edges are handled by onBoundary.
func (p Polygon) encloses(pt r2.Point) bool {
	inside := false
	j := len(p) - 1
	for i := range p {
		vi, vj := p[i], p[j]
		if (vi.Y > pt.Y) != (vj.Y > pt.Y) &&
			pt.X < (vj.X-vi.X)*(pt.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}
