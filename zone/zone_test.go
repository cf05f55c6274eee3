package zone

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func square(x0, y0, x1, y1 float64) Polygon {
	return Polygon{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func TestNewValidation(t *testing.T) {
	_, err := New("empty")
	test.That(t, errors.Is(err, ErrEmptyZone), test.ShouldBeTrue)

	_, err = New("line", Polygon{{X: 0, Y: 0}, {X: 10, Y: 10}})
	test.That(t, errors.Is(err, ErrDegeneratePolygon), test.ShouldBeTrue)

	_, err = New("collinear", Polygon{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 10}})
	test.That(t, errors.Is(err, ErrDegeneratePolygon), test.ShouldBeTrue)

	_, err = New("second bad", square(0, 0, 10, 10), Polygon{})
	test.That(t, errors.Is(err, ErrDegeneratePolygon), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "polygon 1")

	z, err := New("ok", Polygon{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 8}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, z.Name(), test.ShouldEqual, "ok")
}

func TestFromConfig(t *testing.T) {
	z, err := FromConfig("area1", [][][2]float64{{{0, 100}, {640, 100}, {640, 150}, {0, 150}}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(z.Polygons()), test.ShouldEqual, 1)
	test.That(t, z.ContainsImagePoint(image.Pt(320, 120)), test.ShouldBeTrue)

	_, err = FromConfig("area2", nil)
	test.That(t, errors.Is(err, ErrEmptyZone), test.ShouldBeTrue)

	_, err = FromConfig("area2", [][][2]float64{{{0, 0}, {1, 1}}})
	test.That(t, errors.Is(err, ErrDegeneratePolygon), test.ShouldBeTrue)
}

func TestContains(t *testing.T) {
	z, err := New("band", square(0, 400, 640, 450))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, z.Contains(r2.Point{X: 320, Y: 425}), test.ShouldBeTrue)
	test.That(t, z.Contains(r2.Point{X: 320, Y: 399}), test.ShouldBeFalse)
	test.That(t, z.Contains(r2.Point{X: 641, Y: 425}), test.ShouldBeFalse)

	// edges and corners count as inside
	test.That(t, z.Contains(r2.Point{X: 320, Y: 400}), test.ShouldBeTrue)
	test.That(t, z.Contains(r2.Point{X: 320, Y: 450}), test.ShouldBeTrue)
	test.That(t, z.Contains(r2.Point{X: 0, Y: 425}), test.ShouldBeTrue)
	test.That(t, z.Contains(r2.Point{X: 640, Y: 450}), test.ShouldBeTrue)
}

func TestContainsSlantedQuad(t *testing.T) {
	// a quadrilateral clicked off-axis, as an operator would draw it
	z, err := New("door", Polygon{{X: 100, Y: 100}, {X: 300, Y: 120}, {X: 280, Y: 220}, {X: 90, Y: 200}})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, z.ContainsImagePoint(image.Pt(200, 160)), test.ShouldBeTrue)
	// on the slanted top edge
	test.That(t, z.ContainsImagePoint(image.Pt(200, 110)), test.ShouldBeTrue)
	// inside the bounding box but outside the polygon
	test.That(t, z.ContainsImagePoint(image.Pt(295, 210)), test.ShouldBeFalse)
	test.That(t, z.ContainsImagePoint(image.Pt(92, 105)), test.ShouldBeFalse)
}

func TestContainsConcave(t *testing.T) {
	// an L shape
	z, err := New("ell", Polygon{
		{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 40}, {X: 40, Y: 40}, {X: 40, Y: 100}, {X: 0, Y: 100},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, z.ContainsImagePoint(image.Pt(20, 80)), test.ShouldBeTrue)
	test.That(t, z.ContainsImagePoint(image.Pt(80, 20)), test.ShouldBeTrue)
	test.That(t, z.ContainsImagePoint(image.Pt(80, 80)), test.ShouldBeFalse)
}

func TestContainsAnyPolygon(t *testing.T) {
	z, err := New("two doors", square(0, 0, 10, 10), square(100, 100, 110, 110))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, z.ContainsImagePoint(image.Pt(5, 5)), test.ShouldBeTrue)
	test.That(t, z.ContainsImagePoint(image.Pt(105, 105)), test.ShouldBeTrue)
	test.That(t, z.ContainsImagePoint(image.Pt(50, 50)), test.ShouldBeFalse)
}

func TestZoneIsImmutable(t *testing.T) {
	p := square(0, 0, 10, 10)
	z, err := New("sq", p)
	test.That(t, err, test.ShouldBeNil)
	p[2] = r2.Point{X: 1000, Y: 1000}
	test.That(t, z.ContainsImagePoint(image.Pt(500, 500)), test.ShouldBeFalse)

	polys := z.Polygons()
	polys[0][0] = r2.Point{X: -50, Y: -50}
	test.That(t, z.ContainsImagePoint(image.Pt(-20, -20)), test.ShouldBeFalse)
}
