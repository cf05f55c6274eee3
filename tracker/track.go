package tracker

import (
	"image"

	objdet "go.viam.com/rdk/vision/objectdetection"
)

// TrackedDetection is a detection annotated with the track ID it was assigned this frame.
type TrackedDetection struct {
	Det objdet.Detection
	ID  int
}

// Box returns the detection's bounding box.
func (td TrackedDetection) Box() image.Rectangle {
	return *td.Det.BoundingBox()
}

type track struct {
	id       int
	centroid image.Point
}

// Centroid returns the center of a box as (x + width/2, y + height/2), truncated to whole pixels.
func Centroid(r image.Rectangle) image.Point {
	return image.Pt(r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2)
}

// BoxFromXYWH builds a bounding box from its top-left corner, width and height.
func BoxFromXYWH(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}

// keepEmitted rebuilds the track list from the detections emitted this frame. Order follows
// first emission, and each id keeps the last centroid written for it in working.
func keepEmitted(emitted []TrackedDetection, working []track) []track {
	latest := make(map[int]image.Point, len(working))
	for _, tr := range working {
		latest[tr.id] = tr.centroid
	}
	seen := make(map[int]struct{}, len(emitted))
	kept := make([]track, 0, len(emitted))
	for _, td := range emitted {
		if _, ok := seen[td.ID]; ok {
			continue
		}
		seen[td.ID] = struct{}{}
		kept = append(kept, track{id: td.ID, centroid: latest[td.ID]})
	}
	return kept
}
