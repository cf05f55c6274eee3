// Package tracker implements a centroid tracker that gives detection boxes stable integer IDs
// across frames using nothing but spatial proximity.
package tracker

import (
	"image"
	"math"

	"github.com/pkg/errors"
	objdet "go.viam.com/rdk/vision/objectdetection"
)

// Strategy selects how detections are associated with existing tracks.
type Strategy string

const (
	// FirstFit gives a detection the first track, in track order, whose centroid is within the
	// distance threshold. This is the default.
	FirstFit Strategy = "first_fit"
	// Nearest solves a one-to-one assignment minimizing total centroid distance. It can assign
	// different IDs than FirstFit on crowded frames.
	Nearest Strategy = "nearest"
)

// DefaultDistanceThreshold is the maximum centroid distance, in pixels, for a detection to keep
// an existing track's ID.
var DefaultDistanceThreshold = 35.0

// Config configures a Tracker. Zero values select the defaults.
type Config struct {
	DistanceThreshold float64
	Strategy          Strategy
}

// Tracker assigns track IDs to per-frame detections. It is not safe for concurrent use;
// use one Tracker per video stream.
type Tracker struct {
	threshold float64
	strategy  Strategy
	tracks    []track
	idCount   int
	solve     func(costMtx [][]float64) ([]int, error)
}

// New returns a Tracker with no live tracks whose first ID will be 0.
func New(cfg Config) (*Tracker, error) {
	if cfg.DistanceThreshold == 0 {
		cfg.DistanceThreshold = DefaultDistanceThreshold
	}
	if cfg.DistanceThreshold < 0 || math.IsNaN(cfg.DistanceThreshold) {
		return nil, errors.Errorf("distance threshold must be positive, got %v", cfg.DistanceThreshold)
	}
	switch cfg.Strategy {
	case "":
		cfg.Strategy = FirstFit
	case FirstFit, Nearest:
	default:
		return nil, errors.Errorf("unknown match strategy %q", cfg.Strategy)
	}
	return &Tracker{
		threshold: cfg.DistanceThreshold,
		strategy:  cfg.Strategy,
		solve:     hungarian,
	}, nil
}

// Update assigns an ID to every detection, in input order, and drops every track that was not
// matched this frame. An empty input drops all tracks.
func (t *Tracker) Update(dets []objdet.Detection) []TrackedDetection {
	// the previous frame's tracks are never modified; the working list starts as a copy
	working := make([]track, len(t.tracks), len(t.tracks)+len(dets))
	copy(working, t.tracks)

	var emitted []TrackedDetection
	if t.strategy == Nearest {
		emitted, working = t.assignNearest(dets, working)
	} else {
		emitted, working = t.assignFirstFit(dets, working)
	}
	t.tracks = keepEmitted(emitted, working)
	return emitted
}

// assignFirstFit scans the working list for each detection. Matched centroids are overwritten
// and minted tracks appended, so later detections in the same frame see both.
func (t *Tracker) assignFirstFit(dets []objdet.Detection, working []track) ([]TrackedDetection, []track) {
	emitted := make([]TrackedDetection, 0, len(dets))
	for _, det := range dets {
		c := Centroid(*det.BoundingBox())
		matched := false
		for i := range working {
			if distance(c, working[i].centroid) < t.threshold {
				working[i].centroid = c
				emitted = append(emitted, TrackedDetection{Det: det, ID: working[i].id})
				matched = true
				break
			}
		}
		if !matched {
			id := t.mint()
			working = append(working, track{id: id, centroid: c})
			emitted = append(emitted, TrackedDetection{Det: det, ID: id})
		}
	}
	return emitted, working
}

func (t *Tracker) mint() int {
	id := t.idCount
	t.idCount++
	return id
}

// NextID returns the ID the next new track will get.
func (t *Tracker) NextID() int {
	return t.idCount
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	return len(t.tracks)
}

// Centroid returns the last known centroid of a live track.
func (t *Tracker) Centroid(id int) (image.Point, bool) {
	for _, tr := range t.tracks {
		if tr.id == id {
			return tr.centroid, true
		}
	}
	return image.Point{}, false
}

// IDs returns the live track IDs in matching order.
func (t *Tracker) IDs() []int {
	ids := make([]int, 0, len(t.tracks))
	for _, tr := range t.tracks {
		ids = append(ids, tr.id)
	}
	return ids
}

func distance(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
