package tracker

import (
	"image"

	hg "github.com/charles-haynes/munkres"
	objdet "go.viam.com/rdk/vision/objectdetection"
)

// unmatchable is the cost given to pairs at or beyond the distance threshold so the solver
// only picks them when it has nothing else left.
const unmatchable = 1e9

// buildCostMatrix sets up a cost matrix for the Hungarian algorithm: one row per track, one
// column per detection centroid, cost is the Euclidean distance between them.
func (t *Tracker) buildCostMatrix(tracks []track, centroids []image.Point) [][]float64 {
	costMtx := make([][]float64, len(tracks))
	for i, tr := range tracks {
		row := make([]float64, len(centroids))
		for j, c := range centroids {
			d := distance(tr.centroid, c)
			if d >= t.threshold {
				d = unmatchable
			}
			row[j] = d
		}
		costMtx[i] = row
	}
	return costMtx
}

// hungarian returns, for each row of costMtx, the column assigned to it or -1.
func hungarian(costMtx [][]float64) ([]int, error) {
	HA, err := hg.NewHungarianAlgorithm(costMtx)
	if err != nil {
		return nil, err
	}
	return HA.Execute(), nil
}

// assignNearest matches previous tracks to detections one to one, minimizing total distance.
// Detections left without a track within the threshold get new IDs in input order. If the solver
// fails the frame is assigned first-fit.
func (t *Tracker) assignNearest(dets []objdet.Detection, working []track) ([]TrackedDetection, []track) {
	centroids := make([]image.Point, len(dets))
	for i, det := range dets {
		centroids[i] = Centroid(*det.BoundingBox())
	}

	// detection index -> index into working
	owner := make(map[int]int, len(dets))
	if len(working) > 0 && len(dets) > 0 {
		costMtx := t.buildCostMatrix(working, centroids)
		matches, err := t.solve(costMtx)
		if err != nil {
			// keep identities rather than minting an ID for every detection
			return t.assignFirstFit(dets, working)
		}
		for trackIdx, detIdx := range matches {
			if detIdx < 0 || detIdx >= len(dets) || trackIdx >= len(working) {
				continue
			}
			if costMtx[trackIdx][detIdx] >= unmatchable {
				continue
			}
			owner[detIdx] = trackIdx
		}
	}

	emitted := make([]TrackedDetection, 0, len(dets))
	for i, det := range dets {
		if trackIdx, ok := owner[i]; ok {
			working[trackIdx].centroid = centroids[i]
			emitted = append(emitted, TrackedDetection{Det: det, ID: working[trackIdx].id})
			continue
		}
		id := t.mint()
		working = append(working, track{id: id, centroid: centroids[i]})
		emitted = append(emitted, TrackedDetection{Det: det, ID: id})
	}
	return emitted, working
}
