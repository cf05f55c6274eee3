// Package peoplecounter implements a people counter as a Viam vision service
// This file contains methods that are useful for filtering out detections.
package peoplecounter

import (
	objdet "go.viam.com/rdk/vision/objectdetection"
)

// NewAdvancedFilter returns a Detections->Detections filtering method to remove
// detections that do not have a class name in chosenLabels and/or do not have the
// associated minimum confidence. An empty input map will return all detections.
// Input chosenLabels is the map with <"class_name": confidence> key-value pairs.
func NewAdvancedFilter(chosenLabels map[string]float64) objdet.Postprocessor {
	return func(detections []objdet.Detection) []objdet.Detection {
		// If it's empty, return the input.
		if len(chosenLabels) < 1 {
			return detections
		}
		out := make([]objdet.Detection, 0, len(detections))
		for _, d := range detections {
			minConf, ok := chosenLabels[baseLabel(d.Label())]
			if ok && d.Score() > minConf {
				out = append(out, d)
			}
		}
		return out
	}
}

// FilterDetections keeps the chosen classes and drops anything scored under conf.
func FilterDetections(chosenLabels map[string]float64, dets []objdet.Detection, conf float64) []objdet.Detection {
	firstPass := NewAdvancedFilter(chosenLabels)(dets)
	return objdet.NewScoreFilter(conf)(firstPass)
}
