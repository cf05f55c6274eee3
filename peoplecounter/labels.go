// Package peoplecounter implements a people counter as a Viam vision service.
// This file contains methods that handle the label (or name) of a detection.
// Tracked detections are labeled classname_ID, followed by _state once the track has touched a zone,
// e.g. person_3_entered.
package peoplecounter

import (
	"strconv"
	"strings"

	objdet "go.viam.com/rdk/vision/objectdetection"

	"github.com/viam-modules/people-counting/counter"
)

// ReplaceLabel replaces the detection with an almost identical detection (new label)
func ReplaceLabel(det objdet.Detection, label string) objdet.Detection {
	return objdet.NewDetection(*det.BoundingBox(), det.Score(), label)
}

func baseLabel(label string) string {
	return strings.ToLower(strings.Split(label, "_")[0])
}

// TrackLabel names a tracked detection after its class, track ID and crossing state.
func TrackLabel(class string, id int, st counter.State) string {
	label := baseLabel(class) + "_" + strconv.Itoa(id)
	if st != counter.StateNone {
		label += "_" + st.String()
	}
	return label
}
