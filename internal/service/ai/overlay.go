package ai

import (
	"fmt"
	"image"

	"wildwatch/internal/catalog"

	"gocv.io/x/gocv"
)

const (
	boxThickness  = 2
	textThickness = 2
	textScale     = 0.5
	textOffset    = 10
)

// DecodeImage decodes an encoded image (JPEG, PNG, ...) into a BGR Mat.
// The caller owns the returned Mat.
func DecodeImage(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return mat, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), ErrEmptyImage
	}
	return mat, nil
}

// Annotate draws each detection's box and "<label> <confidence>" caption
// onto frame in its category colour.
func Annotate(frame *gocv.Mat, detections []Detection, cat *catalog.Catalog) error {
	for _, detection := range detections {
		c := cat.ColorOf(detection.Label)

		if err := gocv.Rectangle(frame, detection.Box, c, boxThickness); err != nil {
			return fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s %.2f", detection.Label, detection.Confidence)
		pt := image.Pt(detection.Box.Min.X, detection.Box.Min.Y-textOffset)
		if err := gocv.PutText(frame, label, pt, gocv.FontHersheySimplex, textScale, c, textThickness); err != nil {
			return fmt.Errorf("failed to draw text: %w", err)
		}
	}
	return nil
}

// CountLabels adds every detection to stats and returns how many were added.
// Labels missing from stats (such as the unknown label) are created on demand.
func CountLabels(stats map[string]int, detections []Detection) int {
	for _, d := range detections {
		stats[d.Label]++
	}
	return len(detections)
}
