package dto

// Detection is one entry of the process_frame response.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"` // x1, y1, x2, y2
}

// FrameRequest is the process_frame request body.
type FrameRequest struct {
	Frame string `json:"frame"`
}

// FrameResult is the process_frame response body.
type FrameResult struct {
	Detections []Detection `json:"detections"`
}
