package dto

// Progress is pushed to progress viewers while a video is processed.
type Progress struct {
	RequestID   string `json:"request_id"`
	Source      string `json:"source"`
	Frame       int    `json:"frame"`
	TotalFrames int    `json:"total_frames"` // container estimate, 0 when unknown
	Done        bool   `json:"done"`
	Error       string `json:"error,omitempty"`
}
