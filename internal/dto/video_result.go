package dto

// VideoResult is the process_video response body.
type VideoResult struct {
	Message         string         `json:"message"`
	ProcessedVideo  string         `json:"processed_video"` // base64 of the re-encoded container
	Statistics      map[string]int `json:"statistics"`
	FramesProcessed int            `json:"frames_processed"`
	TotalDetections int            `json:"total_detections"`
	RequestID       string         `json:"request_id"`
}
