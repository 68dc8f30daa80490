package model

import "time"

const (
	EndpointVideo  = "process_video"
	EndpointFrame  = "process_frame"
	EndpointStream = "stream"

	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is the audit record of one processing request. It describes the run,
// not the detections it produced.
type Run struct {
	ID              string    `json:"id"`
	Endpoint        string    `json:"endpoint"`
	Source          string    `json:"source"`
	Status          string    `json:"status"`
	FramesProcessed int       `json:"frames_processed"`
	DurationMs      int64     `json:"duration_ms"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
