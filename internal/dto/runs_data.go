package dto

import "wildwatch/internal/model"

// RunsData is the response payload for the run history listing.
type RunsData struct {
	Runs  []model.Run `json:"runs"`
	Total int         `json:"total"`
	Limit int         `json:"limit"`
}
