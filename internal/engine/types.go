package engine

import "errors"

// ErrNoModel is returned when Generate is called without a model id.
var ErrNoModel = errors.New("no model configured")

// GenerateOptions are response-shape hints for a single Generate call.
type GenerateOptions struct {
	// JSON asks the backend to constrain output to a JSON object.
	JSON        bool
	Temperature float64
	// MaxTokens caps the response length; 0 leaves the backend default.
	MaxTokens int
}

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}
