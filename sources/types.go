// Package sources integrates the Swedish data sources that feed the
// analysis pipeline: SCB statistics, the OMX Stockholm index, Swedish
// news headlines and SMHI weather data.
package sources

import "time"

// Payload is the source-specific data of a successful fetch.
type Payload map[string]interface{}

// Result is the outcome of fetching one source. Unavailable sources carry
// an error message instead of data so a partial collection stays usable.
type Result struct {
	Source    string    `json:"source"`
	Available bool      `json:"available"`
	Error     string    `json:"error,omitempty"`
	Data      Payload   `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Collected maps source name to its fetch result.
type Collected map[string]Result
