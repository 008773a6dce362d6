package salesapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the sales backend. The status
// code drives the checkout orchestrator's failure classification.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("sales api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("sales api: status %d", e.Status)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}
	var envelope struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Fields  map[string]string `json:"fields"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Fields = envelope.Error.Fields
		return apiErr
	}
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" && len(trimmed) < 512 {
		apiErr.Message = trimmed
	}
	return apiErr
}
