// Package reqbody reads and decodes bounded JSON request bodies.
package reqbody

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ark-proxy-go/internal/model"
)

// DefaultLimit is the body ceiling used when none is configured.
const DefaultLimit int64 = 5 * 1024 * 1024

var (
	// ErrTooLarge is returned when the body exceeds the ceiling.
	ErrTooLarge = errors.New("request body too large")
	// ErrMalformed is returned when a non-empty body is not valid JSON.
	ErrMalformed = errors.New("request body is not valid JSON")
)

// Read accumulates r's body up to limit bytes and decodes it. On ErrTooLarge
// the response is marked Connection: close so the server drops the
// connection instead of draining the rest of the upload. w should be the
// server's own ResponseWriter so http.MaxBytesReader can flag it.
func Read(w http.ResponseWriter, r *http.Request, limit int64) (model.Body, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if r.ContentLength > limit {
		w.Header().Set("Connection", "close")
		return nil, ErrTooLarge
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.Header().Set("Connection", "close")
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}

	return Decode(data)
}

// Decode parses data as a JSON object. An empty body is an empty object and
// valid JSON that is not an object carries no fields.
func Decode(data []byte) (model.Body, error) {
	if len(data) == 0 {
		return model.Body{}, nil
	}
	if !json.Valid(data) {
		return nil, ErrMalformed
	}

	trimmed := bytes.TrimSpace(data)
	if trimmed[0] != '{' {
		return model.Body{}, nil
	}

	var body model.Body
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return body, nil
}
