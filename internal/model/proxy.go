// Package model defines shared types for the proxy.
package model

import "encoding/json"

// Body is a decoded JSON request object. Values stay raw so each endpoint
// decodes only the fields it owns and forwards the rest byte-for-byte.
type Body map[string]json.RawMessage

// TextGenerationRequest is the upstream payload for the responses API.
type TextGenerationRequest struct {
	Model string            `json:"model"`
	Input []json.RawMessage `json:"input"`
}

// ImageGenerationRequest is the upstream payload for the image generation API.
type ImageGenerationRequest struct {
	Model                     string `json:"model"`
	Prompt                    string `json:"prompt"`
	SequentialImageGeneration string `json:"sequential_image_generation"`
	ResponseFormat            string `json:"response_format"`
	Size                      string `json:"size"`
	Stream                    bool   `json:"stream"`
	Watermark                 bool   `json:"watermark"`
}

// UpstreamResponse is a fully read upstream reply.
type UpstreamResponse struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the upstream answered with a 2xx status.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSONPayload returns data as a JSON value: valid JSON is passed through,
// anything else is encoded as a JSON string. Empty input yields nil.
func JSONPayload(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	encoded, err := json.Marshal(string(data))
	if err != nil {
		return nil
	}
	return encoded
}
