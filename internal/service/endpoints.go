package service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"ark-proxy-go/internal/config"
	"ark-proxy-go/internal/model"
)

// DefaultImageSize is sent when the caller omits size.
const DefaultImageSize = "2K"

// Caller-facing messages, in the language of the bundled page.
const (
	textFailure  = "文本代理请求失败"
	imageFailure = "图像代理请求失败"

	msgMessagesEmpty = "messages 不能为空"
	msgPromptEmpty   = "prompt 不能为空"
	msgPromptType    = "prompt 必须是字符串"
	msgSizeType      = "size 必须是字符串"
)

// NewTextForwarder forwards chat messages to the responses API.
func NewTextForwarder(ark config.ArkConfig, p Poster, logger *slog.Logger) Forwarder {
	return &endpoint[model.TextGenerationRequest]{
		name:    "text",
		url:     ark.TextURL,
		model:   ark.TextModel,
		apiKey:  ark.APIKey,
		failure: textFailure,
		build:   buildTextRequest,
		poster:  p,
		logger:  logger,
	}
}

// NewImageForwarder forwards prompts to the image generation API.
func NewImageForwarder(ark config.ArkConfig, p Poster, logger *slog.Logger) Forwarder {
	return &endpoint[model.ImageGenerationRequest]{
		name:    "image",
		url:     ark.ImageURL,
		model:   ark.ImageModel,
		apiKey:  ark.APIKey,
		failure: imageFailure,
		build:   buildImageRequest,
		poster:  p,
		logger:  logger,
	}
}

func buildTextRequest(modelID string, body model.Body) (model.TextGenerationRequest, error) {
	var messages []json.RawMessage
	raw, ok := body["messages"]
	if !ok || json.Unmarshal(raw, &messages) != nil || len(messages) == 0 {
		return model.TextGenerationRequest{}, &ValidationError{
			Field:   "messages",
			Message: msgMessagesEmpty,
		}
	}

	return model.TextGenerationRequest{
		Model: modelID,
		Input: messages,
	}, nil
}

func buildImageRequest(modelID string, body model.Body) (model.ImageGenerationRequest, error) {
	prompt, ok := stringField(body, "prompt")
	if !ok {
		return model.ImageGenerationRequest{}, &ValidationError{Field: "prompt", Message: msgPromptType}
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return model.ImageGenerationRequest{}, &ValidationError{Field: "prompt", Message: msgPromptEmpty}
	}

	size, ok := stringField(body, "size")
	if !ok {
		return model.ImageGenerationRequest{}, &ValidationError{Field: "size", Message: msgSizeType}
	}
	if size == "" {
		size = DefaultImageSize
	}

	return model.ImageGenerationRequest{
		Model:                     modelID,
		Prompt:                    prompt,
		SequentialImageGeneration: "disabled",
		ResponseFormat:            "url",
		Size:                      size,
		Stream:                    false,
		Watermark:                 !bytes.Equal(bytes.TrimSpace(body["watermark"]), []byte("false")),
	}, nil
}

// stringField returns the named string field. Absent and null fields are
// empty; any other non-string value reports ok == false.
func stringField(body model.Body, name string) (string, bool) {
	raw, present := body[name]
	if !present {
		return "", true
	}
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
