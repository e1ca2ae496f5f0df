// Package llm is the structured-extraction collaborator: it maps a natural
// language prompt plus optional images to free text, JSON, or a value
// conforming to a caller-supplied schema.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/use-agent/treasury/config"
	"github.com/use-agent/treasury/models"
)

// Client is a lightweight client for a Gemini-style generateContent API.
// It uses net/http directly — no provider SDK needed.
type Client struct {
	cfg        config.LLMConfig
	httpClient *http.Client
}

// NewClient creates a new extraction client.
// Pass nil to use a default http.Client with the configured request timeout.
func NewClient(cfg config.LLMConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Request is one structured-extraction call.
type Request struct {
	// Prompt is the instruction text.
	Prompt string

	// Images are screenshot references (https URLs or data URIs) attached
	// as multimodal parts. Unloadable images are skipped with a warning.
	Images []string

	// Schema constrains the response shape. When nil, the response is raw
	// text (or JSON when AsJSON is set).
	Schema *jsonschema.Schema

	// AsJSON requests a JSON response without a schema constraint.
	AsJSON bool

	// Temperature is the sampling temperature for this call.
	Temperature float64
}

// wire types for the generateContent request/response.
type genRequest struct {
	Contents         []genContent `json:"contents"`
	GenerationConfig genConfig    `json:"generationConfig"`
}

type genContent struct {
	Parts []genPart `json:"parts"`
}

type genPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *genInlineData `json:"inline_data,omitempty"`
}

type genInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type genConfig struct {
	Temperature      float64         `json:"temperature"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type genResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ExtractStructured sends the prompt and images to the model and returns the
// raw response text (JSON when a schema or AsJSON was requested). Callers
// unmarshal and validate against their own types.
func (c *Client) ExtractStructured(ctx context.Context, req Request) (json.RawMessage, error) {
	parts := []genPart{{Text: req.Prompt}}

	for _, img := range req.Images {
		raw, err := c.imageBytes(ctx, img)
		if err != nil {
			slog.Warn("failed to load image, skipping", "ref", truncateRef(img), "error", err)
			continue
		}
		parts = append(parts, genPart{InlineData: &genInlineData{
			MimeType: "image/png",
			Data:     base64.StdEncoding.EncodeToString(raw),
		}})
	}

	cfg := genConfig{Temperature: req.Temperature}
	if req.Schema != nil {
		cfg.ResponseMimeType = "application/json"
		schemaJSON, err := marshalSchema(req.Schema)
		if err != nil {
			return nil, models.NewExtractError(models.ErrCodeInternal, "marshal response schema", err)
		}
		cfg.ResponseSchema = schemaJSON
	} else if req.AsJSON {
		cfg.ResponseMimeType = "application/json"
	}

	body, err := json.Marshal(genRequest{
		Contents:         []genContent{{Parts: parts}},
		GenerationConfig: cfg,
	})
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeInternal, "marshal extraction request", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeInternal, "create extraction request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeExtraction, "extraction request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeExtraction, "read extraction response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyAPIError(resp.StatusCode, respBody)
	}

	var gr genResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, models.NewExtractError(models.ErrCodeExtraction, "parse extraction response", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, models.NewExtractError(models.ErrCodeExtraction, "extraction service returned no candidates", nil)
	}

	text := gr.Candidates[0].Content.Parts[0].Text
	if cfg.ResponseMimeType == "application/json" && !json.Valid([]byte(text)) {
		return nil, models.NewExtractError(models.ErrCodeExtraction, "extraction service returned invalid JSON", nil)
	}
	return json.RawMessage(text), nil
}

// SchemaFor reflects a response schema from a Go type, expanded inline
// (no $ref indirection) because the extraction service's schema dialect
// does not resolve references.
func SchemaFor[T any]() *jsonschema.Schema {
	r := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var v T
	return r.Reflect(&v)
}

// marshalSchema serialises a reflected schema and drops the JSON-Schema
// metadata keys the service rejects.
func marshalSchema(s *jsonschema.Schema) (json.RawMessage, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")
	delete(m, "additionalProperties")
	return json.Marshal(m)
}

// imageBytes resolves a screenshot reference to raw bytes: data URIs are
// decoded locally, anything else is fetched over HTTP(S).
func (c *Client) imageBytes(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "data:") {
		_, payload, found := strings.Cut(src, ",")
		if !found {
			return nil, fmt.Errorf("malformed data URI")
		}
		return base64.StdEncoding.DecodeString(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// classifyAPIError maps HTTP status codes to the internal error taxonomy.
func classifyAPIError(statusCode int, body []byte) *models.ExtractError {
	var gr genResponse
	msg := "extraction API error"
	if err := json.Unmarshal(body, &gr); err == nil && gr.Error.Message != "" {
		msg = gr.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewExtractError(models.ErrCodeLLMAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewExtractError(models.ErrCodeLLMRateLimited, msg, nil)
	default:
		return models.NewExtractError(models.ErrCodeExtraction,
			fmt.Sprintf("extraction API returned %d: %s", statusCode, msg), nil)
	}
}

// truncateRef shortens data URIs for log output.
func truncateRef(s string) string {
	if len(s) <= 64 {
		return s
	}
	return s[:64] + "…"
}
