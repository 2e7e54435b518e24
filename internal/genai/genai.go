// Package genai talks to a multimodal generative model over its REST API.
// Callers assemble prompts from text and inline media parts and receive the
// model's text output; parsing that output is the caller's concern.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trade-coach/internal/circuitbreaker"
	"trade-coach/internal/common/errors"
	commonhttp "trade-coach/internal/common/http"
	"trade-coach/internal/common/logging"
)

// Part is one piece of a prompt, either plain text or inline media.
type Part struct {
	Text     string
	MimeType string
	Data     []byte
}

// TextPart builds a text-only prompt part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// MediaPart builds an inline media prompt part.
func MediaPart(mimeType string, data []byte) Part {
	return Part{MimeType: mimeType, Data: data}
}

// Generator produces model output for a multimodal prompt.
type Generator interface {
	Generate(ctx context.Context, parts []Part) (string, error)
}

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient is the production Generator backed by the Gemini REST API.
type GeminiClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
	logger     logging.Logger
}

func NewGeminiClient(apiKey, model string, logger logging.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.ValidationError("gemini api key is required")
	}
	if model == "" {
		return nil, errors.ValidationError("gemini model is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		endpoint:   defaultEndpoint,
		httpClient: commonhttp.NewHTTPClientWithTimeout(120 * time.Second),
		breaker:    circuitbreaker.NewGoBreaker("gemini", circuitbreaker.ModelConfig, logger),
		logger:     logger,
	}, nil
}

// Request and response shapes for the generateContent endpoint. Only the
// fields this client reads or writes are declared.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends the prompt and returns the first candidate's text. Model
// and transport failures come back as connection errors so callers can
// treat them as transient.
func (c *GeminiClient) Generate(ctx context.Context, parts []Part) (string, error) {
	return c.generate(ctx, parts, "")
}

// GenerateJSON asks the model for a JSON response. The response MIME type
// constrains decoding, not schema; callers still validate the shape.
func (c *GeminiClient) GenerateJSON(ctx context.Context, parts []Part) (string, error) {
	return c.generate(ctx, parts, "application/json")
}

func (c *GeminiClient) generate(ctx context.Context, parts []Part, responseMimeType string) (string, error) {
	if len(parts) == 0 {
		return "", errors.ValidationError("prompt must contain at least one part")
	}

	wireParts := make([]wirePart, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			wireParts = append(wireParts, wirePart{InlineData: &inlineData{
				MimeType: p.MimeType,
				Data:     base64.StdEncoding.EncodeToString(p.Data),
			}})
			continue
		}
		wireParts = append(wireParts, wirePart{Text: p.Text})
	}

	request := generateRequest{
		Contents: []content{{Role: "user", Parts: wireParts}},
		GenerationConfig: &generationConfig{
			Temperature:      0.2,
			ResponseMimeType: responseMimeType,
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", errors.InternalError("failed to encode model request", err)
	}

	var text string
	err = c.breaker.Execute(ctx, func() error {
		var callErr error
		text, callErr = c.call(ctx, body)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *GeminiClient) call(ctx context.Context, body []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", errors.InternalError("failed to build model request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.ConnectionError("gemini", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", errors.ConnectionError("gemini", err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", errors.ConnectionError("gemini",
			fmt.Errorf("undecodable response (status %d)", resp.StatusCode))
	}

	if resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("status %d", resp.StatusCode)
		if decoded.Error != nil {
			message = fmt.Sprintf("status %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", errors.ConfigError("gemini rejected the configured api key: " + message)
		}
		return "", errors.ConnectionError("gemini", fmt.Errorf("%s", message))
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", errors.ConnectionError("gemini", fmt.Errorf("response contained no candidates"))
	}

	var buf bytes.Buffer
	for _, part := range decoded.Candidates[0].Content.Parts {
		buf.WriteString(part.Text)
	}
	return buf.String(), nil
}
