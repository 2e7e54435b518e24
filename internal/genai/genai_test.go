package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-coach/internal/common/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewGeminiClient("test-key", "gemini-1.5-pro", nil)
	require.NoError(t, err)
	client.endpoint = server.URL
	return client, server
}

func candidateResponse(texts ...string) string {
	parts := make([]map[string]string, 0, len(texts))
	for _, text := range texts {
		parts = append(parts, map[string]string{"text": text})
	}
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"parts": parts}},
		},
	})
	return string(body)
}

func TestGenerateReturnsCandidateText(t *testing.T) {
	var captured generateRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(candidateResponse("hello ", "world")))
	})

	text, err := client.Generate(context.Background(), []Part{TextPart("say hello")})
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	require.Len(t, captured.Contents, 1)
	require.Len(t, captured.Contents[0].Parts, 1)
	assert.Equal(t, "say hello", captured.Contents[0].Parts[0].Text)
	assert.Empty(t, captured.GenerationConfig.ResponseMimeType)
}

func TestGenerateJSONSetsResponseMimeType(t *testing.T) {
	var captured generateRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(candidateResponse(`{"ok":true}`)))
	})

	text, err := client.GenerateJSON(context.Background(), []Part{TextPart("emit json")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, text)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
}

func TestGenerateEncodesInlineMedia(t *testing.T) {
	var captured generateRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(candidateResponse("described")))
	})

	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	_, err := client.Generate(context.Background(), []Part{
		TextPart("describe this chart"),
		MediaPart("image/png", raw),
	})
	require.NoError(t, err)

	require.Len(t, captured.Contents[0].Parts, 2)
	inline := captured.Contents[0].Parts[1].InlineData
	require.NotNil(t, inline)
	assert.Equal(t, "image/png", inline.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), inline.Data)
}

func TestGenerateServerErrorIsConnection(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":503,"message":"overloaded"}}`))
	})

	_, err := client.Generate(context.Background(), []Part{TextPart("x")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
	assert.Contains(t, err.Error(), "overloaded")
}

func TestGenerateRejectedKeyIsConfigError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"key invalid"}}`))
	})

	_, err := client.Generate(context.Background(), []Part{TextPart("x")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestGenerateEmptyCandidates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := client.Generate(context.Background(), []Part{TextPart("x")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}

func TestGenerateValidation(t *testing.T) {
	client, err := NewGeminiClient("key", "model", nil)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	_, err = NewGeminiClient("", "model", nil)
	require.Error(t, err)

	_, err = NewGeminiClient("key", "", nil)
	require.Error(t, err)
}
