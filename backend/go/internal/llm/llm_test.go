package llm

import (
	"FactVerse/backend/go/internal/config"
	"FactVerse/backend/go/internal/models"
	pkghttp "FactVerse/backend/go/pkg/http"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factRequest() *models.GenerateContentRequest {
	return &models.GenerateContentRequest{
		Prompt:      "Share an interesting animal fact about animals.",
		Temperature: 0.7,
		MaxTokens:   200,
		TopP:        0.8,
		TopK:        40,
	}
}

func TestHuggingFace_GenerateContent(t *testing.T) {
	var got hfRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gpt2", r.URL.Path)
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`[{"generated_text":"  Octopuses have three hearts.  "}]`))
	}))
	defer srv.Close()

	hf, err := NewHuggingFace(nil, "gpt2", "hf-key", srv.URL+"/models")
	require.NoError(t, err)

	resp, err := hf.GenerateContent(context.Background(), factRequest())
	require.NoError(t, err)
	assert.Equal(t, "  Octopuses have three hearts.  ", resp.Text)
	assert.Equal(t, 200, got.Parameters.MaxLength)
	assert.InDelta(t, 0.7, got.Parameters.Temperature, 1e-6)
	assert.False(t, got.Parameters.ReturnFullText)
	assert.True(t, got.Parameters.DoSample)
}

func TestHuggingFace_ObjectResponse(t *testing.T) {
	text, err := parseHuggingFaceText(json.RawMessage(`{"generated_text":"single"}`))
	require.NoError(t, err)
	assert.Equal(t, "single", text)

	text, err = parseHuggingFaceText(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Empty(t, text)

	_, err = parseHuggingFaceText(json.RawMessage(`"oops"`))
	assert.Error(t, err)
}

func TestHuggingFace_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	hf, err := NewHuggingFace(pkghttp.NewClientWith(srv.Client(), nil), "gpt2", "k", srv.URL)
	require.NoError(t, err)

	_, err = hf.GenerateContent(context.Background(), factRequest())
	var se *pkghttp.StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.RateLimited())
}

func TestOpenAI_GenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-3.5-turbo", body["model"])
		assert.EqualValues(t, 200, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","model":"gpt-3.5-turbo","choices":[{"index":0,"message":{"role":"assistant","content":"Honey never spoils."}}]}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI("", "sk-test", srv.URL+"/v1")
	require.NoError(t, err)

	resp, err := o.GenerateContent(context.Background(), factRequest())
	require.NoError(t, err)
	assert.Equal(t, "Honey never spoils.", resp.Text)
	assert.Equal(t, "gpt-3.5-turbo", resp.ModelVersion)
}

func TestOllama_GenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body["model"])
		opts := body["options"].(map[string]interface{})
		assert.EqualValues(t, 200, opts["num_predict"])
		assert.EqualValues(t, 40, opts["top_k"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3","response":"Bananas are berries.","done":true}`))
	}))
	defer srv.Close()

	o, err := NewOllama("llama3", srv.URL)
	require.NoError(t, err)

	resp, err := o.GenerateContent(context.Background(), factRequest())
	require.NoError(t, err)
	assert.Equal(t, "Bananas are berries.", resp.Text)
	assert.Equal(t, "llama3", resp.ModelVersion)
}

func TestTextFromGenai(t *testing.T) {
	assert.Empty(t, textFromGenai(nil))
	assert.Empty(t, textFromGenai(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Venus spins "), genai.Text("backwards.")}},
		}},
	}
	assert.Equal(t, "Venus spins backwards.", textFromGenai(resp))
}

func TestNewClient_Factory(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.ProviderConfig{Provider: "huggingface"}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewClient(ctx, config.ProviderConfig{Provider: "openai"}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	c, err := NewClient(ctx, config.ProviderConfig{Provider: "ollama", Model: "llama3"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, c)

	c, err = NewClient(ctx, config.ProviderConfig{Provider: "huggingface", APIKey: "k", Model: "gpt2"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &HuggingFace{}, c)

	_, err = NewClient(ctx, config.ProviderConfig{Provider: "anthropic"}, nil)
	assert.Error(t, err)
}

type closingLLM struct {
	closed int
	err    error
}

func (c *closingLLM) GenerateContent(context.Context, *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	return &models.GenerateContentResponse{}, nil
}

func (c *closingLLM) Close() error {
	c.closed++
	return c.err
}

func TestClose(t *testing.T) {
	c := &closingLLM{}
	require.NoError(t, Close(c))
	assert.Equal(t, 1, c.closed)

	c.err = errors.New("connection already closed")
	assert.EqualError(t, Close(c), "connection already closed")

	hf, err := NewHuggingFace(pkghttp.NewClientWith(nil, nil), "gpt2", "hf-key", "")
	require.NoError(t, err)
	assert.NoError(t, Close(hf), "clients without connections close trivially")
}
