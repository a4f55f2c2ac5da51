package geminiservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGenerateText(t *testing.T) {
	var gotPayload GeminiPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Common cold. "},{"text":"Flu."}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", "models/gemini-1.5-flash", srv.URL, time.Second)
	text, err := c.GenerateText(context.Background(), "I have a cough")

	require.NoError(t, err)
	assert.Equal(t, "Common cold. Flu.", text)
	assert.Equal(t, "gemini-1.5-flash", c.Model())
	require.Len(t, gotPayload.Contents, 1)
	assert.Equal(t, "user", gotPayload.Contents[0].Role)
	assert.Equal(t, "I have a cough", gotPayload.Contents[0].Parts[0].Text)
}

func TestClientEmptyResponseIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	text, err := NewClient("k", "m", srv.URL, time.Second).GenerateText(context.Background(), "p")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	_, err := NewClient("bad", "m", srv.URL, time.Second).GenerateText(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Equal(t, apiKeyUserMessage, UserMessage(err))
}

func TestClientNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient("k", "m", srv.URL, time.Second).GenerateText(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClientMissingKeyNeverCallsUpstream(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewClient("  ", "m", srv.URL, time.Second).GenerateText(context.Background(), "p")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, called)
}

func TestClientTransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient("secret-key", "m", url, time.Second).GenerateText(context.Background(), "p")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-key")
}
