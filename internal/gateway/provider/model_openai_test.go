package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"augur/internal/config"
)

const arraySchema = `{"type":"array","items":{"type":"object"}}`

func TestOpenAIChatClient_SendsSchemaAndRetries(t *testing.T) {
	var calls int32
	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		lastBody, _ = io.ReadAll(r.Body)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"predictions\":[]}"}}]}`))
	}))
	defer srv.Close()

	client := &OpenAIChatClient{
		BaseURL:      srv.URL + "/v1/chat/completions",
		APIKey:       "sk-test",
		Model:        "gpt-test",
		MaxRetries:   2,
		RetryBase:    time.Millisecond,
		ExtraHeaders: map[string]string{"X-Extra": "yes"},
	}
	out, err := client.Call(context.Background(), ChatPayload{
		System:      "sys",
		User:        "brief",
		Schema:      json.RawMessage(arraySchema),
		SchemaName:  "selection",
		EnvelopeKey: "predictions",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"predictions":[]}`, out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	body := gjson.ParseBytes(lastBody)
	assert.Equal(t, "gpt-test", body.Get("model").String())
	assert.Equal(t, "system", body.Get("messages.0.role").String())
	assert.Equal(t, "brief", body.Get("messages.1.content").String())
	assert.Equal(t, "json_schema", body.Get("response_format.type").String())
	assert.Equal(t, "selection", body.Get("response_format.json_schema.name").String())
	assert.True(t, body.Get("response_format.json_schema.strict").Bool())
	assert.Equal(t, "object", body.Get("response_format.json_schema.schema.type").String())
	assert.Equal(t, "array", body.Get("response_format.json_schema.schema.properties.predictions.type").String())
}

func TestOpenAIChatClient_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad schema"}}`))
	}))
	defer srv.Close()

	client := &OpenAIChatClient{BaseURL: srv.URL, Model: "m", MaxRetries: 3, RetryBase: time.Millisecond}
	_, err := client.Call(context.Background(), ChatPayload{User: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad schema")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIChatClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := &OpenAIChatClient{BaseURL: srv.URL, Model: "m"}
	_, err := client.Call(context.Background(), ChatPayload{User: "x"})
	assert.EqualError(t, err, "empty choices")
}

func TestEnvelopeSchemaLeavesObjectsAlone(t *testing.T) {
	obj := json.RawMessage(`{"type":"object"}`)
	assert.JSONEq(t, string(obj), string(envelopeSchema(obj, "predictions")))
	arr := json.RawMessage(arraySchema)
	assert.JSONEq(t, arraySchema, string(envelopeSchema(arr, "")))
}

func TestBuildProviders(t *testing.T) {
	providers, err := BuildProviders(config.AIConfig{
		TimeoutSeconds: 5,
		Models: []config.AIModelConfig{
			{ID: "main", Provider: "openai", Enabled: true, Model: "gpt", APIURL: "https://x"},
			{ID: "off", Provider: "openai", Enabled: false, Model: "gpt", APIURL: "https://x"},
		},
	})
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "main", providers[0].ID())
}
