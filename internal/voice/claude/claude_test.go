package claude

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/inspectflow/internal/domain"
)

func messagesServer(t *testing.T, text string, gotPrompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotPrompt != nil {
			body, _ := io.ReadAll(r.Body)
			*gotPrompt = string(body)
		}
		resp := map[string]interface{}{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"content": []map[string]interface{}{
				{"type": "text", "text": text},
			},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 10},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
}

func TestRefine(t *testing.T) {
	var body string
	server := messagesServer(t, "rear tire | poor | 2 mm | replace", &body)
	defer server.Close()

	refiner := NewRefiner("sk-test", "claude-test", WithBaseURL(server.URL))

	f, err := refiner.Refine(context.Background(), "back tyre is shot")
	require.NoError(t, err)
	assert.Equal(t, "rear tire", f.Component)
	assert.Equal(t, domain.ConditionPoor, f.ConditionCandidate)
	require.NotNil(t, f.Measurement)
	assert.Equal(t, domain.UnitMillimeters, f.Measurement.Unit)
	assert.Equal(t, domain.ActionReplace, f.Action)
	assert.True(t, strings.Contains(body, "back tyre is shot"))
}

func TestRefineNoRow(t *testing.T) {
	server := messagesServer(t, "Sorry, I can't help with that.", nil)
	defer server.Close()

	refiner := NewRefiner("sk-test", "claude-test", WithBaseURL(server.URL))

	_, err := refiner.Refine(context.Background(), "hmm")
	assert.Error(t, err)
}

func TestRefineAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	refiner := NewRefiner("sk-test", "claude-test", WithBaseURL(server.URL))

	_, err := refiner.Refine(context.Background(), "front brakes")
	assert.Error(t, err)
}
