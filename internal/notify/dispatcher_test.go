package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/model"
)

func interestedRecord() model.EmailRecord {
	return model.EmailRecord{
		ID:       "rec-1",
		From:     "lead@example.com",
		Subject:  "Very interested in a demo",
		Account:  "Work",
		Date:     time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Text:     strings.Repeat("interested ", 60),
		Category: model.CategoryInterested,
	}
}

func captureServer(t *testing.T, got *[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*got = append(*got, body...)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatchSlackPayload(t *testing.T) {
	var body []byte
	srv := captureServer(t, &body)

	d := New(srv.URL, "", "http://app.example.com", zap.NewNop())
	d.Dispatch(context.Background(), interestedRecord())

	require.NotEmpty(t, body)

	var payload struct {
		Text   string `json:"text"`
		Blocks []struct {
			Type string `json:"type"`
		} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "New Interested Email Detected!", payload.Text)
	require.Len(t, payload.Blocks, 4)
	assert.Equal(t, "header", payload.Blocks[0].Type)
	assert.Equal(t, "actions", payload.Blocks[3].Type)
	assert.Contains(t, string(body), "http://app.example.com/emails/rec-1")

	// Preview is capped at 200 characters plus the ellipsis.
	assert.Contains(t, string(body), "...")
}

func TestDispatchWebhookPayload(t *testing.T) {
	var body []byte
	srv := captureServer(t, &body)

	d := New("", srv.URL, "", zap.NewNop())
	d.Dispatch(context.Background(), interestedRecord())

	require.NotEmpty(t, body)

	var event webhookEvent
	require.NoError(t, json.Unmarshal(body, &event))
	assert.Equal(t, "interested_email", event.Event)
	assert.Equal(t, "rec-1", event.Email.ID)
	assert.Equal(t, model.CategoryInterested, event.Email.Category)
	assert.LessOrEqual(t, len(event.Email.Preview), 500)
	assert.False(t, event.Timestamp.IsZero())
}

func TestDispatchSkipsUnconfiguredSinks(t *testing.T) {
	d := New("", "", "", zap.NewNop())
	// Must not panic or attempt any network call.
	d.Dispatch(context.Background(), interestedRecord())
}

func TestDispatchOneSinkFailureDoesNotBlockOther(t *testing.T) {
	var webhookBody []byte
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)
	working := captureServer(t, &webhookBody)

	d := New(failing.URL, working.URL, "", zap.NewNop())
	d.Dispatch(context.Background(), interestedRecord())

	assert.NotEmpty(t, webhookBody, "webhook sink should still deliver")
}
