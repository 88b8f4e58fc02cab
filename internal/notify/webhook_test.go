package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rise-finetune/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifyJob(t *testing.T) {
	var received notify.JobNotification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	webhook := notify.NewWebhook(server.URL, 5*time.Second)
	err := webhook.NotifyJob(context.Background(), notify.JobNotification{
		JobId: "job-123", Status: "succeeded", FineTunedModel: "ft:rise-v1",
	})
	require.NoError(t, err)
	assert.Equal(t, notify.JobNotification{JobId: "job-123", Status: "succeeded", FineTunedModel: "ft:rise-v1"}, received)
}

func TestWebhookRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	webhook := notify.NewWebhook(server.URL, 5*time.Second)
	err := webhook.NotifyJob(context.Background(), notify.JobNotification{JobId: "job-123", Status: "failed"})
	assert.True(t, errors.Is(err, notify.ErrWebhookRejected))
}
