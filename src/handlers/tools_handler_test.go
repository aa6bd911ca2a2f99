package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func webhookNext(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestWebhookAuthMiddlewareAcceptsToken(t *testing.T) {
	handler := NewToolsHandler(nil, nil, nil, "tajny-token")
	called := false
	protected := handler.WebhookAuthMiddleware(webhookNext(&called))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/alerts/run", nil)
	req.Header.Set("X-Webhook-Token", "tajny-token")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWebhookAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	handler := NewToolsHandler(nil, nil, nil, "tajny-token")
	called := false
	protected := handler.WebhookAuthMiddleware(webhookNext(&called))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/alerts/run?token=tajny-token", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.True(t, called)
}

func TestWebhookAuthMiddlewareRejectsWrongToken(t *testing.T) {
	handler := NewToolsHandler(nil, nil, nil, "tajny-token")
	called := false
	protected := handler.WebhookAuthMiddleware(webhookNext(&called))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/alerts/run", nil)
	req.Header.Set("X-Webhook-Token", "inny-token")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookAuthMiddlewareClosedWithoutConfiguredToken(t *testing.T) {
	handler := NewToolsHandler(nil, nil, nil, "")
	called := false
	protected := handler.WebhookAuthMiddleware(webhookNext(&called))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/alerts/run", nil)
	req.Header.Set("X-Webhook-Token", "")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
