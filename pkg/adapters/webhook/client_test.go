package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/appsail/convo/pkg/adapters/webhook"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Send(t *testing.T) {
	var got domain.OutboundMessage
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := webhook.NewClient(webhook.Targets{
		ports.ModeProduction: {Endpoint: srv.URL, Headers: map[string]string{"x-api-key": "k1", "x-channel-id": "c1"}},
	})

	msg := &domain.OutboundMessage{To: "919000000001", ContentType: domain.ContentText, Text: "hello", ConversationState: domain.Completed()}
	require.NoError(t, c.Send(context.Background(), ports.ModeProduction, domain.FlowScripted, msg))

	assert.Equal(t, "k1", headers.Get("x-api-key"))
	assert.Equal(t, "c1", headers.Get("x-channel-id"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "hello", got.Text)
	assert.True(t, got.HandOff())
}

func TestClient_FlowTargetsOverrideDefaults(t *testing.T) {
	c := webhook.NewClient(
		webhook.Targets{
			ports.ModeProduction:  {Endpoint: "https://prod.example"},
			ports.ModeDevelopment: {Endpoint: "https://dev.example"},
		},
		webhook.WithFlowTargets(domain.FlowWallet, webhook.Targets{ports.ModeProduction: {Endpoint: "https://wallet.example"}}),
	)

	tgt, err := c.Resolve(domain.FlowWallet, ports.ModeProduction)
	require.NoError(t, err)
	assert.Equal(t, "https://wallet.example", tgt.Endpoint)

	tgt, err = c.Resolve(domain.FlowWallet, ports.ModeDevelopment)
	require.NoError(t, err)
	assert.Equal(t, "https://dev.example", tgt.Endpoint)

	_, err = c.Resolve(domain.FlowWallet, ports.ModeLocal)
	assert.ErrorIs(t, err, webhook.ErrNoTarget)

	var checker ports.TargetChecker = c
	assert.NoError(t, checker.CheckTarget(domain.FlowScripted, ports.ModeDevelopment))
	assert.ErrorIs(t, checker.CheckTarget(domain.FlowScripted, ports.ModeLocal), webhook.ErrNoTarget)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := webhook.NewClient(webhook.Targets{ports.ModeProduction: {Endpoint: srv.URL}})
	err := c.Send(context.Background(), ports.ModeProduction, domain.FlowReminder, &domain.OutboundMessage{To: "1", ContentType: domain.ContentText})

	var statusErr *webhook.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "bad key", statusErr.Body)
}

func TestRecorder(t *testing.T) {
	r := webhook.NewRecorder()
	var seen int
	r.OnSend = func(webhook.Delivery) { seen++ }

	msg := &domain.OutboundMessage{To: "1", ContentType: domain.ContentText, Text: "a"}
	require.NoError(t, r.Send(context.Background(), ports.ModeDevelopment, domain.FlowScripted, msg))
	assert.Equal(t, msg, r.Last())
	assert.Equal(t, 1, seen)

	r.Fail(errors.New("down"))
	assert.Error(t, r.Send(context.Background(), ports.ModeDevelopment, domain.FlowScripted, msg))
	assert.Len(t, r.Deliveries(), 1)

	r.Reset()
	assert.Nil(t, r.Last())
}
