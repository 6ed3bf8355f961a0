package convo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/appsail/convo"
	"github.com/appsail/convo/internal/config"
	"github.com/appsail/convo/internal/logging"
	"github.com/appsail/convo/pkg/adapters/webhook"
	"github.com/appsail/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, h http.Handler, target, body string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestNew_DefaultsServeScriptedFlow(t *testing.T) {
	rec := webhook.NewRecorder()
	app, err := convo.New(context.Background(), config.Default(), convo.WithSender(rec), convo.WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer app.Close()

	h := app.Handler()
	post(t, h, "/agent", `{"from":"+919000000007","messages":[{"content_type":"text","text":"hi"}]}`)
	post(t, h, "/agent", `{"from":"+919000000007","messages":[{"content_type":"text","text":"2"}]}`)

	require.Len(t, rec.Deliveries(), 2)
	assert.Equal(t, domain.FlowScripted, rec.Deliveries()[1].Flow)

	st, err := app.States.Get(context.Background(), "919000000007")
	require.NoError(t, err)
	assert.Equal(t, "2", st.Data["length"])

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `convo_turns_total{flow="scripted",outcome="advanced"} 2`)
}

func TestNew_RedisEncryptedSQLite(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg, err := config.Parse([]byte(`
server:
  serialize_turns: true
state:
  backend: redis
  redis:
    addr: ` + mr.Addr() + `
  encryption:
    active_key: MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE=
records:
  backend: sqlite
  sqlite:
    path: ` + filepath.Join(t.TempDir(), "records.db") + `
metrics:
  enabled: false
`))
	require.NoError(t, err)

	rec := webhook.NewRecorder()
	app, err := convo.New(context.Background(), cfg, convo.WithSender(rec), convo.WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer app.Close()

	h := app.Handler()
	post(t, h, "/agent/orders?org=acme", `{"from":"+919000000008","messages":[{"content_type":"text","text":"hi"}],"contact":{"label":"Ravi"}}`)

	raw, err := mr.Get("convo:state:919000000008")
	require.NoError(t, err)
	assert.NotContains(t, raw, "awaiting_main_selection", "state must be stored encrypted")

	st, err := app.Sessions.Get(context.Background(), "919000000008")
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("awaiting_main_selection"), st.CurrentState)

	c, err := app.Records.FindByKey(context.Background(), "919000000008", "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), c.Wallet)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNew_BadEncryptionKey(t *testing.T) {
	cfg := config.Default()
	cfg.State.Encryption.ActiveKey = "c2hvcnQ="
	_, err := convo.New(context.Background(), cfg, convo.WithLogger(logging.NewNop()))
	assert.Error(t, err)
}
