package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xela07ax/pamwatch/internal/console/handler"
	"github.com/xela07ax/pamwatch/internal/domain"
	"github.com/xela07ax/pamwatch/internal/engine"
	"github.com/xela07ax/pamwatch/internal/infra/auth"
	"github.com/xela07ax/pamwatch/internal/session"
	"github.com/xela07ax/pamwatch/internal/settings"
	"github.com/xela07ax/pamwatch/internal/store"
	"go.uber.org/zap"
)

type testEnv struct {
	srv      *httptest.Server
	sessions *session.Manager
	key      *rsa.PrivateKey
}

func setupTestServer(t *testing.T, withAuth bool) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	ctx := context.Background()

	st, err := settings.NewStore(ctx, settings.NewFilePersister(filepath.Join(t.TempDir(), "settings.json")), nil, logger)
	if err != nil {
		t.Fatalf("settings store: %v", err)
	}
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)
	sessions := session.NewManager(nil, logger)
	core := engine.NewCore(st, sessions, store.NewEventStore(1000), store.NewAlertStore(1000), nil, metrics, logger)

	env := &testEnv{sessions: sessions}
	deps := Deps{
		Logger:      logger,
		AdminRoles:  []string{"Database Admin", "System Admin"},
		Gatherer:    reg,
		Revocations: sessions,
		Ingest:      handler.NewIngestHandler(core, logger),
		Events:      handler.NewEventsHandler(core),
		Settings:    handler.NewSettingsHandler(st, logger),
		Sessions:    handler.NewSessionHandler(sessions),
	}
	if withAuth {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatal(err)
		}
		env.key = key
		deps.Validator = auth.NewRS256Validator(&key.PublicKey, "")
	}

	env.srv = httptest.NewServer(NewConsoleServer(deps))
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	claims := &domain.OperatorClaims{
		Email: "admin@corp",
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(e.key)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + signed
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			json.NewEncoder(&buf).Encode(b)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestServer_AnalyzeAndReadBack(t *testing.T) {
	env := setupTestServer(t, false)

	resp := env.do(t, http.MethodPost, "/analyze",
		`{"hour":2,"ip_is_local":0,"event_type":"DELETE_TABLE","user_role":"Database Admin","log_source":"action"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /analyze status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/analyze",
		`{"hour":10,"ip_is_local":1,"event_type":"LOGIN_SUCCESS","user_role":"Developer","log_source":"auth"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /analyze status = %d", resp.StatusCode)
	}

	events := decode[[]domain.ScoredEvent](t, env.do(t, http.MethodGet, "/api/events", nil, nil))
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Action != "LOGIN_SUCCESS" || events[0].RiskScore != 20 || events[0].RiskCategory != domain.RiskNormal {
		t.Errorf("newest event = %+v", events[0])
	}
	if events[1].RiskScore != 100 || events[1].RiskCategory != domain.RiskCritical {
		t.Errorf("oldest event = %+v", events[1])
	}

	alerts := decode[[]domain.ScoredEvent](t, env.do(t, http.MethodGet, "/api/alerts", nil, nil))
	if len(alerts) != 1 || alerts[0].Action != "DELETE_TABLE" {
		t.Fatalf("alerts = %+v", alerts)
	}

	if resp := env.do(t, http.MethodPost, "/analyze", `{broken`, nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("broken payload status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_SessionRevocationFlow(t *testing.T) {
	env := setupTestServer(t, false)

	resp := env.do(t, http.MethodPost, "/api/sessions",
		map[string]string{"session_id": "s1", "email": "dba@corp", "role": "Database Admin"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	if resp := env.do(t, http.MethodGet, "/api/sessions/s1/access", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("access before strikes = %d, want 200", resp.StatusCode)
	}

	payload := `{"hour":2,"ip_is_local":0,"event_type":"DELETE_TABLE","user_role":"Database Admin","session_id":"s1","log_source":"action"}`
	for i := 0; i < 3; i++ {
		if resp := env.do(t, http.MethodPost, "/analyze", payload, nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("analyze %d status = %d", i, resp.StatusCode)
		}
	}

	if resp := env.do(t, http.MethodGet, "/api/sessions/s1/access", nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("access after 3 strikes = %d, want 403", resp.StatusCode)
	}

	st := decode[domain.SessionState](t, env.do(t, http.MethodGet, "/api/sessions/s1", nil, nil))
	if !st.AccessRevoked || st.StrikeCount != 3 {
		t.Fatalf("session = %+v", st)
	}

	events := decode[[]domain.ScoredEvent](t, env.do(t, http.MethodGet, "/api/events", nil, nil))
	if events[0].Action != domain.ActionPortalAccessRevoked || events[0].RiskScore != 100 {
		t.Fatalf("newest event = %+v, want revocation sentinel", events[0])
	}

	// Дашборд не отвечает отозванной сессии
	if resp := env.do(t, http.MethodGet, "/api/events", nil, map[string]string{engine.SessionHeader: "s1"}); resp.StatusCode != http.StatusForbidden {
		t.Errorf("dashboard for revoked session = %d, want 403", resp.StatusCode)
	}

	if resp := env.do(t, http.MethodGet, "/api/sessions/unknown/access", nil, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session access = %d, want 404", resp.StatusCode)
	}

	list := decode[[]domain.SessionState](t, env.do(t, http.MethodGet, "/api/sessions", nil, nil))
	if len(list) != 1 {
		t.Errorf("sessions = %d, want 1", len(list))
	}
}

func TestServer_SettingsUpdateTakesEffect(t *testing.T) {
	env := setupTestServer(t, false)

	resp := env.do(t, http.MethodPost, "/api/settings", `{"risk_thresholds":{"medium":80,"high":60}}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("descending thresholds status = %d, want 400", resp.StatusCode)
	}
	current := decode[domain.Settings](t, env.do(t, http.MethodGet, "/api/settings", nil, nil))
	if !reflect.DeepEqual(current, domain.DefaultSettings()) {
		t.Fatalf("settings changed after rejected update: %+v", current)
	}

	resp = env.do(t, http.MethodPost, "/api/settings", `{"risk_thresholds":{"medium":10,"high":50,"critical":90}}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid update status = %d", resp.StatusCode)
	}

	env.do(t, http.MethodPost, "/analyze", `{"hour":10,"ip_is_local":1,"event_type":"LOGIN_SUCCESS","user_role":"Dev","log_source":"auth"}`, nil)
	alerts := decode[[]domain.ScoredEvent](t, env.do(t, http.MethodGet, "/api/alerts", nil, nil))
	if len(alerts) != 1 || alerts[0].RiskCategory != domain.RiskMedium {
		t.Fatalf("alerts = %+v, want one Medium alert under new thresholds", alerts)
	}
}

func TestServer_AdminRoutesRequireRole(t *testing.T) {
	env := setupTestServer(t, true)
	patch := `{"session_management":{"max_strikes":5}}`

	if resp := env.do(t, http.MethodPost, "/api/settings", patch, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", resp.StatusCode)
	}

	dev := map[string]string{"Authorization": env.token(t, "Developer")}
	if resp := env.do(t, http.MethodPost, "/api/settings", patch, dev); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", resp.StatusCode)
	}

	admin := map[string]string{"Authorization": env.token(t, "System Admin")}
	if resp := env.do(t, http.MethodPost, "/api/settings", patch, admin); resp.StatusCode != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPost, "/api/clear-events", nil, admin); resp.StatusCode != http.StatusOK {
		t.Fatalf("clear-events status = %d, want 200", resp.StatusCode)
	}

	// Чтение настроек токена не требует
	if resp := env.do(t, http.MethodGet, "/api/settings", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/settings status = %d", resp.StatusCode)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := setupTestServer(t, false)
	env.do(t, http.MethodPost, "/analyze", `{"hour":10,"ip_is_local":1,"event_type":"GIT_PULL","user_role":"Dev","log_source":"auth"}`, nil)

	if resp := env.do(t, http.MethodGet, "/health", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	resp := env.do(t, http.MethodGet, "/metrics", nil, nil)
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !bytes.Contains(buf.Bytes(), []byte("pam_scored_events_total")) {
		t.Fatal("metrics output misses pam_scored_events_total")
	}
}

func TestServer_EventsCarryNestedUserRole(t *testing.T) {
	env := setupTestServer(t, false)
	env.do(t, http.MethodPost, "/analyze", `{"hour":10,"ip_is_local":1,"event_type":"GIT_PULL","user_role":"Developer","log_source":"auth"}`, nil)

	var raw []map[string]json.RawMessage
	if err := json.NewDecoder(env.do(t, http.MethodGet, "/api/events", nil, nil).Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 1 {
		t.Fatalf("events = %d, want 1", len(raw))
	}
	if got := string(raw[0]["user"]); got != `{"role":"Developer"}` {
		t.Errorf("user = %s, want {\"role\":\"Developer\"}", got)
	}
	if _, flat := raw[0]["role"]; flat {
		t.Error("role must be nested under user")
	}
}
