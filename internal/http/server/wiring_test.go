package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/caixa/internal/config"
	"github.com/dropDatabas3/caixa/internal/domain/repository"
)

const testMasterKey = "0123456789abcdef0123456789abcdef-caixa-test"

type testEnv struct {
	app *App
	srv *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("STORAGE_DSN", filepath.Join(t.TempDir(), "caixa.db"))
	t.Setenv("SIGNING_MASTER_KEY", testMasterKey)
	t.Setenv("RATE_BACKEND", "memory")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	app, err := Build(context.Background(), cfg, Options{})
	require.NoError(t, err)
	srv := httptest.NewServer(app.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = app.Close(context.Background())
	})
	return &testEnv{app: app, srv: srv}
}

// issue emite un token y guarda su credencial.
func (e *testEnv) issue(t *testing.T, principalID, tokenID, deviceID string) string {
	t.Helper()
	tok, exp, err := e.app.Issuer.IssueAPIToken(principalID, tokenID, deviceID, 0)
	require.NoError(t, err)
	err = e.app.Store.Credentials().Create(context.Background(), &repository.Credential{
		ID:          tokenID,
		PrincipalID: principalID,
		Name:        "test",
		Prefix:      tok[:8],
		DeviceID:    deviceID,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   exp,
	})
	require.NoError(t, err)
	return tok
}

func (e *testEnv) post(t *testing.T, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

const validItem = `{
	"sourceApp": "com.nu.production",
	"sourceAppName": "Nubank",
	"originalTitle": "Compra aprovada",
	"originalText": "Compra de R$ 42,90 aprovada em PADARIA",
	"notificationTimestamp": "2026-03-01T12:30:00Z",
	"parsedName": "PADARIA",
	"parsedAmount": 42.90,
	"parsedCardLastDigits": "1234",
	"parsedTransactionType": "debit"
}`

func TestInbox_SingleStoresVerbatim(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "pixel-7")

	resp, body := e.post(t, "/api/inbox", tok, validItem)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Notificação recebida", body["message"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	it, err := e.app.Store.Inbox().Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "user-1", it.PrincipalID)
	assert.Equal(t, "Compra de R$ 42,90 aprovada em PADARIA", it.OriginalText)
	require.NotNil(t, it.ParsedAmount)
	assert.Equal(t, "42.9", it.ParsedAmount.String())
	require.NotNil(t, it.DeviceID)
	assert.Equal(t, "pixel-7", *it.DeviceID)
	assert.Equal(t, repository.InboxPending, it.Status)
}

func TestInbox_RootAndAPIPrefix(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "")

	resp, _ := e.post(t, "/inbox", tok, validItem)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = e.post(t, "/api/inbox", tok, validItem)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// sin dedup: dos envíos idénticos son dos items
	pending, err := e.app.Store.Inbox().ListPending(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestInbox_ValidationError(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "")

	resp, body := e.post(t, "/api/inbox", tok, `{"originalText":"x","notificationTimestamp":"2026-03-01T12:30:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "sourceApp é obrigatório", body["error"])

	resp, body = e.post(t, "/api/inbox", tok, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "JSON inválido", body["error"])
}

func TestInbox_Unauthorized(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "")

	cases := []struct {
		name   string
		token  string
		expect string
	}{
		{"missing", "", "Token não fornecido"},
		{"garbage", "not-a-jwt", "Token inválido ou expirado"},
		{"tampered", tok[:len(tok)-2] + "xx", "Token inválido ou expirado"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := e.post(t, "/api/inbox", tc.token, validItem)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tc.expect, body["error"])
			assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))
		})
	}
}

func TestInbox_RevokedToken(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "")
	require.NoError(t, e.app.Store.Credentials().Revoke(context.Background(), "tok-1", time.Now().UTC()))

	resp, body := e.post(t, "/api/inbox", tok, validItem)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token inválido ou expirado", body["error"])

	pending, err := e.app.Store.Inbox().ListPending(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInbox_UnknownCredential(t *testing.T) {
	e := newTestEnv(t)
	// firmado con la clave correcta pero sin fila en api_token
	tok, _, err := e.app.Issuer.IssueAPIToken("user-1", "ghost", "", 0)
	require.NoError(t, err)

	resp, _ := e.post(t, "/api/inbox", tok, validItem)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInbox_UsageTouchedOnlyWhenAuthenticated(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "")
	ctx := context.Background()

	resp, _ := e.post(t, "/api/inbox", "bad", validItem)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NoError(t, e.app.Recorder.Flush(ctx))
	cred, err := e.app.Store.Credentials().Get(ctx, "tok-1", "user-1")
	require.NoError(t, err)
	assert.Nil(t, cred.LastUsedAt)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/inbox", strings.NewReader(validItem))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	resp, err = e.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, e.app.Recorder.Flush(ctx))
	cred, err = e.app.Store.Credentials().Get(ctx, "tok-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, cred.LastUsedAt)
	require.NotNil(t, cred.LastUsedIP)
	assert.Equal(t, "203.0.113.7", *cred.LastUsedIP)
}

func TestInbox_LastUsedAdvancesOnlyWhenAuthorized(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "")
	ctx := context.Background()

	lastUsed := func() time.Time {
		t.Helper()
		require.NoError(t, e.app.Recorder.Flush(ctx))
		cred, err := e.app.Store.Credentials().Get(ctx, "tok-1", "user-1")
		require.NoError(t, err)
		require.NotNil(t, cred.LastUsedAt)
		return *cred.LastUsedAt
	}

	resp, _ := e.post(t, "/api/inbox", tok, validItem)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	t1 := lastUsed()

	time.Sleep(2 * time.Millisecond)
	resp, _ = e.post(t, "/api/inbox", tok, `{"originalText":"sem sourceApp","notificationTimestamp":1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	t2 := lastUsed()
	assert.True(t, t2.After(t1), "t1=%s t2=%s", t1, t2)

	time.Sleep(2 * time.Millisecond)
	resp, _ = e.post(t, "/api/inbox", tok[:len(tok)-2]+"xx", validItem)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	t3 := lastUsed()
	assert.True(t, t3.Equal(t2), "t2=%s t3=%s", t2, t3)
}

func TestBuild_BadWindowFailsBeforeOpeningStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "caixa.db")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("STORAGE_DSN", dsn)
	t.Setenv("SIGNING_MASTER_KEY", testMasterKey)
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	cfg.Rate.Batch.Window = "not-a-duration"

	_, err = Build(context.Background(), cfg, Options{})
	require.Error(t, err)
	_, statErr := os.Stat(dsn)
	assert.True(t, os.IsNotExist(statErr), "el store no debería haberse abierto")
}

func TestInbox_SingleRateLimit(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "")

	for i := 0; i < 100; i++ {
		resp, _ := e.post(t, "/api/inbox", tok, validItem)
		require.Equal(t, http.StatusCreated, resp.StatusCode, "request %d", i+1)
	}
	resp, body := e.post(t, "/api/inbox", tok, validItem)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Limite de requisições excedido", body["error"])
	assert.EqualValues(t, 60, body["retryAfter"])
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	// otro principal tiene su propia ventana
	other := e.issue(t, "user-2", "tok-2", "")
	resp, _ = e.post(t, "/api/inbox", other, validItem)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// y el batch del mismo principal también
	resp, _ = e.post(t, "/api/inbox/batch", tok, `{"items":[{"clientId":"a","sourceApp":"x","originalText":"y","notificationTimestamp":1767225600000}]}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestInbox_BatchPartialFailure(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "")

	body := `{"items":[
		{"clientId":"c1","sourceApp":"nubank","originalText":"ok 1","notificationTimestamp":"2026-03-01T12:30:00Z","parsedAmount":10},
		{"clientId":"c2","sourceApp":"nubank","notificationTimestamp":"2026-03-01T12:30:00Z"},
		{"clientId":"c3","sourceApp":"nubank","originalText":"neg","notificationTimestamp":"2026-03-01T12:30:00Z","parsedAmount":-1},
		"not an object",
		{"sourceApp":"nubank","originalText":"no client id","notificationTimestamp":"2026-03-01T12:30:00Z"},
		{"clientId":"c6","sourceApp":"nubank","originalText":"ok 2","notificationTimestamp":1767225600000}
	]}`
	resp, out := e.post(t, "/api/inbox/batch", tok, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 6, out["total"])
	assert.EqualValues(t, 2, out["success"])
	assert.EqualValues(t, 4, out["failed"])
	assert.Equal(t, "2 notificações processadas, 4 falharam", out["message"])

	results, ok := out["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 6)

	first := results[0].(map[string]any)
	assert.Equal(t, "c1", first["clientId"])
	assert.Equal(t, true, first["success"])
	assert.NotEmpty(t, first["serverId"])

	assert.Equal(t, "originalText é obrigatório", results[1].(map[string]any)["error"])
	assert.Equal(t, "parsedAmount não pode ser negativo", results[2].(map[string]any)["error"])
	assert.Equal(t, "Item deve ser um objeto", results[3].(map[string]any)["error"])
	assert.Equal(t, "clientId é obrigatório", results[4].(map[string]any)["error"])
	assert.Equal(t, true, results[5].(map[string]any)["success"])

	pending, err := e.app.Store.Inbox().ListPending(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestInbox_BatchEnvelope(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "")

	tooMany := make([]string, 501)
	for i := range tooMany {
		tooMany[i] = `{}`
	}

	cases := []struct {
		name, body, expect string
	}{
		{"invalid json", `{"items":`, "JSON inválido"},
		{"missing items", `{}`, "items é obrigatório"},
		{"null items", `{"items":null}`, "items é obrigatório"},
		{"not a list", `{"items":{"a":1}}`, "items deve ser uma lista"},
		{"empty", `{"items":[]}`, "items não pode ser vazio"},
		{"too many", fmt.Sprintf(`{"items":[%s]}`, strings.Join(tooMany, ",")), "Máximo de 500 itens por lote"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, out := e.post(t, "/api/inbox/batch", tok, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.expect, out["error"])
		})
	}
}

func TestInbox_BatchRateLimit(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issue(t, "user-1", "tok-1", "")
	batch := `{"items":[{"clientId":"a","sourceApp":"x","originalText":"y","notificationTimestamp":1767225600000}]}`

	for i := 0; i < 20; i++ {
		resp, _ := e.post(t, "/api/inbox/batch", tok, batch)
		require.Equal(t, http.StatusCreated, resp.StatusCode, "batch %d", i+1)
	}
	resp, out := e.post(t, "/api/inbox/batch", tok, batch)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.EqualValues(t, 60, out["retryAfter"])
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	resp, err := e.srv.Client().Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = e.srv.Client().Get(e.srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = e.srv.Client().Get(e.srv.URL + "/api/inbox")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = e.srv.Client().Get(e.srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
