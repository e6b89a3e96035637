package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"botadmin/internal/crypto"
	"botadmin/internal/store"
)

const testAdminPassword = "correct horse"

func newTestAPI(t *testing.T) (*API, *gin.Engine, *store.Store) {
	t.Helper()
	st := store.New(store.Config{Logger: zerolog.Nop()})
	if err := st.Seed(testAdminPassword); err != nil {
		t.Fatalf("seed: %v", err)
	}
	kr, err := crypto.NewKeyring("k1", map[string][]byte{"k1": bytes.Repeat([]byte("k"), 32)})
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	api := New(Config{
		Store:     st,
		Keyring:   kr,
		JWTSecret: "test-secret",
		Logger:    zerolog.Nop(),
	})
	return api, api.Router(), st
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func loginAs(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": username,
		"password": password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response missing token: %s", w.Body.String())
	}
	return resp.Token
}

func TestLoginIssuesUsableToken(t *testing.T) {
	_, r, _ := newTestAPI(t)

	if w := doJSON(t, r, http.MethodGet, "/api/v1/auth/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated me: status %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "admin", "password": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d", w.Code)
	}

	token := loginAs(t, r, "admin", testAdminPassword)
	w := doJSON(t, r, http.MethodGet, "/api/v1/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"username":"admin"`) {
		t.Fatalf("me body: %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("me response leaks password material: %s", w.Body.String())
	}
}

func TestViewerRoleIsReadOnly(t *testing.T) {
	_, r, st := newTestAPI(t)
	admin, _ := st.UserByName("admin")
	b, err := st.AddBot("support", "", admin.ID, store.ModelConfig{Provider: store.ProviderOpenAI, Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("add bot: %v", err)
	}
	if _, err := st.AddUser("viewer", "pw12345", store.RoleClientViewer, []string{b.ID}); err != nil {
		t.Fatalf("add user: %v", err)
	}

	token := loginAs(t, r, "viewer", "pw12345")

	if w := doJSON(t, r, http.MethodGet, "/api/v1/bots/"+b.ID+"/qa", token, nil); w.Code != http.StatusOK {
		t.Fatalf("viewer list qa: status %d", w.Code)
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/bots/"+b.ID+"/qa", token, gin.H{"question": "hi", "answer": "hello"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("viewer create qa: status %d body %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodGet, "/api/v1/users", token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("viewer user list: status %d", w.Code)
	}
}

func TestBotVisibilityIsScoped(t *testing.T) {
	_, r, st := newTestAPI(t)
	admin, _ := st.UserByName("admin")
	mine, _ := st.AddBot("mine", "", admin.ID, store.ModelConfig{Provider: store.ProviderOpenAI, Model: "gpt-4o"})
	other, _ := st.AddBot("other", "", admin.ID, store.ModelConfig{Provider: store.ProviderOpenAI, Model: "gpt-4o"})
	if _, err := st.AddUser("editor", "pw12345", store.RoleClientEditor, []string{mine.ID}); err != nil {
		t.Fatalf("add user: %v", err)
	}

	token := loginAs(t, r, "editor", "pw12345")

	w := doJSON(t, r, http.MethodGet, "/api/v1/bots", token, nil)
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || list.Count != 1 {
		t.Fatalf("editor bot list: %s", w.Body.String())
	}
	if w := doJSON(t, r, http.MethodGet, "/api/v1/bots/"+other.ID, token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign bot must 404, got %d", w.Code)
	}
}

func TestCreateBotEnforcesOrgQuota(t *testing.T) {
	_, r, st := newTestAPI(t)
	org := st.AddOrganization("Acme", store.PlanFree)
	token := loginAs(t, r, "admin", testAdminPassword)

	body := gin.H{"name": "first", "organization_id": org.ID, "provider": "openai", "model": "gpt-4o"}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/bots", token, body); w.Code != http.StatusCreated {
		t.Fatalf("first bot: status %d body %s", w.Code, w.Body.String())
	}
	body["name"] = "second"
	if w := doJSON(t, r, http.MethodPost, "/api/v1/bots", token, body); w.Code != http.StatusPaymentRequired {
		t.Fatalf("quota breach: status %d body %s", w.Code, w.Body.String())
	}
}

func TestCredentialResponsesAreMasked(t *testing.T) {
	_, r, _ := newTestAPI(t)
	token := loginAs(t, r, "admin", testAdminPassword)

	w := doJSON(t, r, http.MethodPost, "/api/v1/credentials", token, gin.H{
		"name":     "prod key",
		"provider": "openai",
		"api_key":  "sk-verysecretkey",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create credential: status %d body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"key_mask":"sk-v****"`) {
		t.Fatalf("expected masked key, got %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "verysecret") {
		t.Fatalf("create response leaks api key: %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/credentials", token, nil)
	if strings.Contains(w.Body.String(), "verysecret") || strings.Contains(w.Body.String(), "enc_api_key") {
		t.Fatalf("list response leaks key material: %s", w.Body.String())
	}
}

func TestExportUsersCSV(t *testing.T) {
	_, r, _ := newTestAPI(t)
	token := loginAs(t, r, "admin", testAdminPassword)

	w := doJSON(t, r, http.MethodGet, "/api/v1/export/users.csv", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: status %d body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if lines[0] != "id,username,role,accessible_bots,created_at" {
		t.Fatalf("header row: %q", lines[0])
	}
	if len(lines) != 2 || !strings.Contains(lines[1], "admin") {
		t.Fatalf("expected single admin row: %v", lines)
	}
}

func TestUnknownExportResource(t *testing.T) {
	_, r, _ := newTestAPI(t)
	token := loginAs(t, r, "admin", testAdminPassword)
	if w := doJSON(t, r, http.MethodGet, "/api/v1/export/secrets.csv", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown resource: status %d", w.Code)
	}
}
