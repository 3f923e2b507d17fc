package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"formscore.org/internal/auth"
	"formscore.org/internal/ids"
	"formscore.org/internal/obs"
	"formscore.org/internal/store/memory"
)

func TestMain(m *testing.M) {
	obs.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *memory.Store
	svc     *auth.Service
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := memory.New()
	svc, err := auth.NewService(store, []byte("test-secret-test-secret-test-abc"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	api := New(svc, ReadyProbe{}, "test", WithRateLimit(1000, 1000))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		svc:     svc,
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) register(email, password string) map[string]any {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/auth/register", map[string]any{
		"email":     email,
		"password":  password,
		"full_name": "Test User",
	}, "")
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register status: %d", resp.StatusCode)
	}
	return decode[map[string]any](c.t, resp)
}

func (c *apiClient) login(email, password string) (access, refresh string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, "")
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login status: %d", resp.StatusCode)
	}
	payload := decode[loginResponse](c.t, resp)
	if payload.AccessToken == "" || payload.RefreshToken == "" {
		c.t.Fatal("empty tokens issued")
	}
	return payload.AccessToken, payload.RefreshToken
}

// grantWildcardAdmin seeds a root grant directly in storage, the same
// bootstrap the grant-admin command performs.
func (c *apiClient) grantWildcardAdmin(userID string) {
	c.t.Helper()
	err := c.store.Grants().Create(context.Background(), &auth.PermissionGrant{
		ID:        ids.New(),
		UserID:    userID,
		Level:     auth.LevelAdmin,
		GrantedBy: userID,
		GrantedAt: time.Now().UTC(),
	})
	if err != nil {
		c.t.Fatalf("seed admin grant: %v", err)
	}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestRegisterLoginMeFlow(t *testing.T) {
	c := newTestAPI(t)

	user := c.register("alice@example.com", "Str0ng!Pass")
	if user["email"] != "alice@example.com" {
		t.Fatalf("unexpected email: %v", user["email"])
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Fatal("password hash leaked in response")
	}

	access, _ := c.login("alice@example.com", "Str0ng!Pass")

	resp := c.do(http.MethodGet, "/v1/auth/me", nil, access)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status: %d", resp.StatusCode)
	}
	me := decode[map[string]any](t, resp)
	u, ok := me["user"].(map[string]any)
	if !ok || u["email"] != "alice@example.com" {
		t.Fatalf("unexpected me payload: %v", me)
	}
}

func TestRegisterValidation(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodPost, "/v1/auth/register", map[string]any{
		"email": "bob@example.com", "password": "weak",
	}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("weak password status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	c.register("bob@example.com", "Str0ng!Pass")
	resp = c.do(http.MethodPost, "/v1/auth/register", map[string]any{
		"email": "bob@example.com", "password": "Str0ng!Pass",
	}, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/v1/auth/register", nil, "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginFailures(t *testing.T) {
	c := newTestAPI(t)
	c.register("alice@example.com", "Str0ng!Pass")

	resp := c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email": "alice@example.com", "password": "wrong",
	}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email": "ghost@example.com", "password": "Str0ng!Pass",
	}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown email status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIEnforcesAuth(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodGet, "/v1/auth/me", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/v1/auth/me", nil, "not-a-jwt")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/permissions", map[string]any{"user_id": "u1", "level": "view"}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("permissions without token status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRefreshAndLogout(t *testing.T) {
	c := newTestAPI(t)
	c.register("alice@example.com", "Str0ng!Pass")
	access, refresh := c.login("alice@example.com", "Str0ng!Pass")

	resp := c.do(http.MethodPost, "/v1/auth/refresh", map[string]any{"refresh_token": refresh}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status: %d", resp.StatusCode)
	}
	refreshed := decode[refreshResponse](t, resp)
	if refreshed.AccessToken == "" {
		t.Fatal("empty refreshed access token")
	}

	resp = c.do(http.MethodPost, "/v1/auth/logout", map[string]any{"refresh_token": refresh}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Both the original and the refreshed access token die with the session.
	for _, token := range []string{access, refreshed.AccessToken} {
		resp = c.do(http.MethodGet, "/v1/auth/me", nil, token)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("revoked session status: %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp = c.do(http.MethodPost, "/v1/auth/refresh", map[string]any{"refresh_token": refresh}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPasswordResetEndpoints(t *testing.T) {
	c := newTestAPI(t)
	c.register("alice@example.com", "Str0ng!Pass")

	resp := c.do(http.MethodPost, "/v1/auth/reset-password", map[string]any{"email": "alice@example.com"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset request status: %d", resp.StatusCode)
	}
	knownBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/auth/reset-password", map[string]any{"email": "ghost@example.com"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unknown email status: %d", resp.StatusCode)
	}
	unknownBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()

	// Byte-identical bodies: the response must not betray whether the
	// email is registered, and no token may appear in either.
	if !bytes.Equal(knownBody, unknownBody) {
		t.Fatalf("responses differ by email existence: %s vs %s", knownBody, unknownBody)
	}
	if bytes.Contains(knownBody, []byte("reset_token")) {
		t.Fatalf("reset token leaked in response: %s", knownBody)
	}

	// The token travels out-of-band; fetch it through the service the way
	// the operational channel would.
	token, err := c.svc.RequestPasswordReset(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token == "" {
		t.Fatal("expected reset token for known email")
	}

	resp = c.do(http.MethodPost, "/v1/auth/change-password", map[string]any{
		"reset_token": token, "new_password": "An0ther$Good",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change password status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Single use.
	resp = c.do(http.MethodPost, "/v1/auth/change-password", map[string]any{
		"reset_token": token, "new_password": "Th1rd$Pass!",
	}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reused token status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	c.login("alice@example.com", "An0ther$Good")
}

func TestPermissionEndpoints(t *testing.T) {
	c := newTestAPI(t)

	admin := c.register("admin@example.com", "Str0ng!Pass")
	c.register("member@example.com", "Str0ng!Pass")
	c.grantWildcardAdmin(admin["id"].(string))

	adminAccess, _ := c.login("admin@example.com", "Str0ng!Pass")
	memberAccess, _ := c.login("member@example.com", "Str0ng!Pass")

	// A plain member may not grant.
	resp := c.do(http.MethodPost, "/v1/permissions", map[string]any{
		"user_id": "someone", "company": "acme", "category": "hr", "level": "view",
	}, memberAccess)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("member grant status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	member, err := c.store.Users().FindByEmail(context.Background(), "member@example.com")
	if err != nil {
		t.Fatalf("find member: %v", err)
	}

	resp = c.do(http.MethodPost, "/v1/permissions", map[string]any{
		"user_id": member.ID, "company": "acme", "category": "hr", "level": "edit",
	}, adminAccess)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin grant status: %d", resp.StatusCode)
	}
	grant := decode[auth.PermissionGrant](t, resp)
	if grant.Level != auth.LevelEdit || grant.UserID != member.ID {
		t.Fatalf("unexpected grant: %+v", grant)
	}

	// The member sees their own grants.
	resp = c.do(http.MethodGet, "/v1/permissions/users/"+member.ID, nil, memberAccess)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("self list status: %d", resp.StatusCode)
	}
	listed := decode[struct {
		UserID      string                 `json:"user_id"`
		Permissions []auth.PermissionGrant `json:"permissions"`
	}](t, resp)
	if len(listed.Permissions) != 1 || listed.Permissions[0].ID != grant.ID {
		t.Fatalf("unexpected grant list: %+v", listed)
	}

	resp = c.do(http.MethodDelete, "/v1/permissions/"+grant.ID, nil, memberAccess)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("member revoke status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodDelete, "/v1/permissions/"+grant.ID, nil, adminAccess)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin revoke status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/v1/permissions/users/"+member.ID, nil, adminAccess)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list after revoke status: %d", resp.StatusCode)
	}
	listed = decode[struct {
		UserID      string                 `json:"user_id"`
		Permissions []auth.PermissionGrant `json:"permissions"`
	}](t, resp)
	if len(listed.Permissions) != 0 {
		t.Fatalf("expected empty grant list, got %+v", listed.Permissions)
	}
}

func TestHealthEndpoints(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.do(http.MethodGet, path, nil, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status: %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestStrictBodyDecoding(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email": "a@b.co", "password": "x", "unexpected": true,
	}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/auth/login", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty body status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}
