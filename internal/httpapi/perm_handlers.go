package httpapi

import (
	"net/http"
	"strings"
	"time"

	"formscore.org/internal/auth"
)

type grantRequest struct {
	UserID    string     `json:"user_id"`
	Company   string     `json:"company,omitempty"`
	Category  string     `json:"category,omitempty"`
	Level     auth.Level `json:"level"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// handlePermissions serves POST /v1/permissions.
func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	principal, ok := a.requireAdmin(w, r, req.Company, req.Category)
	if !ok {
		return
	}
	grant, err := a.svc.Permissions().Grant(r.Context(), principal.User.ID, req.UserID, req.Company, req.Category, req.Level, req.ExpiresAt)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

// handlePermissionScoped routes the two path-parameterized permission
// endpoints: DELETE /v1/permissions/{id} and GET /v1/permissions/users/{id}.
func (a *API) handlePermissionScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/permissions/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	if userID, ok := strings.CutPrefix(rest, "users/"); ok {
		if userID == "" || strings.Contains(userID, "/") {
			http.NotFound(w, r)
			return
		}
		a.handleListPermissions(w, r, userID)
		return
	}

	if strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	a.handleRevokePermission(w, r, rest)
}

func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	// Anyone may inspect their own grants; reading another user's grants
	// requires at least view somewhere.
	if principal.User.ID != userID {
		level, err := a.svc.Permissions().HighestLevel(r.Context(), principal.User.ID)
		if err != nil {
			writeAuthError(w, r, err)
			return
		}
		if !level.Covers(auth.LevelView) {
			writeError(w, r, http.StatusForbidden, "insufficient permission")
			return
		}
	}
	grants, err := a.svc.Permissions().ListForUser(r.Context(), userID)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	if grants == nil {
		grants = []auth.PermissionGrant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"permissions": grants,
	})
}

func (a *API) handleRevokePermission(w http.ResponseWriter, r *http.Request, grantID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.svc.Permissions().RevokeGrant(r.Context(), principal.User.ID, grantID); err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked", "id": grantID})
}
