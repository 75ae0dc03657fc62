package roles_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/rbac"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/roles"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
	_ "github.com/Xanitokills/Backend-Elant-sub000/testing"
)

type grantKey struct {
	roleID int64
	kind   rbac.Kind
	id     int64
}

// grantStore keeps roles and grant edges in memory.
type grantStore struct {
	roles  []rbac.Role
	grants map[grantKey]struct{}
}

func newGrantStore() *grantStore {
	return &grantStore{
		roles: []rbac.Role{{ID: 1, Label: "Admin", Active: true}, {ID: 3, Label: "Owner", Active: true}},
		grants: map[grantKey]struct{}{
			{1, rbac.KindSubmenu, 6}: {},
			{1, rbac.KindSubmenu, 7}: {},
		},
	}
}

func (s *grantStore) RoleIDs(ctx context.Context, principalID int64) ([]int64, error) {
	return nil, nil
}

func (s *grantStore) GrantedRoles(ctx context.Context, res rbac.Resource, roleIDs []int64) ([]int64, error) {
	return nil, nil
}

func (s *grantStore) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	return s.roles, nil
}

func (s *grantStore) ListResources(ctx context.Context) ([]rbac.MenuNode, error) {
	return nil, nil
}

func (s *grantStore) GrantsForRoles(ctx context.Context, roleIDs []int64) ([]rbac.Grant, error) {
	var out []rbac.Grant
	for k := range s.grants {
		for _, id := range roleIDs {
			if k.roleID != id {
				continue
			}
			res, err := rbac.ParseResource(string(k.kind), k.id)
			if err != nil {
				return nil, err
			}
			out = append(out, rbac.Grant{RoleID: k.roleID, Resource: res})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource.ID() < out[j].Resource.ID() })
	return out, nil
}

func (s *grantStore) PrincipalsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	return nil, nil
}

func (s *grantStore) InsertGrant(ctx context.Context, g rbac.Grant) error {
	known := false
	for _, role := range s.roles {
		known = known || role.ID == g.RoleID
	}
	if !known {
		return rbac.ErrNotFound
	}
	s.grants[grantKey{g.RoleID, g.Resource.Kind(), g.Resource.ID()}] = struct{}{}
	return nil
}

func (s *grantStore) DeleteGrant(ctx context.Context, g rbac.Grant) (int64, error) {
	key := grantKey{g.RoleID, g.Resource.Kind(), g.Resource.ID()}
	if _, ok := s.grants[key]; !ok {
		return 0, nil
	}
	delete(s.grants, key)
	return 1, nil
}

// recordingGuard admits every request and remembers the resources it guarded.
type recordingGuard struct {
	required []rbac.Resource
}

func (g *recordingGuard) Require(res rbac.Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.required = append(g.required, res)
			next.ServeHTTP(w, r)
		})
	}
}

type memoryAuditor struct {
	entries []shared.AuditLog
}

func (a *memoryAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	a.entries = append(a.entries, log)
	return nil
}

func newRouter(store *grantStore, guard *recordingGuard) http.Handler {
	return newAuditedRouter(store, guard, nil)
}

func newAuditedRouter(store *grantStore, guard *recordingGuard, auditor roles.Auditor) http.Handler {
	handler := roles.NewHandler(nil, rbac.NewService(store, nil, nil, nil), guard, auditor)
	r := chi.NewRouter()
	r.Route("/api/roles", handler.MountRoutes)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestListRolesRequiresRolesSubmenu(t *testing.T) {
	guard := &recordingGuard{}
	rr := do(newRouter(newGrantStore(), guard), http.MethodGet, "/api/roles", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"roles":[{"id":1,"label":"Admin","active":true},{"id":3,"label":"Owner","active":true}]}`, rr.Body.String())
	assert.Equal(t, []rbac.Resource{rbac.Submenu(shared.SubmenuRoles)}, guard.required)
}

func TestListGrants(t *testing.T) {
	guard := &recordingGuard{}
	rr := do(newRouter(newGrantStore(), guard), http.MethodGet, "/api/roles/1/grants", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"grants":[
		{"role_id":1,"kind":"submenu","resource_id":6},
		{"role_id":1,"kind":"submenu","resource_id":7}]}`, rr.Body.String())
	assert.Equal(t, []rbac.Resource{rbac.Submenu(shared.SubmenuMenuGrants)}, guard.required)
}

func TestCreateGrant(t *testing.T) {
	store := newGrantStore()
	h := newRouter(store, &recordingGuard{})

	rr := do(h, http.MethodPost, "/api/roles/3/grants", `{"kind":"menu","resource_id":2}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"role_id":3,"kind":"menu","resource_id":2}`, rr.Body.String())
	assert.Contains(t, store.grants, grantKey{3, rbac.KindMenu, 2})

	rr = do(h, http.MethodPost, "/api/roles/3/grants", `{"kind":"menu","resource_id":2}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestCreateGrantRejectsBadInput(t *testing.T) {
	h := newRouter(newGrantStore(), &recordingGuard{})

	cases := map[string]struct {
		path   string
		body   string
		status int
	}{
		"unknown kind":  {"/api/roles/3/grants", `{"kind":"page","resource_id":2}`, http.StatusBadRequest},
		"zero resource": {"/api/roles/3/grants", `{"kind":"menu","resource_id":0}`, http.StatusBadRequest},
		"malformed":     {"/api/roles/3/grants", `{"kind":`, http.StatusBadRequest},
		"bad role id":   {"/api/roles/abc/grants", `{"kind":"menu","resource_id":2}`, http.StatusBadRequest},
		"unknown role":  {"/api/roles/99/grants", `{"kind":"menu","resource_id":2}`, http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(h, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, rr.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestDeleteGrant(t *testing.T) {
	store := newGrantStore()
	h := newRouter(store, &recordingGuard{})

	rr := do(h, http.MethodDelete, "/api/roles/1/grants/submenu/7", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.NotContains(t, store.grants, grantKey{1, rbac.KindSubmenu, 7})

	rr = do(h, http.MethodDelete, "/api/roles/1/grants/submenu/7", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"message":"role or resource not found"}`, rr.Body.String())

	rr = do(h, http.MethodDelete, "/api/roles/1/grants/page/7", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"message":"invalid resource"}`, rr.Body.String())
}

func TestGrantChangesAreAudited(t *testing.T) {
	auditor := &memoryAuditor{}
	inner := newAuditedRouter(newGrantStore(), &recordingGuard{}, auditor)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{ID: 1, Role: "Admin"})
		inner.ServeHTTP(w, r.WithContext(ctx))
	})

	require.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/api/roles/3/grants", `{"kind":"submenu","resource_id":10}`).Code)
	require.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, "/api/roles/3/grants/submenu/10", "").Code)

	require.Len(t, auditor.entries, 2)
	assert.Equal(t, "grant.create", auditor.entries[0].Action)
	assert.Equal(t, "grant.delete", auditor.entries[1].Action)
	assert.Equal(t, int64(1), auditor.entries[0].ActorID)
	assert.Equal(t, "3", auditor.entries[0].EntityID)
	assert.Equal(t, map[string]any{"kind": "submenu", "resource_id": int64(10)}, auditor.entries[0].Meta)
}
