package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/Xanitokills/Backend-Elant-sub000/internal/jobs"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/rbac"
)

type stubSource struct {
	roles      []rbac.Role
	principals map[int64][]int64
	grants     map[int64][]rbac.Grant
	err        error
}

func (s *stubSource) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	return s.roles, s.err
}

func (s *stubSource) PrincipalsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	return s.principals[roleID], s.err
}

func (s *stubSource) GrantsForRoles(ctx context.Context, roleIDs []int64) ([]rbac.Grant, error) {
	var out []rbac.Grant
	for _, id := range roleIDs {
		out = append(out, s.grants[id]...)
	}
	return out, s.err
}

type recordingAuthorizer struct {
	checked []string
	err     error
}

func (a *recordingAuthorizer) Authorize(ctx context.Context, principalID int64, res rbac.Resource) (rbac.Decision, error) {
	if a.err != nil {
		return rbac.Deny, a.err
	}
	a.checked = append(a.checked, fmt.Sprintf("%d/%s", principalID, res))
	return rbac.Allow, nil
}

func residentialSource() *stubSource {
	return &stubSource{
		roles: []rbac.Role{{ID: 1, Label: "Admin", Active: true}, {ID: 2, Label: "Staff", Active: false}, {ID: 3, Label: "Owner", Active: true}},
		principals: map[int64][]int64{
			1: {1},
			2: {5},
			3: {42, 43},
		},
		grants: map[int64][]rbac.Grant{
			1: {{RoleID: 1, Resource: rbac.Menu(1)}, {RoleID: 1, Resource: rbac.Submenu(7)}},
			2: {{RoleID: 2, Resource: rbac.Menu(2)}},
			3: {{RoleID: 3, Resource: rbac.Submenu(8)}},
		},
	}
}

func warmupTask(t *testing.T, roleID int64) *asynq.Task {
	t.Helper()
	task, err := NewPermissionWarmupTask(PermissionWarmupPayload{RoleID: roleID})
	require.NoError(t, err)
	return task
}

func TestPermissionWarmupSingleRole(t *testing.T) {
	authz := &recordingAuthorizer{}
	job := NewPermissionWarmupJob(residentialSource(), authz, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), warmupTask(t, 3)))
	assert.Equal(t, []string{"42/submenu:8", "43/submenu:8"}, authz.checked)
}

func TestPermissionWarmupAllActiveRoles(t *testing.T) {
	authz := &recordingAuthorizer{}
	job := NewPermissionWarmupJob(residentialSource(), authz, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), warmupTask(t, 0)))
	assert.Equal(t, []string{"1/menu:1", "1/submenu:7", "42/submenu:8", "43/submenu:8"}, authz.checked)
}

func TestPermissionWarmupPropagatesFailures(t *testing.T) {
	source := residentialSource()
	source.err = errors.New("store down")
	job := NewPermissionWarmupJob(source, &recordingAuthorizer{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	assert.Error(t, job.Handle(context.Background(), warmupTask(t, 1)))

	authz := &recordingAuthorizer{err: rbac.ErrMisconfiguredRoute}
	job = NewPermissionWarmupJob(residentialSource(), authz, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	assert.ErrorIs(t, job.Handle(context.Background(), warmupTask(t, 1)), rbac.ErrMisconfiguredRoute)
}

func TestPermissionWarmupSkipsRetryOnBadPayload(t *testing.T) {
	job := NewPermissionWarmupJob(residentialSource(), &recordingAuthorizer{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskPermissionWarmup, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskPermissionWarmup, []byte(`{"role_id":-1}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestPermissionWarmupTaskPayload(t *testing.T) {
	task := warmupTask(t, 3)
	assert.Equal(t, TaskPermissionWarmup, task.Type())

	var payload PermissionWarmupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, int64(3), payload.RoleID)
}

func TestNilClientIgnoresGrantChanges(t *testing.T) {
	var client *Client
	assert.NoError(t, client.GrantsChanged(context.Background(), 1))
	assert.NoError(t, client.Close())
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

type allowGuard struct{}

func (allowGuard) Require(res rbac.Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

func healthRequest(inspector QueueInspector) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/api/jobs", NewHandler(inspector, allowGuard{}, nil).MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))
	return rr
}

func TestJobsHealth(t *testing.T) {
	rr := healthRequest(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Active: 1}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":4,"active":1,"retry":0}`, rr.Body.String())

	rr = healthRequest(nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0}`, rr.Body.String())

	rr = healthRequest(stubInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
