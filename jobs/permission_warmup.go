package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/Xanitokills/Backend-Elant-sub000/internal/jobs"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/rbac"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// WarmupSource lists the principals and grants a warm-up run evaluates.
type WarmupSource interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	PrincipalsWithRole(ctx context.Context, roleID int64) ([]int64, error)
	GrantsForRoles(ctx context.Context, roleIDs []int64) ([]rbac.Grant, error)
}

// Authorizer evaluates and caches permission decisions.
type Authorizer interface {
	Authorize(ctx context.Context, principalID int64, res rbac.Resource) (rbac.Decision, error)
}

// PermissionWarmupJob evaluates every (principal, granted resource) pair of a
// role so the decision cache is populated before requests arrive.
type PermissionWarmupJob struct {
	Source     WarmupSource
	Authorizer Authorizer
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewPermissionWarmupJob wires dependencies for the warm-up handler.
func NewPermissionWarmupJob(source WarmupSource, authorizer Authorizer, logger *slog.Logger, metrics *jobmetrics.Metrics) *PermissionWarmupJob {
	return &PermissionWarmupJob{
		Source:     source,
		Authorizer: authorizer,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes permission warm-up tasks.
func (j *PermissionWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil || j.Authorizer == nil {
		return errors.New("permission warmup: handler not configured")
	}
	var payload PermissionWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("permission warmup: decode payload: %w", asynq.SkipRetry)
	}
	if payload.RoleID < 0 {
		return fmt.Errorf("permission warmup: role %d: %w", payload.RoleID, asynq.SkipRetry)
	}
	return j.Run(ctx, payload)
}

// Run warms the role named by payload, or every active role when RoleID is zero.
func (j *PermissionWarmupJob) Run(ctx context.Context, payload PermissionWarmupPayload) (resultErr error) {
	tracker := j.metrics().Track(TaskPermissionWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("role_id", payload.RoleID))
	start := j.now()

	roleIDs, err := j.roles(ctx, payload.RoleID)
	if err != nil {
		logger.Error("load warmup roles", slog.Any("error", err))
		return err
	}

	counts := map[rbac.Decision]int{}
	for _, roleID := range roleIDs {
		if err := j.warmRole(ctx, roleID, counts); err != nil {
			logger.Error("warm role", slog.Int64("warm_role_id", roleID), slog.Any("error", err))
			return err
		}
	}
	j.metrics().AddDecisions(rbac.Allow.String(), counts[rbac.Allow])
	j.metrics().AddDecisions(rbac.Deny.String(), counts[rbac.Deny])

	logger.Info("completed permission warmup",
		slog.Int("roles", len(roleIDs)),
		slog.Int("allowed", counts[rbac.Allow]),
		slog.Int("denied", counts[rbac.Deny]),
		slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *PermissionWarmupJob) roles(ctx context.Context, roleID int64) ([]int64, error) {
	if roleID > 0 {
		return []int64{roleID}, nil
	}
	roles, err := j.Source.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(roles))
	for _, role := range roles {
		if role.Active {
			ids = append(ids, role.ID)
		}
	}
	return ids, nil
}

func (j *PermissionWarmupJob) warmRole(ctx context.Context, roleID int64, counts map[rbac.Decision]int) error {
	principals, err := j.Source.PrincipalsWithRole(ctx, roleID)
	if err != nil {
		return err
	}
	if len(principals) == 0 {
		return nil
	}
	grants, err := j.Source.GrantsForRoles(ctx, []int64{roleID})
	if err != nil {
		return err
	}
	for _, principalID := range principals {
		for _, g := range grants {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := j.Authorizer.Authorize(ctx, principalID, g.Resource)
			if err != nil {
				return err
			}
			counts[d]++
		}
	}
	return nil
}

func (j *PermissionWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPermissionWarmup))
	}
	return slog.Default().With(slog.String("job", TaskPermissionWarmup))
}

func (j *PermissionWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *PermissionWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
