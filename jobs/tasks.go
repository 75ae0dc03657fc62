package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPermissionWarmup precomputes permission decisions after grants change.
	TaskPermissionWarmup = "rbac:permission_warmup"
)

// PermissionWarmupPayload scopes a warm-up run. RoleID zero warms every role.
type PermissionWarmupPayload struct {
	RoleID int64 `json:"role_id"`
}

// NewPermissionWarmupTask constructs an Asynq task.
func NewPermissionWarmupTask(payload PermissionWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPermissionWarmup, data, asynq.MaxRetry(3)), nil
}
