package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePageSnapshot = "page:snapshot"
)

// PageSnapshotPayload 描述生成页面快照所需的最小信息。
type PageSnapshotPayload struct {
	ProfileID     uint   `json:"profile_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPageSnapshotTask 构造一个新的页面快照任务。
func NewPageSnapshotTask(profileID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PageSnapshotPayload{
		ProfileID:     profileID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePageSnapshot, payload), nil
}
