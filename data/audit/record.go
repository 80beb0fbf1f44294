package audit

import (
	"context"
	"time"
)

// Operation 审计操作类型
type Operation string

const (
	OperationCreate         Operation = "CREATE"
	OperationUpdate         Operation = "UPDATE"
	OperationDelete         Operation = "DELETE"
	OperationSoftDelete     Operation = "SOFT_DELETE"
	OperationBulkUpdate     Operation = "BULK_UPDATE"
	OperationBulkSoftDelete Operation = "BULK_SOFT_DELETE"
)

// Record 审计记录：一次成功保存中单个审计实体的变更。
type Record struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityKey  string         `json:"entity_key"`
	Operation  Operation      `json:"operation"`
	Actor      *int64         `json:"actor,omitempty"`
	Version    int64          `json:"version"`
	Timestamp  time.Time      `json:"timestamp"`
	Changes    map[string]any `json:"changes,omitempty"` // 业务列变更（不含信封列）
}

// IStore 审计记录存储接口。
type IStore interface {
	// Append 保存一条审计记录。
	Append(ctx context.Context, record Record) error

	// ListByEntity 按实体查询审计记录（按版本升序，支持分页）。
	ListByEntity(ctx context.Context, entityType, entityKey string, offset, limit int) ([]Record, error)
}

// IPublisher 审计记录推送接口（Redis Streams、NATS JetStream 等）。
type IPublisher interface {
	Publish(ctx context.Context, record Record) error
}
