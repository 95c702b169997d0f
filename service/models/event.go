/*
 * @module service/models/event
 * @description 事件推送相关模型定义，包括SSE事件与SSE连接管理
 * @architecture 事件驱动架构 - 数据模型层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 会话变更 -> 事件生产 -> 事件分发 -> 客户端推送
 * @rules 事件一经产生不可修改，推送状态单向流转
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/event/event_service.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SSE事件类型
const (
	EventSessionOpened     = "session_opened"     // 新导入会话就绪
	EventSessionChanged    = "session_changed"    // 会话映射或校验状态变化
	EventSessionSuperseded = "session_superseded" // 复审结果覆盖会话
	EventSessionApplied    = "session_applied"    // 映射已提交入库
	EventSessionCancelled  = "session_cancelled"  // 会话已取消
)

// SSEEvent SSE事件模型
type SSEEvent struct {
	ID        string     `gorm:"type:uuid;primary_key" json:"id"`
	EventType string     `gorm:"not null;index" json:"event_type"`
	UserName  string     `gorm:"not null;index" json:"user_name"` // 空表示广播
	SessionID string     `gorm:"index" json:"session_id"`
	Data      JSONB      `gorm:"type:jsonb" json:"data"`
	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	Sent      bool       `gorm:"not null;default:false" json:"sent"`
	SentAt    *time.Time `json:"sent_at"`
}

func (s *SSEEvent) TableName() string {
	return "sse_events"
}

// BeforeCreate 创建前钩子
func (s *SSEEvent) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// SSEConnection SSE连接管理模型
type SSEConnection struct {
	ID           string    `gorm:"type:uuid;primary_key" json:"id"`
	UserName     string    `gorm:"not null;index" json:"user_name"`
	ConnectionID string    `gorm:"not null;unique" json:"connection_id"`
	ClientIP     string    `gorm:"not null" json:"client_ip"`
	ConnectedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"connected_at"`
	LastPingAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"last_ping_at"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
}

func (s *SSEConnection) TableName() string {
	return "sse_connections"
}

// BeforeCreate 创建前钩子
func (s *SSEConnection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
