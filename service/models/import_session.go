/*
 * @module service/models/import_session
 * @description 供应商数据导入会话模型，持久化列画像、角色映射快照与提交历史
 * @architecture 数据模型层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 会话创建 -> 交互式编辑 -> 提交/取消/复核 -> 定期清理
 * @rules 映射快照随每次编辑落库；取消的会话不保留映射内容，仅保留状态供清理
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/mapping/session_service.go, service/cleanup/session_cleanup_service.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 导入会话状态常量
const (
	// SessionStatusEditing 编辑中，映射可变更
	SessionStatusEditing = "editing"

	// SessionStatusNeedsReview 等待画像分析服务的复核轮次
	SessionStatusNeedsReview = "needs_review"

	// SessionStatusApplied 已成功提交到入库服务
	SessionStatusApplied = "applied"

	// SessionStatusCancelled 用户取消，待清理
	SessionStatusCancelled = "cancelled"
)

// ImportSession 导入会话模型
// 一次导入对应一个会话：画像分析服务的输出进入会话，用户编辑映射，
// 验证通过后提交给入库服务
type ImportSession struct {
	ID             string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name           string     `gorm:"type:varchar(200);not null" json:"name"`
	Status         string     `gorm:"type:varchar(20);not null;index" json:"status"` // editing, needs_review, applied, cancelled
	TargetCase     string     `gorm:"type:varchar(20);not null" json:"target_case"`
	DetectedCase   string     `gorm:"type:varchar(20)" json:"detected_case"`
	Recommendation string     `gorm:"type:text" json:"recommendation"`
	ColumnProfiles JSONBArray `gorm:"type:jsonb" json:"column_profiles"`
	Mappings       JSONBArray `gorm:"type:jsonb" json:"mappings"`
	Issues         JSONBArray `gorm:"type:jsonb" json:"issues"`
	DerivedConfig  JSONB      `gorm:"type:jsonb" json:"derived_config"`
	ReviewRound    int        `gorm:"default:0" json:"review_round"` // 复核轮次计数，0为首轮
	AppliedAt      *time.Time `json:"applied_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ImportSessionTableName 导入会话表名，变更触发器与事件服务共用
const ImportSessionTableName = "import_sessions"

// TableName 指定表名
func (ImportSession) TableName() string {
	return ImportSessionTableName
}

// BeforeCreate 创建前钩子
func (s *ImportSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// ApplyAttempt 提交尝试记录模型
// 每次向入库服务提交（无论成败）记录一条，失败信息供报告器事后透出
type ApplyAttempt struct {
	ID           string           `gorm:"type:varchar(50);primaryKey" json:"id"`
	SessionID    string           `gorm:"type:varchar(50);not null;index" json:"session_id"`
	TargetCase   string           `gorm:"type:varchar(20);not null" json:"target_case"`
	MappingCount int              `json:"mapping_count"` // 提交的非ignore映射条数
	Success      bool             `json:"success"`
	Errors       JSONBStringArray `gorm:"type:jsonb" json:"errors"`
	Warnings     JSONBStringArray `gorm:"type:jsonb" json:"warnings"`
	Duration     int64            `json:"duration"` // 提交耗时，毫秒
	CreatedAt    time.Time        `json:"created_at"`
}

// TableName 指定表名
func (ApplyAttempt) TableName() string {
	return "apply_attempts"
}

// BeforeCreate 创建前钩子
func (a *ApplyAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
