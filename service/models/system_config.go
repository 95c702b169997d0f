/*
 * @module service/models/system_config
 * @description 系统配置模型，存储导入会话保留策略与外部服务接入参数
 * @architecture 数据模型层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 配置存储 -> 配置读取 -> 配置更新
 * @rules 配置读取优先级：数据库 > 环境变量 > 默认值
 * @dependencies gorm.io/gorm
 * @refs service/config/config_service.go
 */

package models

import (
	"time"
)

// SystemConfig 系统配置模型
type SystemConfig struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Key         string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"value"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (SystemConfig) TableName() string {
	return "system_configs"
}

// SystemConfigItem 配置项视图，供配置查询接口返回
type SystemConfigItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Source      string `json:"source"` // database, environment, default
}
