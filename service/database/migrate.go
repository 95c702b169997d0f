/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新数据库表结构
 * @architecture 数据访问层 - 迁移管理
 * @documentReference dev_docs/model.md
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 确保数据库结构与模型定义保持一致
 * @dependencies supplier-analysis-service/service/models, gorm.io/gorm
 * @refs dev_docs/backend_requirements.md
 */

package database

import (
	"log"
	"supplier-analysis-service/service/config"
	"supplier-analysis-service/service/models"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 导入会话相关表
	err := db.AutoMigrate(
		&models.ImportSession{},
		&models.ApplyAttempt{},
	)
	if err != nil {
		return err
	}

	// 系统配置表
	err = db.AutoMigrate(
		&models.SystemConfig{},
	)
	if err != nil {
		return err
	}

	// 事件管理相关表
	err = db.AutoMigrate(
		&models.SSEEvent{},
		&models.SSEConnection{},
	)
	if err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// InitializeData 初始化基础数据
func InitializeData(db *gorm.DB) error {
	log.Println("开始初始化基础数据...")

	configService := config.NewConfigService(db)
	defaults := []struct {
		key         string
		value       string
		description string
	}{
		{config.ConfigKeySessionRetentionDays, "", "已完结会话的保留天数"},
		{config.ConfigKeyApplyAttemptRetentionDays, "", "提交尝试记录的保留天数"},
		{config.ConfigKeyStaleSessionDays, "", "编辑中会话废弃判定天数"},
		{config.ConfigKeyOracleTransport, "", "画像结果接入通道：kafka 或 mqtt"},
		{config.ConfigKeyOracleResultTopic, "", "画像结果主题"},
	}

	// 仅登记配置键与描述，空值表示回退环境变量或内置默认值
	for _, item := range defaults {
		var count int64
		if err := db.Model(&models.SystemConfig{}).Where("key = ?", item.key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := configService.SetSystemConfig(item.key, item.value, item.description); err != nil {
			return err
		}
	}

	log.Println("基础数据初始化完成")
	return nil
}
