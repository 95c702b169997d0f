/*
 * @module service/config/config_service
 * @description 配置服务，管理导入会话保留策略与外部服务接入参数
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 服务调用 -> 数据库配置 -> 环境变量 -> 默认值
 * @rules 配置读取优先级：数据库 > 环境变量 > 默认值；读取失败一律回退默认值
 * @dependencies supplier-analysis-service/service/models, gorm.io/gorm
 * @refs service/cleanup, service/oracle, client
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"supplier-analysis-service/service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 配置键常量
const (
	// ConfigKeySessionRetentionDays 已完结（applied/cancelled）会话的保留天数
	ConfigKeySessionRetentionDays = "import.session_retention_days"

	// ConfigKeyApplyAttemptRetentionDays 提交尝试记录的保留天数
	ConfigKeyApplyAttemptRetentionDays = "import.apply_attempt_retention_days"

	// ConfigKeyStaleSessionDays 编辑中会话无操作多少天后视为废弃
	ConfigKeyStaleSessionDays = "import.stale_session_days"

	// ConfigKeyOracleTransport 画像结果的接入通道类型：kafka 或 mqtt
	ConfigKeyOracleTransport = "oracle.transport"

	// ConfigKeyOracleResultTopic 画像结果主题
	ConfigKeyOracleResultTopic = "oracle.result_topic"
)

// 默认值常量
const (
	DefaultSessionRetentionDays      = 30
	DefaultApplyAttemptRetentionDays = 90
	DefaultStaleSessionDays          = 7
	DefaultOracleTransport           = "kafka"
	DefaultOracleResultTopic         = "supplier-profiling-results"
)

// 配置键到环境变量的映射，数据库无值时回退环境变量
var envOverrides = map[string]string{
	ConfigKeySessionRetentionDays:      "SESSION_RETENTION_DAYS",
	ConfigKeyApplyAttemptRetentionDays: "APPLY_ATTEMPT_RETENTION_DAYS",
	ConfigKeyStaleSessionDays:          "STALE_SESSION_DAYS",
	ConfigKeyOracleTransport:           "ORACLE_TRANSPORT",
	ConfigKeyOracleResultTopic:         "ORACLE_RESULT_TOPIC",
}

// IsKnownConfigKey 判断配置键是否已登记
func IsKnownConfigKey(key string) bool {
	_, ok := envOverrides[key]
	return ok
}

// ConfigService 配置服务
type ConfigService struct {
	db *gorm.DB
}

// NewConfigService 创建配置服务实例
func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{db: db}
}

// GetSystemConfig 获取配置值，优先级：数据库 > 环境变量
func (s *ConfigService) GetSystemConfig(key string) (string, error) {
	var record models.SystemConfig
	err := s.db.Where("key = ?", key).First(&record).Error
	if err == nil && record.Value != "" {
		return record.Value, nil
	}

	if envKey, exists := envOverrides[key]; exists {
		if value := os.Getenv(envKey); value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("配置不存在: %s", key)
}

// SetSystemConfig 写入配置值
func (s *ConfigService) SetSystemConfig(key, value, description string) error {
	var record models.SystemConfig
	err := s.db.Where("key = ?", key).First(&record).Error
	if err != nil {
		record = models.SystemConfig{
			ID:          uuid.New().String(),
			Key:         key,
			Value:       value,
			Description: description,
		}
		return s.db.Create(&record).Error
	}

	record.Value = value
	if description != "" {
		record.Description = description
	}
	return s.db.Save(&record).Error
}

// GetAllSystemConfigs 获取所有配置项（数据库值 + 未落库的默认值）
func (s *ConfigService) GetAllSystemConfigs() ([]models.SystemConfigItem, error) {
	var records []models.SystemConfig
	if err := s.db.Find(&records).Error; err != nil {
		return nil, err
	}

	existingKeys := make(map[string]bool)
	var items []models.SystemConfigItem
	for _, record := range records {
		existingKeys[record.Key] = true
		items = append(items, models.SystemConfigItem{
			Key:         record.Key,
			Value:       record.Value,
			Description: record.Description,
			Source:      "database",
		})
	}

	defaults := []models.SystemConfigItem{
		{Key: ConfigKeySessionRetentionDays, Value: strconv.Itoa(DefaultSessionRetentionDays), Description: "已完结导入会话保留天数"},
		{Key: ConfigKeyApplyAttemptRetentionDays, Value: strconv.Itoa(DefaultApplyAttemptRetentionDays), Description: "提交尝试记录保留天数"},
		{Key: ConfigKeyStaleSessionDays, Value: strconv.Itoa(DefaultStaleSessionDays), Description: "编辑中会话废弃判定天数"},
		{Key: ConfigKeyOracleTransport, Value: DefaultOracleTransport, Description: "画像结果接入通道类型"},
		{Key: ConfigKeyOracleResultTopic, Value: DefaultOracleResultTopic, Description: "画像结果主题"},
	}
	for _, item := range defaults {
		if !existingKeys[item.Key] {
			item.Source = "default"
			items = append(items, item)
		}
	}

	return items, nil
}

// GetSessionRetentionDays 获取已完结会话保留天数
func (s *ConfigService) GetSessionRetentionDays() int {
	return s.intConfig(ConfigKeySessionRetentionDays, DefaultSessionRetentionDays)
}

// GetApplyAttemptRetentionDays 获取提交尝试记录保留天数
func (s *ConfigService) GetApplyAttemptRetentionDays() int {
	return s.intConfig(ConfigKeyApplyAttemptRetentionDays, DefaultApplyAttemptRetentionDays)
}

// GetStaleSessionDays 获取编辑中会话的废弃判定天数
func (s *ConfigService) GetStaleSessionDays() int {
	return s.intConfig(ConfigKeyStaleSessionDays, DefaultStaleSessionDays)
}

// GetOracleTransport 获取画像结果接入通道类型
func (s *ConfigService) GetOracleTransport() string {
	value, err := s.GetSystemConfig(ConfigKeyOracleTransport)
	if err != nil {
		return DefaultOracleTransport
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// GetOracleResultTopic 获取画像结果主题
func (s *ConfigService) GetOracleResultTopic() string {
	value, err := s.GetSystemConfig(ConfigKeyOracleResultTopic)
	if err != nil {
		return DefaultOracleResultTopic
	}
	return value
}

func (s *ConfigService) intConfig(key string, fallback int) int {
	valueStr, err := s.GetSystemConfig(key)
	if err != nil {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
