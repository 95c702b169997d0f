/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"supplier-analysis-service/service/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.ImportSession{},
		&models.ApplyAttempt{},
		&models.SystemConfig{},
		&models.SSEEvent{},
		&models.SSEConnection{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"import_sessions",
		"apply_attempts",
		"system_configs",
		"sse_events",
		"sse_connections",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// ImportSessionOption 导入会话选项函数类型
type ImportSessionOption func(*models.ImportSession)

// CreateImportSession 创建测试导入会话
func (f *TestDataFactory) CreateImportSession(opts ...ImportSessionOption) *models.ImportSession {
	session := &models.ImportSession{
		ID:         generateID("is"),
		Name:       "supplier_q3_" + generateSuffix(),
		Status:     models.SessionStatusEditing,
		TargetCase: "delay_only",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(session)
	}

	err := f.DB.Create(session).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test import session: %v", err))
	}

	return session
}

// ApplyAttemptOption 提交尝试选项函数类型
type ApplyAttemptOption func(*models.ApplyAttempt)

// CreateApplyAttempt 创建测试提交尝试记录
func (f *TestDataFactory) CreateApplyAttempt(sessionID string, opts ...ApplyAttemptOption) *models.ApplyAttempt {
	attempt := &models.ApplyAttempt{
		ID:           generateID("aa"),
		SessionID:    sessionID,
		TargetCase:   "delay_only",
		MappingCount: 3,
		Success:      true,
		Duration:     120,
		CreatedAt:    time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(attempt)
	}

	err := f.DB.Create(attempt).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test apply attempt: %v", err))
	}

	return attempt
}

// SystemConfigOption 系统配置选项函数类型
type SystemConfigOption func(*models.SystemConfig)

// CreateSystemConfig 创建测试系统配置
func (f *TestDataFactory) CreateSystemConfig(key, value string, opts ...SystemConfigOption) *models.SystemConfig {
	record := &models.SystemConfig{
		ID:          generateID("sc"),
		Key:         key,
		Value:       value,
		Description: "测试配置项",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(record)
	}

	err := f.DB.Create(record).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test system config: %v", err))
	}

	return record
}

// 辅助函数
func generateID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), generateSuffix())
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}

// TestTransaction 测试事务辅助工具
type TestTransaction struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewTestTransaction 创建测试事务
func NewTestTransaction(db *gorm.DB) *TestTransaction {
	tx := db.Begin()
	return &TestTransaction{
		db: db,
		tx: tx,
	}
}

// DB 获取事务数据库
func (tt *TestTransaction) DB() *gorm.DB {
	return tt.tx
}

// Commit 提交事务
func (tt *TestTransaction) Commit() {
	tt.tx.Commit()
}

// Rollback 回滚事务
func (tt *TestTransaction) Rollback() {
	tt.tx.Rollback()
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// AssertJSONResponse 断言JSON响应
func (h *HTTPTestHelper) AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, _ := json.Marshal(expectedBody)
		actualJSON, _ := json.Marshal(actualBody)

		assert.JSONEq(t, string(expectedJSON), string(actualJSON))
	}
}
