/*
 * @module service/oracle/listener_test
 * @description 画像结果监听器测试，覆盖新会话开启、复审接续与畸形载荷拒绝
 * @architecture 测试层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 构造载荷 -> 调用消息处理 -> 断言会话状态
 * @rules 使用内存sqlite，不依赖真实消息总线
 * @dependencies testing, testify, gorm.io/driver/sqlite
 * @refs listener.go
 */

package oracle

import (
	"encoding/json"
	"testing"

	"supplier-analysis-service/service/mapping"
	"supplier-analysis-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestListener(t *testing.T) (*ResultListener, *mapping.ImportSessionService, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ImportSession{}, &models.ApplyAttempt{}))

	sessions := mapping.NewImportSessionService(db, nil, nil, nil)
	return &ResultListener{sessions: sessions}, sessions, db
}

func sampleResult() mapping.AnalysisResult {
	return mapping.AnalysisResult{
		Mappings: []mapping.RoleMapping{
			{SourceColumn: "供应商", TargetRole: "supplier", Confidence: 0.94},
			{SourceColumn: "不良数", TargetRole: "ColumnRole.DEFECTIVE_COUNT", Confidence: 0.81},
		},
		ColumnAnalysis: []mapping.ColumnProfile{
			{Column: "供应商", DetectedType: "string"},
			{Column: "不良数", DetectedType: "integer"},
		},
		DetectedCase: mapping.CaseDefectsOnly,
	}
}

func TestHandleMessageOpensSession(t *testing.T) {
	listener, _, db := newTestListener(t)

	payload, err := json.Marshal(ProfilingResultMessage{
		DatasetName: "q3_supplier_report.xlsx",
		Result:      sampleResult(),
	})
	require.NoError(t, err)

	assert.NoError(t, listener.handleMessage(payload))

	var count int64
	db.Model(&models.ImportSession{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestHandleMessageNormalizesNamespacedRoles(t *testing.T) {
	listener, sessions, db := newTestListener(t)

	payload, _ := json.Marshal(ProfilingResultMessage{
		DatasetName: "q3_supplier_report.xlsx",
		Result:      sampleResult(),
	})
	require.NoError(t, listener.handleMessage(payload))

	var record models.ImportSession
	require.NoError(t, db.First(&record).Error)
	view, err := sessions.GetSession(record.ID)
	require.NoError(t, err)

	// 命名空间形式的角色在会话开启时归一化为短名
	for _, m := range view.Mappings {
		if m.SourceColumn == "不良数" {
			assert.Equal(t, mapping.RoleDefectiveCount, m.TargetRole)
		}
	}
}

func TestHandleMessageSupersedesReviewedSession(t *testing.T) {
	listener, sessions, db := newTestListener(t)

	open, _ := json.Marshal(ProfilingResultMessage{
		DatasetName: "q3_supplier_report.xlsx",
		Result:      sampleResult(),
	})
	require.NoError(t, listener.handleMessage(open))

	var record models.ImportSession
	require.NoError(t, db.First(&record).Error)

	revised := sampleResult()
	revised.Mappings[1].TargetRole = "quality_score"
	supersede, _ := json.Marshal(ProfilingResultMessage{
		SessionID: record.ID,
		Result:    revised,
	})
	require.NoError(t, listener.handleMessage(supersede))

	view, err := sessions.GetSession(record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.ReviewRound)
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	listener, _, _ := newTestListener(t)

	assert.Error(t, listener.handleMessage([]byte("not json")))
	assert.Error(t, listener.handleMessage([]byte(`{"result":{}}`)))
}

func TestHandleMessageSupersedeUnknownSession(t *testing.T) {
	listener, _, _ := newTestListener(t)

	payload, _ := json.Marshal(ProfilingResultMessage{
		SessionID: "no-such-session",
		Result:    sampleResult(),
	})
	assert.Error(t, listener.handleMessage(payload))
}
