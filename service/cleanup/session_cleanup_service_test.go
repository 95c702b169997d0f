/*
 * @module service/cleanup/session_cleanup_service_test
 * @description 会话清理服务单元测试
 * @architecture 测试层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 构造不同状态与时间的会话 -> 执行清理 -> 断言存留情况
 * @rules 保留期内与活跃编辑中的数据绝不删除
 * @dependencies testing, stretchr/testify, testutil
 */

package cleanup

import (
	"context"
	"testing"
	"time"

	"supplier-analysis-service/service/config"
	"supplier-analysis-service/service/models"
	"supplier-analysis-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCleanupService(t *testing.T) (*SessionCleanupService, *testutil.TestDataFactory, *testutil.TestDB) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	svc := NewSessionCleanupService(tdb.DB, config.NewConfigService(tdb.DB))
	return svc, testutil.NewTestDataFactory(tdb.DB), tdb
}

func TestCleanupFinishedSessions(t *testing.T) {
	svc, factory, tdb := newTestCleanupService(t)

	old := time.Now().AddDate(0, 0, -60)
	expired := factory.CreateImportSession(func(s *models.ImportSession) {
		s.Status = models.SessionStatusApplied
	})
	// gorm会在Create时覆盖updated_at，建好后手动回拨
	require.NoError(t, tdb.DB.Model(&models.ImportSession{}).
		Where("id = ?", expired.ID).Update("updated_at", old).Error)

	factory.CreateImportSession(func(s *models.ImportSession) {
		s.Status = models.SessionStatusApplied
	})
	factory.CreateImportSession() // editing，不受此清理影响

	deleted, err := svc.CleanupFinishedSessions(context.Background(), 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var count int64
	tdb.DB.Model(&models.ImportSession{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestCleanupStaleSessions(t *testing.T) {
	svc, factory, tdb := newTestCleanupService(t)

	stale := factory.CreateImportSession()
	require.NoError(t, tdb.DB.Model(&models.ImportSession{}).
		Where("id = ?", stale.ID).Update("updated_at", time.Now().AddDate(0, 0, -10)).Error)

	active := factory.CreateImportSession()

	deleted, err := svc.CleanupStaleSessions(context.Background(), 7)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var remaining models.ImportSession
	require.NoError(t, tdb.DB.First(&remaining).Error)
	assert.Equal(t, active.ID, remaining.ID)
}

func TestCleanupApplyAttempts(t *testing.T) {
	svc, factory, tdb := newTestCleanupService(t)

	session := factory.CreateImportSession()
	factory.CreateApplyAttempt(session.ID, func(a *models.ApplyAttempt) {
		a.CreatedAt = time.Now().AddDate(0, 0, -120)
	})
	factory.CreateApplyAttempt(session.ID)

	deleted, err := svc.CleanupApplyAttempts(context.Background(), 90)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var count int64
	tdb.DB.Model(&models.ApplyAttempt{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestStartScheduledCleanupTwice(t *testing.T) {
	svc, _, _ := newTestCleanupService(t)
	t.Cleanup(svc.StopScheduledCleanup)

	require.NoError(t, svc.StartScheduledCleanup())
	assert.Error(t, svc.StartScheduledCleanup())
}
