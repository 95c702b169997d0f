/*
 * @module service/cleanup/session_cleanup_service
 * @description 会话清理服务，定期清理已完结/废弃的导入会话与过期的提交尝试记录
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 定时触发 -> 读取保留配置 -> 执行清理 -> 记录结果
 * @rules 只清理 applied/cancelled 会话与超期未动的 editing 会话，绝不触碰活跃编辑
 * @dependencies supplier-analysis-service/service/config, gorm.io/gorm, github.com/robfig/cron/v3
 * @refs service/config, service/models/import_session.go
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"supplier-analysis-service/service/config"
	"supplier-analysis-service/service/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SessionCleanupService 会话清理服务
type SessionCleanupService struct {
	db            *gorm.DB
	configService *config.ConfigService
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
}

// NewSessionCleanupService 创建会话清理服务实例
func NewSessionCleanupService(db *gorm.DB, configService *config.ConfigService) *SessionCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	return &SessionCleanupService{
		db:            db,
		configService: configService,
		cron:          cron.New(cron.WithSeconds()),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// CleanupExpired 清理所有过期数据
func (s *SessionCleanupService) CleanupExpired(ctx context.Context) error {
	slog.Info("开始清理过期导入数据")
	startTime := time.Now()

	sessionDeleted, err := s.CleanupFinishedSessions(ctx, s.configService.GetSessionRetentionDays())
	if err != nil {
		slog.Error("清理已完结会话失败", "error", err)
	}

	staleDeleted, err := s.CleanupStaleSessions(ctx, s.configService.GetStaleSessionDays())
	if err != nil {
		slog.Error("清理废弃会话失败", "error", err)
	}

	attemptDeleted, err := s.CleanupApplyAttempts(ctx, s.configService.GetApplyAttemptRetentionDays())
	if err != nil {
		slog.Error("清理提交尝试记录失败", "error", err)
	}

	slog.Info("导入数据清理完成",
		"finished_sessions", sessionDeleted,
		"stale_sessions", staleDeleted,
		"apply_attempts", attemptDeleted,
		"duration_ms", time.Since(startTime).Milliseconds())
	return nil
}

// CleanupFinishedSessions 清理超过保留期的已完结会话
func (s *SessionCleanupService) CleanupFinishedSessions(ctx context.Context, retentionDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]string{models.SessionStatusApplied, models.SessionStatusCancelled}, cutoffDate).
		Delete(&models.ImportSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除已完结会话失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CleanupStaleSessions 清理长期无操作的编辑中会话
// 用户弃置的会话不会收到取消请求，按最后更新时间判定废弃
func (s *SessionCleanupService) CleanupStaleSessions(ctx context.Context, staleDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -staleDays)

	result := s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]string{models.SessionStatusEditing, models.SessionStatusNeedsReview}, cutoffDate).
		Delete(&models.ImportSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除废弃会话失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CleanupApplyAttempts 清理过期的提交尝试记录
func (s *SessionCleanupService) CleanupApplyAttempts(ctx context.Context, retentionDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoffDate).
		Delete(&models.ApplyAttempt{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除提交尝试记录失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// StartScheduledCleanup 启动定时清理任务
func (s *SessionCleanupService) StartScheduledCleanup() error {
	if s.started {
		return fmt.Errorf("会话清理调度器已经启动")
	}

	// 每天凌晨3点执行，避开入库服务的批处理高峰
	// Cron表达式：秒 分 时 日 月 周
	_, err := s.cron.AddFunc("0 0 3 * * *", func() {
		if err := s.CleanupExpired(s.ctx); err != nil {
			slog.Error("定时会话清理任务失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true
	slog.Info("会话清理调度器启动成功，将于每天凌晨3点执行")
	return nil
}

// StopScheduledCleanup 停止定时清理任务
func (s *SessionCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}

	s.cancel()
	s.cron.Stop()
	s.started = false
	slog.Info("会话清理调度器已停止")
}
