/*
 * @module api/controllers/dashboard_controller
 * @description Dashboard统计数据控制器，提供导入会话总览与关键指标数据
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow HTTP请求处理流程
 * @rules 数据库统计实时查询，指标增量来自VictoriaMetrics，监控不可达时降级为仅数据库统计
 * @dependencies supplier-analysis-service/service, supplier-analysis-service/monitor_client, github.com/go-chi/render
 * @refs api/routes.go
 */

package controllers

import (
	"net/http"
	"time"

	"supplier-analysis-service/monitor_client"
	"supplier-analysis-service/service"
	"supplier-analysis-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"
)

// DashboardController Dashboard控制器
type DashboardController struct {
	db *gorm.DB
}

// NewDashboardController 创建Dashboard控制器实例
func NewDashboardController() *DashboardController {
	return &DashboardController{
		db: service.DB,
	}
}

// DashboardOverviewResponse Dashboard总览响应
type DashboardOverviewResponse struct {
	SessionStats SessionStats  `json:"session_stats"`
	ApplyStats   ApplyStats    `json:"apply_stats"`
	MetricStats  *MetricStats  `json:"metric_stats,omitempty"` // 监控不可达时为空
	RecentEvents []RecentEvent `json:"recent_events"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// SessionStats 导入会话统计
type SessionStats struct {
	Total       int64 `json:"total"`        // 会话总数
	Editing     int64 `json:"editing"`      // 编辑中
	NeedsReview int64 `json:"needs_review"` // 等待复核
	Applied     int64 `json:"applied"`      // 已提交
	Cancelled   int64 `json:"cancelled"`    // 已取消
}

// ApplyStats 提交尝试统计
type ApplyStats struct {
	TotalAttempts    int64 `json:"total_attempts"`    // 提交尝试总数
	AcceptedAttempts int64 `json:"accepted_attempts"` // 成功入库次数
	RejectedAttempts int64 `json:"rejected_attempts"` // 行级拒绝次数
}

// MetricStats 最近24小时的指标增量
type MetricStats struct {
	SessionsOpened float64 `json:"sessions_opened"`
	ValidationsRun float64 `json:"validations_run"`
	AppliesTotal   float64 `json:"applies_total"`
}

// RecentEvent 最近事件摘要
type RecentEvent struct {
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GetOverview 获取Dashboard总览
// @Summary 获取Dashboard总览
// @Description 获取导入会话状态分布、提交结果统计与最近24小时指标增量
// @Tags Dashboard
// @Produce json
// @Success 200 {object} APIResponse{data=DashboardOverviewResponse}
// @Router /dashboard/overview [get]
func (c *DashboardController) GetOverview(w http.ResponseWriter, r *http.Request) {
	response := DashboardOverviewResponse{
		UpdatedAt: time.Now(),
	}

	if err := c.collectSessionStats(&response.SessionStats); err != nil {
		render.JSON(w, r, InternalErrorResponse("获取会话统计失败", err))
		return
	}
	if err := c.collectApplyStats(&response.ApplyStats); err != nil {
		render.JSON(w, r, InternalErrorResponse("获取提交统计失败", err))
		return
	}

	// 指标属于锦上添花，查询失败不影响总览返回
	response.MetricStats = c.collectMetricStats(r)
	response.RecentEvents = c.collectRecentEvents()

	render.JSON(w, r, SuccessResponse("获取Dashboard总览成功", response))
}

// GetSessionLogs 获取指定会话的服务日志
// @Summary 获取会话日志
// @Description 从Loki检索指定导入会话的服务日志
// @Tags Dashboard
// @Produce json
// @Param id path string true "会话ID"
// @Param hours query int false "回溯小时数" default(24)
// @Success 200 {object} APIResponse
// @Router /dashboard/sessions/{id}/logs [get]
func (c *DashboardController) GetSessionLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		if parsed, err := time.ParseDuration(h + "h"); err == nil && parsed > 0 {
			hours = int(parsed.Hours())
		}
	}

	logs, err := monitor_client.SessionLogs(r.Context(), id, 200, hours)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("检索会话日志失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("检索会话日志成功", logs))
}

func (c *DashboardController) collectSessionStats(stats *SessionStats) error {
	if err := c.db.Model(&models.ImportSession{}).Count(&stats.Total).Error; err != nil {
		return err
	}

	counts := []struct {
		status string
		target *int64
	}{
		{models.SessionStatusEditing, &stats.Editing},
		{models.SessionStatusNeedsReview, &stats.NeedsReview},
		{models.SessionStatusApplied, &stats.Applied},
		{models.SessionStatusCancelled, &stats.Cancelled},
	}
	for _, item := range counts {
		if err := c.db.Model(&models.ImportSession{}).
			Where("status = ?", item.status).Count(item.target).Error; err != nil {
			return err
		}
	}
	return nil
}

func (c *DashboardController) collectApplyStats(stats *ApplyStats) error {
	if err := c.db.Model(&models.ApplyAttempt{}).Count(&stats.TotalAttempts).Error; err != nil {
		return err
	}
	if err := c.db.Model(&models.ApplyAttempt{}).
		Where("success = ?", true).Count(&stats.AcceptedAttempts).Error; err != nil {
		return err
	}
	stats.RejectedAttempts = stats.TotalAttempts - stats.AcceptedAttempts
	return nil
}

func (c *DashboardController) collectMetricStats(r *http.Request) *MetricStats {
	window := 24 * time.Hour
	opened, err := monitor_client.CounterIncrease(r.Context(), "import_sessions_opened_total", window)
	if err != nil {
		return nil
	}
	validations, err := monitor_client.CounterIncrease(r.Context(), "import_validations_run_total", window)
	if err != nil {
		return nil
	}
	applies, err := monitor_client.CounterIncrease(r.Context(), "import_applies_total", window)
	if err != nil {
		return nil
	}

	return &MetricStats{
		SessionsOpened: opened,
		ValidationsRun: validations,
		AppliesTotal:   applies,
	}
}

func (c *DashboardController) collectRecentEvents() []RecentEvent {
	var events []models.SSEEvent
	if err := c.db.Order("created_at DESC").Limit(10).Find(&events).Error; err != nil {
		return nil
	}

	recent := make([]RecentEvent, 0, len(events))
	for _, ev := range events {
		recent = append(recent, RecentEvent{
			EventType: ev.EventType,
			SessionID: ev.SessionID,
			CreatedAt: ev.CreatedAt,
		})
	}
	return recent
}
