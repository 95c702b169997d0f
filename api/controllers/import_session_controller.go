/*
 * @module api/controllers/import_session_controller
 * @description 导入会话控制器，提供会话生命周期管理、角色改派、派生指标配置与提交入库API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow HTTP请求 -> 会话服务 -> 校验报告随响应返回前端
 * @rules 每次变更请求都返回完整会话视图，前端据此刷新校验横幅与提交按钮状态
 * @dependencies supplier-analysis-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/mapping/session_service.go
 */

package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"supplier-analysis-service/service"
	"supplier-analysis-service/service/mapping"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ImportSessionController 导入会话控制器
type ImportSessionController struct {
	sessions *mapping.ImportSessionService
}

// NewImportSessionController 创建导入会话控制器实例
func NewImportSessionController() *ImportSessionController {
	return &ImportSessionController{
		sessions: service.GlobalSessionService,
	}
}

// OpenSessionRequest 手工开启会话请求
type OpenSessionRequest struct {
	Name   string                  `json:"name"`
	Result *mapping.AnalysisResult `json:"result"`
}

// SetRoleRequest 角色改派请求
type SetRoleRequest struct {
	Role string `json:"role"`
}

// SetCaseRequest 分析场景切换请求
type SetCaseRequest struct {
	Case string `json:"case"`
}

// SetColumnRequest 派生指标列选择请求
type SetColumnRequest struct {
	Column string `json:"column"`
}

// SetDenominatorTypeRequest 分母语义切换请求
type SetDenominatorTypeRequest struct {
	Type string `json:"type"`
}

// ListSessions 获取会话列表
// @Summary 获取导入会话列表
// @Description 分页获取导入会话，可按状态过滤
// @Tags 导入会话
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(10)
// @Param status query string false "会话状态" Enums(editing,needs_review,applied,cancelled)
// @Success 200 {object} PaginatedResponse
// @Router /import-sessions [get]
func (c *ImportSessionController) ListSessions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 || size > 100 {
		size = 10
	}
	status := r.URL.Query().Get("status")

	records, total, err := c.sessions.ListSessions(page, size, status)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取会话列表失败", err))
		return
	}

	render.JSON(w, r, SuccessPaginatedResponse("获取会话列表成功", records, total, page, size))
}

// OpenSession 手工开启导入会话
// @Summary 开启导入会话
// @Description 基于画像分析结果开启新的导入会话，常规流程由消息总线触发，此接口供调试与重放使用
// @Tags 导入会话
// @Accept json
// @Produce json
// @Param request body OpenSessionRequest true "会话名称与画像分析结果"
// @Success 200 {object} APIResponse{data=mapping.SessionView}
// @Router /import-sessions [post]
func (c *ImportSessionController) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if req.Result == nil {
		render.JSON(w, r, BadRequestResponse("画像分析结果不能为空", nil))
		return
	}

	view, err := c.sessions.OpenSession(req.Name, req.Result)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("开启会话失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("开启会话成功", view))
}

// GetSession 获取会话详情
// @Summary 获取会话详情
// @Description 获取会话完整视图，包括映射、派生指标配置与当前校验报告
// @Tags 导入会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} APIResponse{data=mapping.SessionView}
// @Router /import-sessions/{id} [get]
func (c *ImportSessionController) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := c.sessions.GetSession(id)
	if err != nil {
		render.JSON(w, r, NotFoundResponse("会话不存在", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取会话成功", view))
}

// SetRole 改派列角色
// @Summary 改派列角色
// @Description 将指定源列改派为新角色，互斥角色的旧持有列自动回退为忽略
// @Tags 导入会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param column path string true "源列名"
// @Param request body SetRoleRequest true "目标角色"
// @Success 200 {object} APIResponse{data=mapping.SessionView}
// @Router /import-sessions/{id}/mappings/{column} [put]
func (c *ImportSessionController) SetRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	column := chi.URLParam(r, "column")

	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	view, err := c.sessions.SetRole(id, column, req.Role)
	if err != nil {
		render.JSON(w, r, c.mutationError("改派角色失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("改派角色成功", view))
}

// SetCase 切换分析场景
// @Summary 切换分析场景
// @Description 切换会话的目标分析场景并重新校验
// @Tags 导入会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body SetCaseRequest true "目标场景"
// @Success 200 {object} APIResponse{data=mapping.SessionView}
// @Router /import-sessions/{id}/case [put]
func (c *ImportSessionController) SetCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	view, err := c.sessions.SetCase(id, req.Case)
	if err != nil {
		render.JSON(w, r, c.mutationError("切换分析场景失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("切换分析场景成功", view))
}

// SetDefectiveColumn 选择不良数列
// @Summary 选择不良数列
// @Description 为派生不良率指定不良计数列
// @Tags 导入会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body SetColumnRequest true "源列名"
// @Success 200 {object} APIResponse{data=mapping.SessionView}
// @Router /import-sessions/{id}/derived/defective-column [put]
func (c *ImportSessionController) SetDefectiveColumn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	view, err := c.sessions.SetDefectiveColumn(id, req.Column)
	if err != nil {
		render.JSON(w, r, c.mutationError("选择不良数列失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("选择不良数列成功", view))
}

// SetDenominatorColumn 选择分母列
// @Summary 选择分母列
// @Description 为派生不良率指定总数或合格数列
// @Tags 导入会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body SetColumnRequest true "源列名"
// @Success 200 {object} APIResponse{data=mapping.SessionView}
// @Router /import-sessions/{id}/derived/denominator-column [put]
func (c *ImportSessionController) SetDenominatorColumn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	view, err := c.sessions.SetDenominatorColumn(id, req.Column)
	if err != nil {
		render.JSON(w, r, c.mutationError("选择分母列失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("选择分母列成功", view))
}

// SetDenominatorType 切换分母语义
// @Summary 切换分母语义
// @Description 切换分母列语义为总数或合格数，计算公式随之变化
// @Tags 导入会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body SetDenominatorTypeRequest true "分母语义" Enums(total,non_defective)
// @Success 200 {object} APIResponse{data=mapping.SessionView}
// @Router /import-sessions/{id}/derived/denominator-type [put]
func (c *ImportSessionController) SetDenominatorType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetDenominatorTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	denomType := mapping.DenominatorType(req.Type)
	if denomType != mapping.DenominatorTotal && denomType != mapping.DenominatorNonDefective {
		render.JSON(w, r, BadRequestResponse("不支持的分母语义: "+req.Type, nil))
		return
	}

	view, err := c.sessions.SetDenominatorType(id, denomType)
	if err != nil {
		render.JSON(w, r, c.mutationError("切换分母语义失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("切换分母语义成功", view))
}

// Apply 提交映射方案入库
// @Summary 提交映射方案
// @Description 校验通过后将映射方案提交到入库服务，行级拒绝时会话保留供修正重提
// @Tags 导入会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} APIResponse{data=mapping.SessionView}
// @Router /import-sessions/{id}/apply [post]
func (c *ImportSessionController) Apply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := c.sessions.Apply(r.Context(), id)
	if err != nil {
		render.JSON(w, r, c.mutationError("提交映射方案失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("提交映射方案完成", view))
}

// RequestReview 发起人工复核
// @Summary 发起人工复核
// @Description 请求画像分析服务对会话重新分析，结果经消息总线异步返回
// @Tags 导入会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} APIResponse{data=mapping.SessionView}
// @Router /import-sessions/{id}/review [post]
func (c *ImportSessionController) RequestReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := c.sessions.RequestReview(r.Context(), id)
	if err != nil {
		render.JSON(w, r, c.mutationError("发起复核失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("发起复核成功", view))
}

// CancelSession 取消会话
// @Summary 取消导入会话
// @Description 取消会话并丢弃全部编辑内容
// @Tags 导入会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} APIResponse
// @Router /import-sessions/{id} [delete]
func (c *ImportSessionController) CancelSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.sessions.CancelSession(id); err != nil {
		render.JSON(w, r, c.mutationError("取消会话失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("取消会话成功", nil))
}

// mutationError 将会话服务错误归类为合适的响应
func (c *ImportSessionController) mutationError(msg string, err error) *APIResponse {
	switch {
	case strings.Contains(err.Error(), "不存在"):
		return NotFoundResponse(msg, err)
	case strings.Contains(err.Error(), "未通过验证"),
		strings.Contains(err.Error(), "正在提交"),
		strings.Contains(err.Error(), "不可再编辑"):
		return ConflictResponse(msg, err)
	case strings.Contains(err.Error(), "未知的"):
		return BadRequestResponse(msg, err)
	default:
		return InternalErrorResponse(msg, err)
	}
}
