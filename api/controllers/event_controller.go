/*
 * @module api/controllers/event_controller
 * @description 事件管理控制器，提供SSE连接接入、事件推送与历史查询API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow HTTP请求 -> 事件服务 -> SSE推送/历史查询
 * @rules SSE连接按用户名分组，会话变更事件默认广播给所有在线用户
 * @dependencies supplier-analysis-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/event/event_service.go
 */

package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"supplier-analysis-service/service"
	"supplier-analysis-service/service/event"
	"supplier-analysis-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// EventController 事件管理控制器
type EventController struct {
	eventService *event.EventService
}

// NewEventController 创建事件控制器实例
func NewEventController() *EventController {
	return &EventController{
		eventService: service.GlobalEventService,
	}
}

// HandleSSE 处理SSE连接
// @Summary 建立SSE连接
// @Description 前端页面通过此接口建立SSE连接，接收导入会话变更的实时推送
// @Tags 事件管理
// @Param user_name path string true "用户名"
// @Success 200 {string} string "SSE事件流"
// @Router /sse/{user_name} [get]
func (c *EventController) HandleSSE(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "user_name")
	if userName == "" {
		http.Error(w, "用户名不能为空", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	connectionID := uuid.New().String()
	clientIP := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP = forwarded
	}

	client := c.eventService.AddSSEConnection(userName, connectionID, clientIP)
	defer c.eventService.RemoveSSEConnection(userName, connectionID)

	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"connection_id\":\"%s\",\"timestamp\":\"%s\"}\n\n",
		connectionID, time.Now().Format(time.RFC3339))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	for {
		select {
		case ev := <-client.Channel:
			fmt.Fprintf(w, "data: %s\n\n", toJSON(ev))
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-client.Done:
			return

		case <-r.Context().Done():
			return
		}
	}
}

// SendEventRequest 发送事件请求
type SendEventRequest struct {
	UserName  string                 `json:"user_name" example:"admin"`
	EventType string                 `json:"event_type" example:"session_changed"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data"`
}

// SendEvent 发送事件给指定用户
// @Summary 发送事件
// @Description 向指定用户发送SSE事件
// @Tags 事件管理
// @Accept json
// @Produce json
// @Param request body SendEventRequest true "发送事件请求"
// @Success 200 {object} APIResponse
// @Router /events/send [post]
func (c *EventController) SendEvent(w http.ResponseWriter, r *http.Request) {
	var req SendEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}

	if req.UserName == "" {
		render.JSON(w, r, BadRequestResponse("用户名不能为空", nil))
		return
	}
	if req.EventType == "" {
		render.JSON(w, r, BadRequestResponse("事件类型不能为空", nil))
		return
	}

	ev := &models.SSEEvent{
		EventType: req.EventType,
		UserName:  req.UserName,
		SessionID: req.SessionID,
		Data:      models.JSONB(req.Data),
		CreatedAt: time.Now(),
	}

	if err := c.eventService.SendEventToUser(req.UserName, ev); err != nil {
		render.JSON(w, r, InternalErrorResponse("发送事件失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("事件发送成功", map[string]interface{}{
		"event_id": ev.ID,
	}))
}

// GetSSEConnectionList 获取SSE连接列表
// @Summary 获取SSE连接列表
// @Description 分页获取SSE连接列表，支持按用户名和连接状态过滤
// @Tags 事件管理
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param user_name query string false "用户名过滤"
// @Param is_active query bool false "连接状态过滤"
// @Success 200 {object} PaginatedResponse
// @Router /events/connections [get]
func (c *EventController) GetSSEConnectionList(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	userName := r.URL.Query().Get("user_name")

	var isActive *bool
	if v := r.URL.Query().Get("is_active"); v != "" {
		parsed := v == "true"
		isActive = &parsed
	}

	connections, total, err := c.eventService.GetSSEConnectionList(page, size, userName, isActive)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取SSE连接列表失败", err))
		return
	}

	render.JSON(w, r, SuccessPaginatedResponse("获取SSE连接列表成功", connections, total, page, size))
}

// GetEventHistoryList 获取事件历史列表
// @Summary 获取事件历史
// @Description 分页获取已推送的事件历史，支持按会话与事件类型过滤
// @Tags 事件管理
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param session_id query string false "会话ID过滤"
// @Param event_type query string false "事件类型过滤"
// @Success 200 {object} PaginatedResponse
// @Router /events/history [get]
func (c *EventController) GetEventHistoryList(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	sessionID := r.URL.Query().Get("session_id")
	eventType := r.URL.Query().Get("event_type")

	events, total, err := c.eventService.GetEventHistoryList(page, size, sessionID, eventType)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取事件历史失败", err))
		return
	}

	render.JSON(w, r, SuccessPaginatedResponse("获取事件历史成功", events, total, page, size))
}

// pageParams 解析分页查询参数
func pageParams(r *http.Request) (int, int) {
	page := 1
	size := 10
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 && s <= 100 {
		size = s
	}
	return page, size
}

func toJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
