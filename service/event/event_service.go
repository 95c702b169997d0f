/*
 * @module service/event_service
 * @description 事件管理服务，提供导入会话变更的SSE推送与数据库变更监听
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 数据库触发器通知 -> 变更解析 -> 事件构造 -> SSE推送到在线客户端
 * @rules 推送尽力而为，客户端队列满时丢弃该连接的事件；事件历史落库供回查
 * @dependencies supplier-analysis-service/service/models, gorm.io/gorm, github.com/lib/pq
 * @refs service/models/event.go, api/controllers/event_controller.go
 */

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"supplier-analysis-service/service/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const notifyChannel = "supplier_import_changes"

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// EventService 事件管理服务
type EventService struct {
	db          *gorm.DB
	connections map[string]map[string]*SSEClient // userName -> connectionID -> client
	mu          sync.RWMutex
	dbListener  *pq.Listener
	ctx         context.Context
	cancel      context.CancelFunc
}

// SSEClient SSE客户端连接
type SSEClient struct {
	ID       string
	UserName string
	Channel  chan *models.SSEEvent
	Done     chan bool
	ClientIP string
}

// NewEventService 创建事件服务实例并启动数据库监听
func NewEventService(db *gorm.DB) *EventService {
	ctx, cancel := context.WithCancel(context.Background())

	service := &EventService{
		db:          db,
		connections: make(map[string]map[string]*SSEClient),
		ctx:         ctx,
		cancel:      cancel,
	}

	if err := service.ensureChangeTrigger(); err != nil {
		slog.Error("初始化会话变更触发器失败", "error", err)
	}

	go service.startDBListener()
	go service.startConnectionJanitor()

	return service
}

// === SSE连接管理 ===

// AddSSEConnection 添加SSE连接
func (s *EventService) AddSSEConnection(userName, connectionID, clientIP string) *SSEClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections[userName] == nil {
		s.connections[userName] = make(map[string]*SSEClient)
	}

	client := &SSEClient{
		ID:       connectionID,
		UserName: userName,
		Channel:  make(chan *models.SSEEvent, 100), // 缓冲100个事件
		Done:     make(chan bool),
		ClientIP: clientIP,
	}

	s.connections[userName][connectionID] = client

	connection := &models.SSEConnection{
		UserName:     userName,
		ConnectionID: connectionID,
		ClientIP:     clientIP,
		ConnectedAt:  time.Now(),
		LastPingAt:   time.Now(),
		IsActive:     true,
	}
	s.db.Create(connection)

	slog.Info("SSE连接已建立", "user", userName, "connection_id", connectionID, "client_ip", clientIP)
	return client
}

// RemoveSSEConnection 移除SSE连接
func (s *EventService) RemoveSSEConnection(userName, connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userConnections, exists := s.connections[userName]
	if !exists {
		return
	}
	client, exists := userConnections[connectionID]
	if !exists {
		return
	}

	close(client.Done)
	delete(userConnections, connectionID)
	if len(userConnections) == 0 {
		delete(s.connections, userName)
	}

	s.db.Model(&models.SSEConnection{}).
		Where("connection_id = ?", connectionID).
		Update("is_active", false)

	slog.Info("SSE连接已断开", "user", userName, "connection_id", connectionID)
}

// SendEventToUser 向指定用户发送事件
func (s *EventService) SendEventToUser(userName string, event *models.SSEEvent) error {
	s.mu.RLock()
	userConnections, exists := s.connections[userName]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("用户 %s 没有活跃的SSE连接", userName)
	}

	event.UserName = userName
	if err := s.persistEvent(event); err != nil {
		return err
	}

	for _, client := range userConnections {
		select {
		case client.Channel <- event:
		default:
			slog.Warn("SSE事件队列已满，跳过发送", "user", userName, "connection_id", client.ID)
		}
	}

	return nil
}

// BroadcastEvent 广播事件给所有在线用户
func (s *EventService) BroadcastEvent(event *models.SSEEvent) error {
	if err := s.persistEvent(event); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for userName, userConnections := range s.connections {
		for _, client := range userConnections {
			eventCopy := *event
			eventCopy.UserName = userName

			select {
			case client.Channel <- &eventCopy:
			default:
				slog.Warn("SSE事件队列已满，跳过广播", "user", userName, "connection_id", client.ID)
			}
		}
	}

	return nil
}

// persistEvent 事件历史落库
func (s *EventService) persistEvent(event *models.SSEEvent) error {
	now := time.Now()
	event.Sent = true
	event.SentAt = &now
	if err := s.db.Create(event).Error; err != nil {
		slog.Error("保存SSE事件失败", "event_type", event.EventType, "error", err)
		return err
	}
	return nil
}

// === 数据库监听实现 ===

// startDBListener 启动PostgreSQL通知监听器
func (s *EventService) startDBListener() {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "things2024")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	s.dbListener = pq.NewListener(connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("PostgreSQL监听器事件", "event", ev, "error", err)
		}
	})

	if err := s.dbListener.Listen(notifyChannel); err != nil {
		slog.Error("监听数据库通知失败", "channel", notifyChannel, "error", err)
		return
	}

	slog.Info("数据库监听器已启动", "channel", notifyChannel)

	for {
		select {
		case notification := <-s.dbListener.Notify:
			if notification != nil {
				s.handleDBNotification(notification)
			}
		case <-s.ctx.Done():
			slog.Info("数据库监听器已停止")
			return
		}
	}
}

// handleDBNotification 将导入会话表的变更通知转换为SSE事件广播
func (s *EventService) handleDBNotification(notification *pq.Notification) {
	var changeData map[string]interface{}
	if err := json.Unmarshal([]byte(notification.Extra), &changeData); err != nil {
		slog.Error("解析数据库通知失败", "error", err)
		return
	}

	tableName, _ := changeData["table"].(string)
	if tableName != models.ImportSessionTableName {
		return
	}
	eventType, _ := changeData["type"].(string)
	recordID, _ := changeData["record_id"].(string)

	event := &models.SSEEvent{
		EventType: sessionEventType(eventType, changeData),
		SessionID: recordID,
		Data:      models.JSONB(changeData),
	}

	if err := s.BroadcastEvent(event); err != nil {
		slog.Error("广播会话变更事件失败", "session_id", recordID, "error", err)
	}
}

// sessionEventType 根据变更类型与新状态推导SSE事件类型
func sessionEventType(dbOp string, changeData map[string]interface{}) string {
	if dbOp == "INSERT" {
		return models.EventSessionOpened
	}

	newData, _ := changeData["new_data"].(map[string]interface{})
	status, _ := newData["status"].(string)
	switch status {
	case models.SessionStatusApplied:
		return models.EventSessionApplied
	case models.SessionStatusCancelled:
		return models.EventSessionCancelled
	}

	// 复审轮次增加意味着本轮建议覆盖了原会话
	oldData, _ := changeData["old_data"].(map[string]interface{})
	oldRound, _ := oldData["review_round"].(float64)
	newRound, _ := newData["review_round"].(float64)
	if newRound > oldRound {
		return models.EventSessionSuperseded
	}

	return models.EventSessionChanged
}

// ensureChangeTrigger 确保导入会话表存在变更通知函数与触发器
func (s *EventService) ensureChangeTrigger() error {
	createFunctionSQL := fmt.Sprintf(`
CREATE OR REPLACE FUNCTION notify_supplier_import_changes()
RETURNS TRIGGER AS $$
DECLARE
    payload JSON;
BEGIN
    IF TG_OP = 'DELETE' THEN
        payload := json_build_object(
            'table', TG_TABLE_NAME,
            'type', TG_OP,
            'record_id', OLD.id,
            'old_data', row_to_json(OLD),
            'timestamp', extract(epoch from now())
        );
        PERFORM pg_notify('%s', payload::text);
        RETURN OLD;
    END IF;

    IF TG_OP = 'UPDATE' THEN
        payload := json_build_object(
            'table', TG_TABLE_NAME,
            'type', TG_OP,
            'record_id', NEW.id,
            'new_data', row_to_json(NEW),
            'old_data', row_to_json(OLD),
            'timestamp', extract(epoch from now())
        );
    ELSE
        payload := json_build_object(
            'table', TG_TABLE_NAME,
            'type', TG_OP,
            'record_id', NEW.id,
            'new_data', row_to_json(NEW),
            'timestamp', extract(epoch from now())
        );
    END IF;
    PERFORM pg_notify('%s', payload::text);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;`, notifyChannel, notifyChannel)

	if err := s.db.Exec(createFunctionSQL).Error; err != nil {
		return fmt.Errorf("创建通知函数失败: %w", err)
	}

	createTriggerSQL := fmt.Sprintf(`
		CREATE OR REPLACE TRIGGER %s_notify
		AFTER INSERT OR UPDATE OR DELETE ON %s
		FOR EACH ROW
		EXECUTE FUNCTION notify_supplier_import_changes();
	`, models.ImportSessionTableName, models.ImportSessionTableName)

	if err := s.db.Exec(createTriggerSQL).Error; err != nil {
		return fmt.Errorf("创建触发器失败: %w", err)
	}

	slog.Info("会话变更触发器已就绪", "table", models.ImportSessionTableName)
	return nil
}

// startConnectionJanitor 周期清理已断开的连接
func (s *EventService) startConnectionJanitor() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupInactiveConnections()
		case <-s.ctx.Done():
			return
		}
	}
}

// cleanupInactiveConnections 清理不活跃的连接
func (s *EventService) cleanupInactiveConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userName, userConnections := range s.connections {
		for connectionID, client := range userConnections {
			select {
			case <-client.Done:
				delete(userConnections, connectionID)
				slog.Info("清理已断开的连接", "user", userName, "connection_id", connectionID)
			default:
			}
		}

		if len(userConnections) == 0 {
			delete(s.connections, userName)
		}
	}
}

// Stop 停止事件服务
func (s *EventService) Stop() {
	s.cancel()

	if s.dbListener != nil {
		s.dbListener.Close()
	}

	s.mu.Lock()
	for _, userConnections := range s.connections {
		for _, client := range userConnections {
			close(client.Done)
		}
	}
	s.connections = make(map[string]map[string]*SSEClient)
	s.mu.Unlock()

	slog.Info("事件服务已停止")
}

// GetSSEConnectionList 获取SSE连接列表
func (s *EventService) GetSSEConnectionList(page, pageSize int, userName string, isActive *bool) ([]models.SSEConnection, int64, error) {
	var connections []models.SSEConnection
	var total int64

	query := s.db.Model(&models.SSEConnection{})
	if userName != "" {
		query = query.Where("user_name = ?", userName)
	}
	if isActive != nil {
		query = query.Where("is_active = ?", *isActive)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("connected_at DESC").
		Offset(offset).Limit(pageSize).Find(&connections).Error

	return connections, total, err
}

// GetEventHistoryList 获取事件历史列表
func (s *EventService) GetEventHistoryList(page, pageSize int, sessionID, eventType string) ([]models.SSEEvent, int64, error) {
	var events []models.SSEEvent
	var total int64

	query := s.db.Model(&models.SSEEvent{})
	if sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).Limit(pageSize).Find(&events).Error

	return events, total, err
}
