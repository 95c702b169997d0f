/*
 * @module service/oracle/listener
 * @description 画像结果监听器，消费画像分析服务产出的列映射建议，驱动导入会话的创建与复审接续
 * @architecture 分层架构 - 消息接入层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 收到结果消息 -> 解析载荷 -> 无session_id则开启新会话 / 有session_id则接续复审会话
 * @rules 角色归一化由会话服务负责，监听器只做载荷解析与路由；解析失败的消息丢弃并计数
 * @dependencies supplier-analysis-service/service/mapping, supplier-analysis-service/service/config,
 *               github.com/prometheus/client_golang/prometheus
 * @refs service/oracle/connector.go, service/mapping/session_service.go
 */

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"supplier-analysis-service/service/config"
	"supplier-analysis-service/service/mapping"

	"github.com/prometheus/client_golang/prometheus"
)

var oracleResultsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oracle_results_received_total",
		Help: "画像分析结果消息接收总数，按处理结果分类",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(oracleResultsTotal)
}

// ProfilingResultMessage 画像分析服务输出的结果消息载荷
// session_id为空表示新导入，非空表示人工复审后对既有会话的接续
type ProfilingResultMessage struct {
	DatasetName string                 `json:"dataset_name"`
	SessionID   string                 `json:"session_id,omitempty"`
	Result      mapping.AnalysisResult `json:"result"`
}

// ResultListener 画像结果监听器
type ResultListener struct {
	sessions  *mapping.ImportSessionService
	connector ResultConnector
	cancel    context.CancelFunc
}

// NewResultListener 按系统配置选择传输方式创建监听器
func NewResultListener(sessions *mapping.ImportSessionService, configService *config.ConfigService) *ResultListener {
	topic := configService.GetOracleResultTopic()

	var connector ResultConnector
	switch transport := configService.GetOracleTransport(); transport {
	case "mqtt":
		connector = NewMQTTResultConnector(topic)
	default:
		connector = NewKafkaResultConnector(topic)
	}

	return &ResultListener{
		sessions:  sessions,
		connector: connector,
	}
}

// Start 后台启动消费循环
func (l *ResultListener) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	go func() {
		if err := l.connector.Start(ctx, l.handleMessage); err != nil {
			slog.Error("画像结果连接器退出", "error", err)
		}
	}()
}

// Stop 停止消费并断开连接
func (l *ResultListener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	if err := l.connector.Stop(); err != nil {
		slog.Error("关闭画像结果连接器失败", "error", err)
	}
}

// handleMessage 解析单条结果消息并路由到会话服务
func (l *ResultListener) handleMessage(payload []byte) error {
	var msg ProfilingResultMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		oracleResultsTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("解析画像结果载荷失败: %w", err)
	}

	if msg.DatasetName == "" && msg.SessionID == "" {
		oracleResultsTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("画像结果载荷缺少dataset_name与session_id")
	}

	if msg.SessionID != "" {
		view, err := l.sessions.SupersedeSession(msg.SessionID, &msg.Result)
		if err != nil {
			oracleResultsTotal.WithLabelValues("supersede_failed").Inc()
			return fmt.Errorf("接续复审会话失败 session_id=%s: %w", msg.SessionID, err)
		}
		oracleResultsTotal.WithLabelValues("superseded").Inc()
		slog.Info("复审会话已接续", "session_id", view.ID, "review_round", view.ReviewRound)
		return nil
	}

	view, err := l.sessions.OpenSession(msg.DatasetName, &msg.Result)
	if err != nil {
		oracleResultsTotal.WithLabelValues("open_failed").Inc()
		return fmt.Errorf("开启导入会话失败 dataset=%s: %w", msg.DatasetName, err)
	}
	oracleResultsTotal.WithLabelValues("opened").Inc()
	slog.Info("导入会话已开启", "session_id", view.ID, "dataset", msg.DatasetName,
		"detected_case", view.DetectedCase)
	return nil
}
