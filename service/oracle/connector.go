/*
 * @module service/oracle/connector
 * @description 画像分析结果连接器抽象与Kafka实现，负责从消息总线消费画像分析服务的输出
 * @architecture 适配器模式 - 消息总线接入层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 连接broker -> 订阅结果主题 -> 循环消费 -> 投递给监听器 -> 按上下文取消退出
 * @rules 消费失败只记录日志并退避重试，单条消息处理失败不阻塞后续消费
 * @dependencies github.com/segmentio/kafka-go
 * @refs service/oracle/listener.go, service/oracle/mqtt_connector.go
 */

package oracle

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ResultHandler 画像结果消息处理函数类型，payload为原始JSON字节
type ResultHandler func(payload []byte) error

// ResultConnector 画像结果连接器接口，按配置选择Kafka或MQTT实现
type ResultConnector interface {
	// Start 开始消费结果主题，阻塞直到ctx取消或发生不可恢复错误
	Start(ctx context.Context, handler ResultHandler) error
	// Stop 断开底层连接并释放资源
	Stop() error
}

// KafkaResultConnector 基于Kafka消费组的画像结果连接器
type KafkaResultConnector struct {
	brokers []string
	topic   string
	groupID string
	reader  *kafka.Reader
	mutex   sync.Mutex
}

// NewKafkaResultConnector 创建Kafka结果连接器，brokers从环境变量KAFKA_BROKERS读取
func NewKafkaResultConnector(topic string) *KafkaResultConnector {
	brokers := strings.Split(getEnvWithDefault("KAFKA_BROKERS", "localhost:9092"), ",")
	return &KafkaResultConnector{
		brokers: brokers,
		topic:   topic,
		groupID: getEnvWithDefault("KAFKA_GROUP_ID", "supplier-analysis-service"),
	}
}

// Start 启动消费循环，读取失败时退避一秒后重试
func (kc *KafkaResultConnector) Start(ctx context.Context, handler ResultHandler) error {
	kc.mutex.Lock()
	kc.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kc.brokers,
		Topic:          kc.topic,
		GroupID:        kc.groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	kc.mutex.Unlock()

	slog.Info("Kafka结果连接器已启动", "brokers", kc.brokers, "topic", kc.topic, "group_id", kc.groupID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("停止消费结果主题", "topic", kc.topic)
			return nil
		default:
			msg, err := kc.reader.ReadMessage(ctx)
			if err != nil {
				if err == context.Canceled || ctx.Err() != nil {
					return nil
				}
				slog.Error("读取画像结果消息失败", "topic", kc.topic, "error", err)
				time.Sleep(time.Second)
				continue
			}

			if err := handler(msg.Value); err != nil {
				slog.Error("处理画像结果消息失败",
					"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			}
		}
	}
}

// Stop 关闭Kafka reader
func (kc *KafkaResultConnector) Stop() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if kc.reader == nil {
		return nil
	}
	err := kc.reader.Close()
	kc.reader = nil
	return err
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
