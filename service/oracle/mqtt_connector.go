/*
 * @module service/oracle/mqtt_connector
 * @description 画像分析结果的MQTT连接器实现，用于边缘部署场景下经MQTT broker接收画像结果
 * @architecture 适配器模式 - 消息总线接入层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 连接broker -> 订阅结果主题 -> 回调投递 -> 断线自动重连 -> 按上下文取消退出
 * @rules QoS固定为1，保证画像结果至少送达一次；重复结果由会话服务按数据集名幂等处理
 * @dependencies github.com/eclipse/paho.mqtt.golang
 * @refs service/oracle/connector.go, service/oracle/listener.go
 */

package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTResultConnector 基于MQTT订阅的画像结果连接器
type MQTTResultConnector struct {
	broker      string
	clientID    string
	topic       string
	client      mqtt.Client
	mutex       sync.Mutex
	isConnected bool
}

// NewMQTTResultConnector 创建MQTT结果连接器，broker从环境变量MQTT_BROKER读取
func NewMQTTResultConnector(topic string) *MQTTResultConnector {
	mc := &MQTTResultConnector{
		broker:   getEnvWithDefault("MQTT_BROKER", "tcp://localhost:1883"),
		clientID: getEnvWithDefault("MQTT_CLIENT_ID", "supplier-analysis-service"),
		topic:    topic,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(mc.broker)
	opts.SetClientID(mc.clientID)
	if username := getEnvWithDefault("MQTT_USERNAME", ""); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(getEnvWithDefault("MQTT_PASSWORD", ""))
	}
	opts.SetCleanSession(false)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(mc.onConnected)
	opts.SetConnectionLostHandler(mc.onConnectionLost)

	mc.client = mqtt.NewClient(opts)
	return mc
}

// Start 连接broker并订阅结果主题，阻塞直到ctx取消
func (mc *MQTTResultConnector) Start(ctx context.Context, handler ResultHandler) error {
	if token := mc.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT连接失败: %v", token.Error())
	}

	messageHandler := func(client mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Payload()); err != nil {
			slog.Error("处理画像结果消息失败", "topic", msg.Topic(), "error", err)
		}
	}

	if token := mc.client.Subscribe(mc.topic, 1, messageHandler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("订阅结果主题失败 topic=%s: %v", mc.topic, token.Error())
	}

	slog.Info("MQTT结果连接器已启动", "broker", mc.broker, "topic", mc.topic)

	<-ctx.Done()
	slog.Info("停止消费结果主题", "topic", mc.topic)
	return nil
}

// Stop 取消订阅并断开连接
func (mc *MQTTResultConnector) Stop() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if !mc.client.IsConnected() {
		return nil
	}

	if token := mc.client.Unsubscribe(mc.topic); token.Wait() && token.Error() != nil {
		slog.Error("取消订阅失败", "topic", mc.topic, "error", token.Error())
	}
	mc.client.Disconnect(250)
	mc.isConnected = false
	return nil
}

func (mc *MQTTResultConnector) onConnected(client mqtt.Client) {
	mc.mutex.Lock()
	mc.isConnected = true
	mc.mutex.Unlock()
	slog.Info("MQTT连接已建立", "broker", mc.broker)
}

func (mc *MQTTResultConnector) onConnectionLost(client mqtt.Client, err error) {
	mc.mutex.Lock()
	mc.isConnected = false
	mc.mutex.Unlock()
	slog.Warn("MQTT连接丢失，等待自动重连", "broker", mc.broker, "error", err)
}
