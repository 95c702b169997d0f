/*
 * @module client/oracle_client
 * @description 画像分析服务HTTP客户端，发起人工复核轮次请求
 * @architecture 适配器模式 - 封装Dapr服务调用与直连HTTP两种访问方式
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 构建复核请求 -> 调用画像分析服务 -> 复核结果经消息总线异步返回
 * @rules 复核为异步流程，本客户端只负责发起；结果由service/oracle监听器接收
 * @dependencies net/http, encoding/json, supplier-analysis-service/service/mapping
 * @refs client/ingestion_client.go, service/oracle/listener.go
 */

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"supplier-analysis-service/service/mapping"
)

// ProfilingOracleClient 画像分析服务客户端
type ProfilingOracleClient struct {
	appID      string
	directBase string
	httpClient *http.Client
	stats      *ClientStats
}

// reviewRequest 复核请求载荷
type reviewRequest struct {
	SessionID      string                  `json:"session_id"`
	ColumnProfiles []mapping.ColumnProfile `json:"column_profiles"`
}

// NewProfilingOracleClient 创建画像分析服务客户端
// 直连地址从环境变量ORACLE_SERVICE_URL读取，仅在非Dapr环境下使用
func NewProfilingOracleClient() *ProfilingOracleClient {
	directBase := os.Getenv("ORACLE_SERVICE_URL")
	if directBase == "" {
		directBase = "http://localhost:8082"
	}

	return &ProfilingOracleClient{
		appID:      "supplier-profiling-oracle",
		directBase: directBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		stats:      &ClientStats{},
	}
}

// RequestReview 为指定会话发起复核轮次，携带原始列画像供重新分析
func (c *ProfilingOracleClient) RequestReview(ctx context.Context, sessionID string, profiles []mapping.ColumnProfile) error {
	body, err := json.Marshal(reviewRequest{
		SessionID:      sessionID,
		ColumnProfiles: profiles,
	})
	if err != nil {
		return fmt.Errorf("序列化复核请求失败: %w", err)
	}

	url := invokeURL(c.appID, c.directBase, "profiling/review")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.stats.record(false)
		return fmt.Errorf("调用画像分析服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		c.stats.record(false)
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("画像分析服务返回异常状态码 %d: %s", resp.StatusCode, string(respBody))
	}

	c.stats.record(true)
	return nil
}

// GetStats 获取客户端统计信息
func (c *ProfilingOracleClient) GetStats() ClientStats {
	return c.stats.Snapshot()
}
