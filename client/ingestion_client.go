/*
 * @module client/ingestion_client
 * @description 入库服务HTTP客户端，提交确认后的角色映射并接收入库结果
 * @architecture 适配器模式 - 封装Dapr服务调用与直连HTTP两种访问方式
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 构建提交载荷 -> Dapr sidecar或直连URL发起请求 -> 解析入库结果/行级拒绝
 * @rules Dapr环境优先走sidecar服务调用；422视为入库拒绝而非调用失败，调用方据此保留会话
 * @dependencies net/http, encoding/json, supplier-analysis-service/service/mapping
 * @refs service/mapping/session_service.go, client/oracle_client.go
 */

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"supplier-analysis-service/service/mapping"
)

// ClientStats 客户端统计信息
type ClientStats struct {
	RequestCount    int64     `json:"request_count"`     // 请求总数
	SuccessCount    int64     `json:"success_count"`     // 成功请求数
	ErrorCount      int64     `json:"error_count"`       // 错误请求数
	LastRequestTime time.Time `json:"last_request_time"` // 最后请求时间
	mutex           sync.RWMutex
}

func (s *ClientStats) record(success bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.RequestCount++
	if success {
		s.SuccessCount++
	} else {
		s.ErrorCount++
	}
	s.LastRequestTime = time.Now()
}

// Snapshot 返回统计信息副本
func (s *ClientStats) Snapshot() ClientStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return ClientStats{
		RequestCount:    s.RequestCount,
		SuccessCount:    s.SuccessCount,
		ErrorCount:      s.ErrorCount,
		LastRequestTime: s.LastRequestTime,
	}
}

// isDaprEnvironment 检查是否在 Dapr 环境中
func isDaprEnvironment() bool {
	return os.Getenv("DAPR_HTTP_PORT") != "" || os.Getenv("DAPR_GRPC_PORT") != ""
}

// invokeURL 构建目标服务的请求URL，Dapr环境走sidecar服务调用
func invokeURL(appID, directBase, method string) string {
	if isDaprEnvironment() {
		daprPort := os.Getenv("DAPR_HTTP_PORT")
		if daprPort == "" {
			daprPort = "3500"
		}
		return fmt.Sprintf("http://localhost:%s/v1.0/invoke/%s/method/%s", daprPort, appID, method)
	}
	return fmt.Sprintf("%s/%s", directBase, method)
}

// IngestionClient 入库服务客户端
type IngestionClient struct {
	appID      string
	directBase string
	httpClient *http.Client
	stats      *ClientStats
}

// NewIngestionClient 创建入库服务客户端
// 直连地址从环境变量INGESTION_SERVICE_URL读取，仅在非Dapr环境下使用
func NewIngestionClient() *IngestionClient {
	directBase := os.Getenv("INGESTION_SERVICE_URL")
	if directBase == "" {
		directBase = "http://localhost:8081"
	}

	return &IngestionClient{
		appID:      "supplier-ingestion-service",
		directBase: directBase,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		stats:      &ClientStats{},
	}
}

// Apply 提交映射方案到入库服务
// HTTP 422表示入库服务按行级校验拒绝了本次提交，返回含拒绝明细的响应而非错误
func (c *IngestionClient) Apply(ctx context.Context, req *mapping.ApplyRequest) (*mapping.ApplyResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化提交载荷失败: %w", err)
	}

	url := invokeURL(c.appID, c.directBase, "import/apply")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.stats.record(false)
		return nil, fmt.Errorf("调用入库服务失败: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity:
		var result mapping.ApplyResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			c.stats.record(false)
			return nil, fmt.Errorf("解析入库结果失败: %w", err)
		}
		c.stats.record(true)
		if !result.Success {
			slog.Warn("入库服务拒绝提交", "session_id", req.SessionID, "errors", len(result.Errors))
		}
		return &result, nil
	default:
		c.stats.record(false)
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("入库服务返回异常状态码 %d: %s", resp.StatusCode, string(respBody))
	}
}

// GetStats 获取客户端统计信息
func (c *IngestionClient) GetStats() ClientStats {
	return c.stats.Snapshot()
}
