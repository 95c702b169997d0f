package monitor_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cast"
)

var LokiUrl = "http://mh1:3100"
var lokiClient = &http.Client{
	Timeout: 30 * time.Second,
}

// 服务日志在Loki中的应用标签
const serviceAppLabel = `{app="supplier-analysis-service"}`

func init() {
	if envUrl := os.Getenv("LOKI_URL"); envUrl != "" {
		LokiUrl = envUrl
	}
}

// SetLokiUrl 设置 Loki 的 URL（用于测试）
func SetLokiUrl(url string) {
	LokiUrl = url
}

// GetLokiUrl 获取当前 Loki 的 URL
func GetLokiUrl() string {
	return LokiUrl
}

// LokiStreamQuery 执行 Loki 流查询，查询最近preHours小时
func LokiStreamQuery(ctx context.Context, query string, limit int, preHours int) (*LokiQueryResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if preHours <= 0 {
		preHours = 1 // 默认查询1小时
	}

	end := time.Now()
	start := end.Add(time.Duration(-preHours) * time.Hour)
	return LokiRangeQuery(ctx, query, limit, start, end)
}

// LokiRangeQuery 执行 Loki 区间查询（支持指定时间范围）
func LokiRangeQuery(ctx context.Context, query string, limit int, start, end time.Time) (*LokiQueryResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if limit <= 0 {
		limit = 1000 // 默认限制1000条
	}

	values := url.Values{}
	values.Add("query", query)
	values.Add("limit", cast.ToString(limit))
	values.Add("start", cast.ToString(start.UnixNano()))
	values.Add("end", cast.ToString(end.UnixNano()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, LokiUrl+"/loki/api/v1/query_range", nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.URL.RawQuery = values.Encode()

	resp, err := lokiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, fmt.Errorf("HTTP请求失败: 状态码=%d, 响应=%s", resp.StatusCode, string(body))
	}

	var lokiResp LokiQueryResultResp
	if err = json.NewDecoder(resp.Body).Decode(&lokiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if lokiResp.Status != "success" {
		return nil, fmt.Errorf("查询失败: %s", lokiResp.Status)
	}

	return &lokiResp.Data, nil
}

// SessionLogs 查询指定导入会话的服务日志，按会话ID过滤
func SessionLogs(ctx context.Context, sessionID string, limit int, preHours int) (*LokiQueryResult, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID cannot be empty")
	}
	query := fmt.Sprintf(`%s |= %q`, serviceAppLabel, sessionID)
	return LokiStreamQuery(ctx, query, limit, preHours)
}

// LokiLabelValues 获取指定标签的所有值
func LokiLabelValues(ctx context.Context, label string) ([]string, error) {
	if label == "" {
		return nil, errors.New("label cannot be empty")
	}

	urlSuffix := "/loki/api/v1/label/" + label + "/values"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, LokiUrl+urlSuffix, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := lokiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	var lokiResp LokiLabelValueResp
	if err = json.NewDecoder(resp.Body).Decode(&lokiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if lokiResp.Status != "success" {
		return nil, fmt.Errorf("查询失败: %s", lokiResp.Status)
	}

	return lokiResp.Data, nil
}
