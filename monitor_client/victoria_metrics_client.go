package monitor_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/common/model"
)

var VictoriaMetricsUrl = "http://mh1:38428"
var client = &http.Client{
	Timeout: 30 * time.Second,
}

func init() {
	if envUrl := os.Getenv("VICTORIA_METRICS_URL"); envUrl != "" {
		VictoriaMetricsUrl = envUrl
	}
}

// SetVictoriaMetricsUrl 设置 VictoriaMetrics 的 URL（用于测试）
func SetVictoriaMetricsUrl(url string) {
	VictoriaMetricsUrl = url
}

// GetVictoriaMetricsUrl 获取当前 VictoriaMetrics 的 URL
func GetVictoriaMetricsUrl() string {
	return VictoriaMetricsUrl
}

// Query 执行即时查询
func Query(ctx context.Context, query string, queryTime time.Time) (*QueryResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}

	if queryTime.IsZero() {
		queryTime = time.Now()
	}

	values := url.Values{}
	values.Add("query", query)
	values.Add("time", formatTime(queryTime))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, VictoriaMetricsUrl+"/api/v1/query", nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.URL.RawQuery = values.Encode()

	return doQuery(req)
}

// QueryRange 执行区间查询
func QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) (*QueryResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if start.IsZero() || end.IsZero() {
		return nil, errors.New("start and end time cannot be zero")
	}
	if start.After(end) {
		return nil, errors.New("start time must be before end time")
	}
	if step <= 0 {
		step = 15 * time.Second // 默认步长15秒
	}

	u, err := url.Parse(VictoriaMetricsUrl + "/api/v1/query_range")
	if err != nil {
		return nil, fmt.Errorf("解析URL失败: %w", err)
	}

	q := u.Query()
	q.Set("query", query)
	q.Set("start", formatTime(start))
	q.Set("end", formatTime(end))
	q.Set("step", strconv.FormatFloat(step.Seconds(), 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(q.Encode()))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return doQuery(req)
}

// CounterIncrease 查询计数器在给定时间窗口内的增量，多序列时求和
// 仪表盘用它统计会话开启、校验与提交次数
func CounterIncrease(ctx context.Context, metric string, window time.Duration) (float64, error) {
	query := fmt.Sprintf("sum(increase(%s[%s]))", metric, model.Duration(window).String())
	result, err := Query(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}

	vector, err := result.Vector()
	if err != nil {
		return 0, err
	}
	if len(vector) == 0 {
		return 0, nil
	}
	return float64(vector[0].Value), nil
}

func doQuery(req *http.Request) (*QueryResult, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	var metricsResp QueryResultResp
	if err = json.NewDecoder(resp.Body).Decode(&metricsResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if metricsResp.Status != "success" {
		if metricsResp.Error != "" {
			return nil, fmt.Errorf("查询失败: %s: %s", metricsResp.ErrorType, metricsResp.Error)
		}
		return nil, fmt.Errorf("查询失败: %s", metricsResp.Status)
	}

	return &metricsResp.Data, nil
}

func formatTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.Unix()), 'f', -1, 64)
}
