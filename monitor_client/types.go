package monitor_client

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/common/model"
)

// QueryResultResp Prometheus风格查询接口的响应外壳
type QueryResultResp struct {
	Status    string      `json:"status"`
	Data      QueryResult `json:"data"`
	ErrorType string      `json:"errorType,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// QueryResult 查询结果，Result按resultType延迟解码
type QueryResult struct {
	ResultType model.ValueType `json:"resultType"`
	Result     json.RawMessage `json:"result"`
}

// Vector 将即时查询结果解码为样本向量
func (r *QueryResult) Vector() (model.Vector, error) {
	if r.ResultType != model.ValVector {
		return nil, fmt.Errorf("结果类型不是vector: %s", r.ResultType)
	}
	var v model.Vector
	if err := json.Unmarshal(r.Result, &v); err != nil {
		return nil, fmt.Errorf("解码vector结果失败: %w", err)
	}
	return v, nil
}

// Matrix 将区间查询结果解码为时间序列矩阵
func (r *QueryResult) Matrix() (model.Matrix, error) {
	if r.ResultType != model.ValMatrix {
		return nil, fmt.Errorf("结果类型不是matrix: %s", r.ResultType)
	}
	var m model.Matrix
	if err := json.Unmarshal(r.Result, &m); err != nil {
		return nil, fmt.Errorf("解码matrix结果失败: %w", err)
	}
	return m, nil
}

// LokiStream Loki日志流，labels加时间戳行
type LokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // [纳秒时间戳, 日志行]
}

// LokiQueryResult Loki查询结果
type LokiQueryResult struct {
	ResultType string       `json:"resultType"`
	Result     []LokiStream `json:"result"`
}

// LokiQueryResultResp Loki查询接口的响应外壳
type LokiQueryResultResp struct {
	Status string          `json:"status"`
	Data   LokiQueryResult `json:"data"`
}

// LokiLabelValueResp Loki标签值接口的响应外壳
type LokiLabelValueResp struct {
	Status string   `json:"status"`
	Data   []string `json:"data"`
}
