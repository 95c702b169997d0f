package monitor_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/common/model"
)

// vectorResponse 构造单样本vector响应，value字段按协议是[时间戳, 字符串值]
func vectorResponse(value float64) QueryResultResp {
	raw, _ := json.Marshal([]map[string]interface{}{
		{
			"metric": map[string]string{"__name__": "import_applies_total"},
			"value":  []interface{}{float64(time.Now().Unix()), formatFloat(value)},
		},
	})
	return QueryResultResp{
		Status: "success",
		Data: QueryResult{
			ResultType: model.ValVector,
			Result:     raw,
		},
	}
}

func formatFloat(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query" {
			t.Errorf("期望路径 /api/v1/query, 实际 %s", r.URL.Path)
		}
		if r.URL.Query().Get("query") == "" {
			t.Error("query 参数不能为空")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(vectorResponse(42))
	}))
	defer server.Close()

	SetVictoriaMetricsUrl(server.URL)

	tests := []struct {
		name      string
		query     string
		queryTime time.Time
		wantErr   bool
	}{
		{name: "正常查询", query: "import_sessions_opened_total", queryTime: time.Now(), wantErr: false},
		{name: "空查询字符串", query: "", queryTime: time.Now(), wantErr: true},
		{name: "零时间使用当前时间", query: "import_sessions_opened_total", queryTime: time.Time{}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Query(context.Background(), tt.query, tt.queryTime)
			if (err != nil) != tt.wantErr {
				t.Errorf("Query() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}

			vector, err := result.Vector()
			if err != nil {
				t.Errorf("解码vector失败: %v", err)
				return
			}
			if len(vector) != 1 || float64(vector[0].Value) != 42 {
				t.Errorf("期望单样本值42, 实际 %v", vector)
			}
		})
	}
}

func TestQueryRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query_range" {
			t.Errorf("期望路径 /api/v1/query_range, 实际 %s", r.URL.Path)
		}

		raw, _ := json.Marshal([]map[string]interface{}{
			{
				"metric": map[string]string{"__name__": "import_validations_run_total"},
				"values": [][]interface{}{
					{float64(time.Now().Unix()), "1"},
					{float64(time.Now().Add(15 * time.Second).Unix()), "3"},
				},
			},
		})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(QueryResultResp{
			Status: "success",
			Data:   QueryResult{ResultType: model.ValMatrix, Result: raw},
		})
	}))
	defer server.Close()

	SetVictoriaMetricsUrl(server.URL)

	end := time.Now()
	start := end.Add(-time.Hour)

	result, err := QueryRange(context.Background(), "import_validations_run_total", start, end, 15*time.Second)
	if err != nil {
		t.Fatalf("QueryRange() error = %v", err)
	}

	matrix, err := result.Matrix()
	if err != nil {
		t.Fatalf("解码matrix失败: %v", err)
	}
	if len(matrix) != 1 || len(matrix[0].Values) != 2 {
		t.Errorf("期望单序列两个采样点, 实际 %v", matrix)
	}

	// 起止时间非法
	if _, err := QueryRange(context.Background(), "up", end, start, time.Second); err == nil {
		t.Error("start晚于end时应返回错误")
	}
	if _, err := QueryRange(context.Background(), "", start, end, time.Second); err == nil {
		t.Error("空查询应返回错误")
	}
}

func TestCounterIncrease(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(vectorResponse(7))
	}))
	defer server.Close()

	SetVictoriaMetricsUrl(server.URL)

	value, err := CounterIncrease(context.Background(), "import_applies_total", time.Hour)
	if err != nil {
		t.Fatalf("CounterIncrease() error = %v", err)
	}
	if value != 7 {
		t.Errorf("期望增量7, 实际 %v", value)
	}
}

func TestQueryFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(QueryResultResp{
			Status:    "error",
			ErrorType: "bad_data",
			Error:     "parse error",
		})
	}))
	defer server.Close()

	SetVictoriaMetricsUrl(server.URL)

	if _, err := Query(context.Background(), "bad{", time.Now()); err == nil {
		t.Error("查询失败状态应返回错误")
	}
}
