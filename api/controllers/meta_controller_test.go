/*
 * @module api/controllers/meta_controller_test
 * @description 元数据控制器单元测试
 * @architecture 测试层
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 测试准备 -> 请求构建 -> 响应验证
 * @rules 确保元数据API返回完整的角色与场景目录
 * @dependencies testing, net/http/httptest, stretchr/testify
 */

package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetRoles 测试获取角色目录
func TestGetRoles(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/roles", nil)
	w := httptest.NewRecorder()

	controller.GetRoles(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response APIResponse
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, 0, response.Status)

	data, ok := response.Data.([]interface{})
	require.True(t, ok, "响应数据应该是数组类型")
	assert.Greater(t, len(data), 0, "应该返回至少一个角色")

	// 验证关键角色存在且带有分组信息
	roles := make(map[string]string)
	for _, item := range data {
		entry, ok := item.(map[string]interface{})
		require.True(t, ok)
		roles[entry["role"].(string)] = entry["group"].(string)
	}
	assert.Contains(t, roles, "supplier")
	assert.Contains(t, roles, "delay")
	assert.Contains(t, roles, "defective_count")
	assert.Contains(t, roles, "ignore")
}

// TestGetAnalysisCases 测试获取分析场景目录
func TestGetAnalysisCases(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/analysis-cases", nil)
	w := httptest.NewRecorder()

	controller.GetAnalysisCases(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response APIResponse
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, 0, response.Status)

	data, ok := response.Data.([]interface{})
	require.True(t, ok, "响应数据应该是数组类型")
	require.Len(t, data, 3, "应该返回三个分析场景")

	cases := make([]string, 0, len(data))
	for _, item := range data {
		entry, ok := item.(map[string]interface{})
		require.True(t, ok)
		cases = append(cases, entry["case"].(string))
		assert.NotEmpty(t, entry["display_name"])
		assert.NotNil(t, entry["requires"])
	}
	assert.Contains(t, cases, "delay_only")
	assert.Contains(t, cases, "defects_only")
	assert.Contains(t, cases, "mixed")
}

// TestGetDenominatorTypes 测试获取分母语义目录
func TestGetDenominatorTypes(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/denominator-types", nil)
	w := httptest.NewRecorder()

	controller.GetDenominatorTypes(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response APIResponse
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, 0, response.Status)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok, "响应数据应该是map类型")
	assert.Equal(t, "defective/total", data["total"])
	assert.Equal(t, "defective/(defective+non_defective)", data["non_defective"])
}
