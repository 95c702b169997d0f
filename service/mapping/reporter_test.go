/*
 * @module service/mapping/reporter_test
 * @description 验证报告器测试，覆盖严重级别分流与提交闸门
 * @architecture 测试层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 画像问题 + 引擎结果 -> 合并报告断言
 * @rules error级问题阻塞提交，warning/info不阻塞，入库拒绝不参与闸门
 * @dependencies testing, testify
 * @refs reporter.go
 */

package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportMergesIssuesBySeverity(t *testing.T) {
	issues := []ProfilingIssue{
		{Severity: SeverityError, Message: "日期格式存在歧义"},
		{Severity: SeverityWarning, Message: "空值比例偏高"},
		{Severity: SeverityInfo, Message: "检测到15列"},
	}

	report := BuildReport(issues, ValidationResult{CanApply: true}, nil, nil)

	assert.Equal(t, []string{"日期格式存在歧义"}, report.Errors)
	assert.Equal(t, []string{"空值比例偏高"}, report.Warnings)
	assert.Equal(t, []string{"检测到15列"}, report.Infos)
	// error级画像问题阻塞提交
	assert.False(t, report.CanApply)
}

func TestReportWarningsNeverBlock(t *testing.T) {
	issues := []ProfilingIssue{
		{Severity: SeverityWarning, Message: "空值比例偏高"},
		{Severity: SeverityInfo, Message: "供应商列基数较低"},
	}

	report := BuildReport(issues, ValidationResult{CanApply: true}, nil, nil)
	assert.True(t, report.CanApply)
}

func TestReportAppendsStructuralErrors(t *testing.T) {
	issues := []ProfilingIssue{{Severity: SeverityError, Message: "画像失败"}}
	result := ValidationResult{Errors: []string{ErrMissingSupplier}}

	report := BuildReport(issues, result, nil, nil)

	// 画像错误在前，结构性错误在后，顺序稳定
	assert.Equal(t, []string{"画像失败", ErrMissingSupplier}, report.Errors)
	assert.False(t, report.CanApply)
}

func TestIngestionRejectionDoesNotBlockGate(t *testing.T) {
	report := BuildReport(nil, ValidationResult{CanApply: true},
		[]string{"第42行的日期值无法解析"}, []string{"3行被丢弃"})

	// 入库拒绝原样透出，但闸门仍开放，允许用户修正后重新提交
	assert.Equal(t, []string{"第42行的日期值无法解析"}, report.IngestionErrors)
	assert.Equal(t, []string{"3行被丢弃"}, report.IngestionWarnings)
	assert.True(t, report.CanApply)
}
