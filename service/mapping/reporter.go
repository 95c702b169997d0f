/*
 * @module service/mapping/reporter
 * @description 验证报告器，合并画像问题与案例验证错误，给出统一的可提交裁决
 * @architecture 分层架构 - 业务服务层（无状态投影）
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 画像问题 + 引擎错误 + 入库拒绝 -> 合并报告 -> 提交闸门
 * @rules error级画像问题与结构性错误阻塞提交；warning/info永不阻塞；入库拒绝事后透出、不参与闸门
 * @dependencies 无外部依赖
 * @refs service/mapping/validator.go, service/mapping/session_service.go
 */

package mapping

// ValidationReport 合并后的验证报告
// 入库服务的拒绝信息（IngestionErrors/IngestionWarnings）反映列级验证不可见的
// 数据级问题，原样透出供用户修正后重新提交；重新提交是显式的用户动作，
// 因此这些信息不参与 CanApply 闸门
type ValidationReport struct {
	Errors            []string `json:"errors"`
	Warnings          []string `json:"warnings"`
	Infos             []string `json:"infos"`
	IngestionErrors   []string `json:"ingestion_errors,omitempty"`
	IngestionWarnings []string `json:"ingestion_warnings,omitempty"`
	CanApply          bool     `json:"can_apply"`
}

// BuildReport 构建合并验证报告
// CanApply 为真当且仅当：不存在 error 级画像问题，且案例验证错误为空
func BuildReport(issues []ProfilingIssue, result ValidationResult, ingestionErrors, ingestionWarnings []string) ValidationReport {
	report := ValidationReport{
		IngestionErrors:   ingestionErrors,
		IngestionWarnings: ingestionWarnings,
	}

	blockingIssues := 0
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			report.Errors = append(report.Errors, issue.Message)
			blockingIssues++
		case SeverityWarning:
			report.Warnings = append(report.Warnings, issue.Message)
		default:
			report.Infos = append(report.Infos, issue.Message)
		}
	}

	report.Errors = append(report.Errors, result.Errors...)
	report.CanApply = blockingIssues == 0 && len(result.Errors) == 0
	return report
}
