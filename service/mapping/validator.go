/*
 * @module service/mapping/validator
 * @description 案例验证引擎，根据当前映射集与所选分析案例计算结构性错误列表
 * @architecture 分层架构 - 数据验证层（纯函数）
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 映射快照 -> 规则逐条评估 -> 有序错误列表
 * @rules 纯函数、无副作用，每次映射或案例变更后全量重算；错误顺序稳定以便断言
 * @dependencies service/mapping/roles.go
 * @refs service/mapping/reporter.go, service/mapping/session_service.go
 */

package mapping

// 结构性错误文案
// 案例级错误随产品文案固定为英文，与前端和历史报表保持一致，勿随手翻译
const (
	ErrMissingSupplier      = "missing supplier column"
	ErrCaseADelayData       = "Case A requires date columns or a delay column"
	ErrCaseBDefectData      = "Case B requires a defect rate, quality score, or defect count columns"
	ErrCaseCBothData        = "Case C requires both delay and defect data"
	ErrSelectDefectiveCol   = "select the defective-pieces column"
	ErrSelectDenominatorCol = "select the total-or-conforming column"
)

// ValidationResult 映射验证结果，派生值，随用随算不落库
type ValidationResult struct {
	Errors   []string `json:"errors"`
	CanApply bool     `json:"can_apply"`
}

// ValidateCase 对映射快照按所选案例执行最小充分数据校验
// 纯函数：相同输入恒得相同输出。规则顺序固定：供应商 -> 案例规则。
// 解析器激活时，案例B的具体引导文案取代通用文案。
// 传入封闭枚举之外的案例属于编程错误，RequiredGroupsFor 会直接panic
func ValidateCase(snapshot []RoleMapping, c AnalysisCase, derived DerivedMetricConfig) ValidationResult {
	required := RequiredGroupsFor(c)

	assigned := make(map[Role]bool, len(snapshot))
	for _, entry := range snapshot {
		if entry.TargetRole != RoleIgnore {
			assigned[entry.TargetRole] = true
		}
	}

	var errors []string

	if required.NeedsIdentity && !assigned[RoleSupplier] {
		errors = append(errors, ErrMissingSupplier)
	}

	switch c {
	case CaseDelayOnly:
		if !delaySatisfied(assigned) {
			errors = append(errors, ErrCaseADelayData)
		}
	case CaseDefectsOnly:
		if !defectSatisfied(assigned) {
			errors = append(errors, defectErrors(assigned, derived)...)
		}
	case CaseMixed:
		// 混合案例只给出合并后的案例级错误，不分别透出两半的子错误，
		// 避免用户被只相关一半的提示淹没
		if !delaySatisfied(assigned) || !defectSatisfied(assigned) {
			errors = append(errors, ErrCaseCBothData)
		}
	}

	return ValidationResult{
		Errors:   errors,
		CanApply: len(errors) == 0,
	}
}

// delaySatisfied 延迟数据充分性：承诺+实际两个日期列，或任一延迟列
func delaySatisfied(assigned map[Role]bool) bool {
	if assigned[RoleDatePromised] && assigned[RoleDateDelivered] {
		return true
	}
	return assigned[RoleDelay] || assigned[RoleDelayDirect]
}

// defectSatisfied 缺陷数据充分性：直接不良率、质量评分，或完整的计数列组合
func defectSatisfied(assigned map[Role]bool) bool {
	if assigned[RoleDefects] || assigned[RoleQualityScore] {
		return true
	}
	return assigned[RoleDefectiveCount] && (assigned[RoleTotalCount] || assigned[RoleNonDefectiveCount])
}

// defectErrors 案例B未满足时的错误文案
// 派生指标解析器激活时（无直接不良率/质量评分），给出逐项选择引导，
// 具体引导取代通用文案；未激活时退回通用文案
func defectErrors(assigned map[Role]bool, derived DerivedMetricConfig) []string {
	resolverActive := !assigned[RoleDefects] && !assigned[RoleQualityScore]
	if !resolverActive {
		return []string{ErrCaseBDefectData}
	}

	var errors []string
	if derived.DefectiveColumn == "" {
		errors = append(errors, ErrSelectDefectiveCol)
	}
	if derived.DenominatorColumn == "" {
		errors = append(errors, ErrSelectDenominatorCol)
	}
	if len(errors) == 0 {
		// 解析器配置齐全但角色组合仍不满足，属于仓库被旁路修改的边界情形
		errors = append(errors, ErrCaseBDefectData)
	}
	return errors
}
