/*
 * @module service/mapping/roles
 * @description 列角色目录，定义目标语义角色、分析案例枚举和案例-必需角色规则表
 * @architecture 常量层 - 元数据定义
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 常量定义 -> 规则查询 -> 验证引擎使用
 * @rules 角色和案例为封闭枚举，规则表集中于此，禁止在验证器中散落案例字面量
 * @dependencies 无外部依赖
 * @refs service/mapping/validator.go, service/mapping/store.go
 */

package mapping

import (
	"fmt"
	"strings"
)

// Role 列的语义角色
type Role string

// 目标语义角色常量
const (
	// RoleSupplier 供应商标识列
	RoleSupplier Role = "supplier"

	// RoleDatePromised 承诺交付日期列
	RoleDatePromised Role = "date_promised"

	// RoleDateDelivered 实际交付日期列
	RoleDateDelivered Role = "date_delivered"

	// RoleOrderDate 下单日期列
	RoleOrderDate Role = "order_date"

	// RoleDelay 延迟天数列（可正可负）
	RoleDelay Role = "delay"

	// RoleDelayDirect 直接标注的延迟值列
	RoleDelayDirect Role = "delay_direct"

	// RoleDefects 不良率列
	RoleDefects Role = "defects"

	// RoleQualityScore 质量评分列
	RoleQualityScore Role = "quality_score"

	// RoleDefectiveCount 不良品数量列
	RoleDefectiveCount Role = "defective_count"

	// RoleTotalCount 总件数列
	RoleTotalCount Role = "total_count"

	// RoleNonDefectiveCount 合格品数量列
	RoleNonDefectiveCount Role = "non_defective_count"

	// RoleIgnore 忽略该列，不参与导入
	RoleIgnore Role = "ignore"
)

// RoleGroup 角色能力分组，验证引擎按分组评估最小数据要求
type RoleGroup string

const (
	// GroupIdentity 身份组：标识供应商
	GroupIdentity RoleGroup = "identity"

	// GroupDelay 延迟组：可计算交付延迟
	GroupDelay RoleGroup = "delay"

	// GroupDefect 缺陷组：可计算不良率
	GroupDefect RoleGroup = "defect"

	// GroupContext 上下文组：随行维度列，不参与充分性判定
	GroupContext RoleGroup = "context"

	// GroupNone 无分组（ignore）
	GroupNone RoleGroup = "none"
)

// 角色到能力分组的映射，每个角色恰好属于一个分组
var roleGroups = map[Role]RoleGroup{
	RoleSupplier:          GroupIdentity,
	RoleDatePromised:      GroupDelay,
	RoleDateDelivered:     GroupDelay,
	RoleOrderDate:         GroupContext,
	RoleDelay:             GroupDelay,
	RoleDelayDirect:       GroupDelay,
	RoleDefects:           GroupDefect,
	RoleQualityScore:      GroupDefect,
	RoleDefectiveCount:    GroupDefect,
	RoleTotalCount:        GroupDefect,
	RoleNonDefectiveCount: GroupDefect,
	RoleIgnore:            GroupNone,
}

// 角色显示名称映射
var roleDisplayNames = map[Role]string{
	RoleSupplier:          "供应商",
	RoleDatePromised:      "承诺交付日期",
	RoleDateDelivered:     "实际交付日期",
	RoleOrderDate:         "下单日期",
	RoleDelay:             "延迟天数",
	RoleDelayDirect:       "延迟值",
	RoleDefects:           "不良率",
	RoleQualityScore:      "质量评分",
	RoleDefectiveCount:    "不良品数量",
	RoleTotalCount:        "总件数",
	RoleNonDefectiveCount: "合格品数量",
	RoleIgnore:            "忽略",
}

// IsValidRole 验证角色是否在封闭枚举内
func IsValidRole(role Role) bool {
	_, exists := roleGroups[role]
	return exists
}

// GroupOf 返回角色所属的能力分组
func GroupOf(role Role) RoleGroup {
	if group, exists := roleGroups[role]; exists {
		return group
	}
	return GroupNone
}

// GetRoleDisplayName 获取角色的显示名称
func GetRoleDisplayName(role Role) string {
	if name, exists := roleDisplayNames[role]; exists {
		return name
	}
	return "未知角色"
}

// GetAllRoles 获取所有目标角色（固定顺序，供前端选择器使用）
func GetAllRoles() []Role {
	return []Role{
		RoleSupplier,
		RoleDatePromised,
		RoleDateDelivered,
		RoleOrderDate,
		RoleDelay,
		RoleDelayDirect,
		RoleDefects,
		RoleQualityScore,
		RoleDefectiveCount,
		RoleTotalCount,
		RoleNonDefectiveCount,
		RoleIgnore,
	}
}

// NormalizeRole 规范化角色标识
// 分析服务历史上存在两种角色表示：短名（defective_count）和带命名空间的
// 变体（ColumnRole.DEFECTIVE_COUNT）。统一在入口处归一为短名，引擎内部
// 只使用封闭枚举，不再双轨比较。
func NormalizeRole(raw string) (Role, bool) {
	name := strings.TrimSpace(raw)
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	role := Role(strings.ToLower(name))
	if IsValidRole(role) {
		return role, true
	}
	return RoleIgnore, false
}

// AnalysisCase 分析案例，决定可计算的KPI种类
type AnalysisCase string

const (
	// CaseDelayOnly 案例A：仅交付延迟分析
	CaseDelayOnly AnalysisCase = "delay_only"

	// CaseDefectsOnly 案例B：仅质量缺陷分析
	CaseDefectsOnly AnalysisCase = "defects_only"

	// CaseMixed 案例C：延迟+缺陷混合分析
	CaseMixed AnalysisCase = "mixed"
)

// 案例显示名称映射
var caseDisplayNames = map[AnalysisCase]string{
	CaseDelayOnly:   "交付延迟分析",
	CaseDefectsOnly: "质量缺陷分析",
	CaseMixed:       "混合分析",
}

// IsValidAnalysisCase 验证分析案例是否有效
func IsValidAnalysisCase(c AnalysisCase) bool {
	_, exists := caseDisplayNames[c]
	return exists
}

// GetCaseDisplayName 获取分析案例的显示名称
func GetCaseDisplayName(c AnalysisCase) string {
	if name, exists := caseDisplayNames[c]; exists {
		return name
	}
	return "未知案例"
}

// GetAllAnalysisCases 获取所有分析案例
func GetAllAnalysisCases() []AnalysisCase {
	return []AnalysisCase{CaseDelayOnly, CaseDefectsOnly, CaseMixed}
}

// RequiredGroups 案例对能力分组的最小数据要求
type RequiredGroups struct {
	NeedsIdentity bool `json:"needs_identity"`
	NeedsDelay    bool `json:"needs_delay"`
	NeedsDefect   bool `json:"needs_defect"`
	BothRequired  bool `json:"both_required"`
}

// RequiredGroupsFor 返回指定案例必须满足的能力分组
// 规则表集中维护，传入封闭枚举之外的案例属于编程错误，直接panic
func RequiredGroupsFor(c AnalysisCase) RequiredGroups {
	switch c {
	case CaseDelayOnly:
		return RequiredGroups{NeedsIdentity: true, NeedsDelay: true}
	case CaseDefectsOnly:
		return RequiredGroups{NeedsIdentity: true, NeedsDefect: true}
	case CaseMixed:
		return RequiredGroups{NeedsIdentity: true, NeedsDelay: true, NeedsDefect: true, BothRequired: true}
	default:
		panic(fmt.Sprintf("未知的分析案例: %s", c))
	}
}
