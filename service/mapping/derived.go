/*
 * @module service/mapping/derived
 * @description 派生指标解析器，在案例B缺少直接不良率列时，从原始计数列配置不良率计算公式
 * @architecture 分层架构 - 业务服务层（映射仓库之上的子引擎）
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 计数列选择 -> 排他角色改派 -> 公式描述符产出
 * @rules 不良品列与分母列至多各一列且互不相同；解析器只产出公式描述符，绝不对数据求值
 * @dependencies github.com/spf13/cast
 * @refs service/mapping/store.go, service/mapping/validator.go
 */

package mapping

import (
	"fmt"

	"github.com/spf13/cast"
)

// DenominatorType 分母列的语义类型
type DenominatorType string

const (
	// DenominatorTotal 分母为总件数
	DenominatorTotal DenominatorType = "total"

	// DenominatorNonDefective 分母为合格品数量
	DenominatorNonDefective DenominatorType = "non_defective"
)

// DerivedMetricConfig 派生指标配置的值快照
type DerivedMetricConfig struct {
	DefectiveColumn   string          `json:"defective_column,omitempty"`
	DenominatorColumn string          `json:"denominator_column,omitempty"`
	DenominatorType   DenominatorType `json:"denominator_type"`
}

// FormulaDescriptor 不良率计算公式描述符
// 仅描述计算方式，由外部入库服务对数据确定性地套用
type FormulaDescriptor struct {
	Expression        string          `json:"expression"`
	DefectiveColumn   string          `json:"defective_column"`
	DenominatorColumn string          `json:"denominator_column"`
	DenominatorType   DenominatorType `json:"denominator_type"`
}

// DerivedMetricResolver 派生指标解析器
// 计数类角色（defective_count / total_count / non_defective_count）的排他
// 改派由本解析器独占负责，通用 SetRole 不做此类跨列修正
type DerivedMetricResolver struct {
	store             *MappingStore
	defectiveColumn   string
	denominatorColumn string
	denominatorType   DenominatorType
}

// NewDerivedMetricResolver 创建派生指标解析器并从仓库现状同步选择
func NewDerivedMetricResolver(store *MappingStore) *DerivedMetricResolver {
	r := &DerivedMetricResolver{
		store:           store,
		denominatorType: DenominatorTotal,
	}
	r.Resync()
	return r
}

// Resync 从映射仓库现状同步计数列选择
// 画像分析服务可能直接建议计数角色，整体替换映射后也需要重新对齐，
// 保证解析器配置与仓库角色始终一致
func (r *DerivedMetricResolver) Resync() {
	r.defectiveColumn = ""
	r.denominatorColumn = ""

	if columns := r.store.ColumnsWithRole(RoleDefectiveCount); len(columns) > 0 {
		r.defectiveColumn = columns[0]
	}
	if columns := r.store.ColumnsWithRole(RoleTotalCount); len(columns) > 0 {
		r.denominatorColumn = columns[0]
		r.denominatorType = DenominatorTotal
		return
	}
	if columns := r.store.ColumnsWithRole(RoleNonDefectiveCount); len(columns) > 0 {
		r.denominatorColumn = columns[0]
		r.denominatorType = DenominatorNonDefective
	}
}

// Active 判断解析器在指定案例下是否激活
// 案例B且不存在直接不良率/质量评分角色时激活：要么已有计数角色待配置完整，
// 要么完全没有缺陷类角色、需要引导用户配置计数列
func (r *DerivedMetricResolver) Active(c AnalysisCase) bool {
	if c != CaseDefectsOnly {
		return false
	}
	snapshot := r.store.Snapshot()
	for _, entry := range snapshot {
		if entry.TargetRole == RoleDefects || entry.TargetRole == RoleQualityScore {
			return false
		}
	}
	return true
}

// SetDefectiveColumn 选择不良品数量列
// 原持有 defective_count 的其他列降为 ignore；与分母列同列时拒绝并保持原状
func (r *DerivedMetricResolver) SetDefectiveColumn(column string) error {
	if !r.store.Has(column) {
		return fmt.Errorf("列不存在: %s", column)
	}
	if column == r.denominatorColumn && column != "" {
		return fmt.Errorf("列 %s 已被选为分母列，不能同时作为不良品数量列", column)
	}

	r.store.assignExclusive(column, RoleDefectiveCount)
	r.defectiveColumn = column
	return nil
}

// SetDenominatorColumn 选择分母列
// 按当前分母类型赋予 total_count 或 non_defective_count 角色；
// 两种分母角色的既有持有者统一降级，分母至多一列且语义类型互斥
func (r *DerivedMetricResolver) SetDenominatorColumn(column string) error {
	if !r.store.Has(column) {
		return fmt.Errorf("列不存在: %s", column)
	}
	if column == r.defectiveColumn && column != "" {
		return fmt.Errorf("列 %s 已被选为不良品数量列，不能同时作为分母列", column)
	}

	r.store.assignExclusive(column, r.denominatorRole(), RoleTotalCount, RoleNonDefectiveCount)
	r.denominatorColumn = column
	return nil
}

// SetDenominatorType 切换分母语义类型
// 已选定分母列时原地更新其角色，无需重新选择
func (r *DerivedMetricResolver) SetDenominatorType(t DenominatorType) error {
	if t != DenominatorTotal && t != DenominatorNonDefective {
		return fmt.Errorf("未知的分母类型: %s", t)
	}

	r.denominatorType = t
	if r.denominatorColumn != "" {
		r.store.assignExclusive(r.denominatorColumn, r.denominatorRole(), RoleTotalCount, RoleNonDefectiveCount)
	}
	return nil
}

func (r *DerivedMetricResolver) denominatorRole() Role {
	if r.denominatorType == DenominatorNonDefective {
		return RoleNonDefectiveCount
	}
	return RoleTotalCount
}

// Config 返回当前派生指标配置的值快照
func (r *DerivedMetricResolver) Config() DerivedMetricConfig {
	return DerivedMetricConfig{
		DefectiveColumn:   r.defectiveColumn,
		DenominatorColumn: r.denominatorColumn,
		DenominatorType:   r.denominatorType,
	}
}

// Formula 产出不良率公式描述符
// 分母类型为 total 时 rate = defective/total；
// 为 non_defective 时 rate = defective/(defective+non_defective)。
// 两列未配置齐时返回 false
func (r *DerivedMetricResolver) Formula() (FormulaDescriptor, bool) {
	if r.defectiveColumn == "" || r.denominatorColumn == "" {
		return FormulaDescriptor{}, false
	}

	expression := "defective/total"
	if r.denominatorType == DenominatorNonDefective {
		expression = "defective/(defective+non_defective)"
	}

	return FormulaDescriptor{
		Expression:        expression,
		DefectiveColumn:   r.defectiveColumn,
		DenominatorColumn: r.denominatorColumn,
		DenominatorType:   r.denominatorType,
	}, true
}

// CountSampleWarnings 检查已选计数列的样本值是否可转为数值
// 画像样本中存在无法强转的值时给出提示性告警，不阻塞提交
func (r *DerivedMetricResolver) CountSampleWarnings(profiles map[string]ColumnProfile) []string {
	var warnings []string
	check := func(column, label string) {
		if column == "" {
			return
		}
		profile, exists := profiles[column]
		if !exists {
			return
		}
		for _, sample := range profile.SampleValues {
			if sample == "" {
				continue
			}
			if _, err := cast.ToFloat64E(sample); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s「%s」的样本值 %q 无法转换为数值，入库时该行可能被丢弃", label, column, sample))
				break
			}
		}
	}

	check(r.defectiveColumn, "不良品数量列")
	check(r.denominatorColumn, "分母列")
	return warnings
}
