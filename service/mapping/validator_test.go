/*
 * @module service/mapping/validator_test
 * @description 案例验证引擎测试，覆盖三个案例的最小充分数据规则与错误顺序
 * @architecture 测试层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 构造映射快照 -> 验证 -> 错误列表断言
 * @rules 错误文案与顺序为对外契约，断言使用精确匹配
 * @dependencies testing, testify
 * @refs validator.go
 */

package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func snapshotOf(roles map[string]Role) []RoleMapping {
	// 固定顺序构造快照，保持断言可复现
	columns := []string{"supplier", "date_promised", "date_delivered", "delay", "pieces_bad", "pieces_total", "pieces_good", "rate", "extra"}
	var snapshot []RoleMapping
	for _, column := range columns {
		role, exists := roles[column]
		if !exists {
			continue
		}
		snapshot = append(snapshot, RoleMapping{SourceColumn: column, TargetRole: role, Confidence: 1.0})
	}
	return snapshot
}

func TestDelayOnlyWithDateColumns(t *testing.T) {
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier":       RoleSupplier,
		"date_promised":  RoleDatePromised,
		"date_delivered": RoleDateDelivered,
	}), CaseDelayOnly, DerivedMetricConfig{})

	assert.True(t, result.CanApply)
	assert.Empty(t, result.Errors)
}

func TestDelayOnlyWithDelayColumn(t *testing.T) {
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier": RoleSupplier,
		"delay":    RoleDelay,
	}), CaseDelayOnly, DerivedMetricConfig{})

	assert.True(t, result.CanApply)
}

func TestDelayOnlyMissingDelayData(t *testing.T) {
	// 只有供应商列：缺失的是延迟数据，不是供应商
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier": RoleSupplier,
	}), CaseDelayOnly, DerivedMetricConfig{})

	assert.False(t, result.CanApply)
	assert.Equal(t, []string{"Case A requires date columns or a delay column"}, result.Errors)
}

func TestDelayOnlyWithSingleDateColumn(t *testing.T) {
	// 只有承诺日期不够，日期列必须成对
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier":      RoleSupplier,
		"date_promised": RoleDatePromised,
	}), CaseDelayOnly, DerivedMetricConfig{})

	assert.Equal(t, []string{ErrCaseADelayData}, result.Errors)
}

func TestDelayOnlyOrderDateIsNotDelayData(t *testing.T) {
	// 下单日期是随行维度，不能替代承诺/实际日期对或延迟列
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier":      RoleSupplier,
		"date_promised": RoleDatePromised,
		"extra":         RoleOrderDate,
	}), CaseDelayOnly, DerivedMetricConfig{})

	assert.False(t, result.CanApply)
	assert.Equal(t, []string{ErrCaseADelayData}, result.Errors)
}

func TestMissingSupplierComesFirst(t *testing.T) {
	result := ValidateCase(snapshotOf(map[string]Role{
		"date_promised": RoleDatePromised,
	}), CaseDelayOnly, DerivedMetricConfig{})

	// 规则顺序固定：供应商 -> 案例规则
	assert.Equal(t, []string{
		"missing supplier column",
		"Case A requires date columns or a delay column",
	}, result.Errors)
}

func TestDefectsOnlyWithCountColumns(t *testing.T) {
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier":     RoleSupplier,
		"pieces_bad":   RoleDefectiveCount,
		"pieces_total": RoleTotalCount,
	}), CaseDefectsOnly, DerivedMetricConfig{
		DefectiveColumn:   "pieces_bad",
		DenominatorColumn: "pieces_total",
		DenominatorType:   DenominatorTotal,
	})

	assert.True(t, result.CanApply)
	assert.Empty(t, result.Errors)
}

func TestDefectsOnlyWithNonDefectiveDenominator(t *testing.T) {
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier":    RoleSupplier,
		"pieces_bad":  RoleDefectiveCount,
		"pieces_good": RoleNonDefectiveCount,
	}), CaseDefectsOnly, DerivedMetricConfig{
		DefectiveColumn:   "pieces_bad",
		DenominatorColumn: "pieces_good",
		DenominatorType:   DenominatorNonDefective,
	})

	assert.True(t, result.CanApply)
}

func TestDefectsOnlyWithDirectRate(t *testing.T) {
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier": RoleSupplier,
		"rate":     RoleDefects,
	}), CaseDefectsOnly, DerivedMetricConfig{})

	assert.True(t, result.CanApply)
}

func TestDefectsOnlyResolverGuidance(t *testing.T) {
	// 解析器激活且两列均未选：给出两条具体引导，取代通用文案
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier": RoleSupplier,
	}), CaseDefectsOnly, DerivedMetricConfig{})

	assert.Equal(t, []string{
		"select the defective-pieces column",
		"select the total-or-conforming column",
	}, result.Errors)
}

func TestDefectsOnlyResolverGuidanceDenominatorOnly(t *testing.T) {
	// 不良品列已选、分母未选：只提示分母
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier":   RoleSupplier,
		"pieces_bad": RoleDefectiveCount,
	}), CaseDefectsOnly, DerivedMetricConfig{
		DefectiveColumn: "pieces_bad",
		DenominatorType: DenominatorTotal,
	})

	assert.Equal(t, []string{ErrSelectDenominatorCol}, result.Errors)
}

func TestMixedSatisfied(t *testing.T) {
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier":       RoleSupplier,
		"date_promised":  RoleDatePromised,
		"date_delivered": RoleDateDelivered,
		"rate":           RoleDefects,
	}), CaseMixed, DerivedMetricConfig{})

	assert.True(t, result.CanApply)
}

func TestMixedEmitsSingleCombinedError(t *testing.T) {
	// 延迟数据完整、缺陷数据全缺：只透出合并后的案例级错误
	result := ValidateCase(snapshotOf(map[string]Role{
		"supplier":       RoleSupplier,
		"date_promised":  RoleDatePromised,
		"date_delivered": RoleDateDelivered,
	}), CaseMixed, DerivedMetricConfig{})

	assert.Equal(t, []string{"Case C requires both delay and defect data"}, result.Errors)
}

func TestValidateCaseIsPure(t *testing.T) {
	snapshot := snapshotOf(map[string]Role{
		"supplier": RoleSupplier,
		"delay":    RoleDelay,
	})
	derived := DerivedMetricConfig{DenominatorType: DenominatorTotal}

	first := ValidateCase(snapshot, CaseDelayOnly, derived)
	second := ValidateCase(snapshot, CaseDelayOnly, derived)

	// 纯函数：相同输入恒得相同输出，无隐藏状态
	assert.Equal(t, first, second)
}

func TestIgnoredColumnsDoNotCount(t *testing.T) {
	result := ValidateCase([]RoleMapping{
		{SourceColumn: "supplier", TargetRole: RoleIgnore},
		{SourceColumn: "delay", TargetRole: RoleDelay},
	}, CaseDelayOnly, DerivedMetricConfig{})

	assert.Equal(t, []string{ErrMissingSupplier}, result.Errors)
}
