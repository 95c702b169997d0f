/*
 * @module service/mapping/derived_test
 * @description 派生指标解析器测试，覆盖排他不变量、同列防御与公式描述符
 * @architecture 测试层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 计数列选择序列 -> 不变量断言 -> 公式断言
 * @rules 任意选择序列下不良品列与分母列各至多一列；同列选择整体拒绝
 * @dependencies testing, testify
 * @refs derived.go
 */

package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newCountStore() *MappingStore {
	store := NewMappingStore()
	store.Initialize([]ColumnProfile{
		{Column: "supplier", DetectedType: "string"},
		{Column: "pieces_bad", DetectedType: "integer", SampleValues: []string{"3", "0"}},
		{Column: "pieces_total", DetectedType: "integer", SampleValues: []string{"500", "480"}},
		{Column: "pieces_good", DetectedType: "integer", SampleValues: []string{"497", "480"}},
	}, []RoleMapping{
		{SourceColumn: "supplier", TargetRole: RoleSupplier, Confidence: 0.9},
	})
	return store
}

func TestExclusivityAcrossSelectionSequences(t *testing.T) {
	store := newCountStore()
	resolver := NewDerivedMetricResolver(store)

	// 任意选择序列下，defective_count 至多一列
	assert.NoError(t, resolver.SetDefectiveColumn("pieces_bad"))
	assert.NoError(t, resolver.SetDefectiveColumn("pieces_good"))
	assert.Equal(t, []string{"pieces_good"}, store.ColumnsWithRole(RoleDefectiveCount))

	// 分母至多一列，且 total/non_defective 语义互斥
	assert.NoError(t, resolver.SetDenominatorColumn("pieces_total"))
	assert.NoError(t, resolver.SetDenominatorType(DenominatorNonDefective))
	assert.Empty(t, store.ColumnsWithRole(RoleTotalCount))
	assert.Equal(t, []string{"pieces_total"}, store.ColumnsWithRole(RoleNonDefectiveCount))

	assert.NoError(t, resolver.SetDenominatorColumn("pieces_bad"))
	// 换列后旧分母降为ignore，pieces_good 保持不良品角色
	assert.Equal(t, []string{"pieces_bad"}, store.ColumnsWithRole(RoleNonDefectiveCount))
	entry, _ := store.Get("pieces_total")
	assert.Equal(t, RoleIgnore, entry.TargetRole)
	assert.Equal(t, []string{"pieces_good"}, store.ColumnsWithRole(RoleDefectiveCount))
}

func TestSameColumnSelectionIsRefused(t *testing.T) {
	store := newCountStore()
	resolver := NewDerivedMetricResolver(store)

	assert.NoError(t, resolver.SetDefectiveColumn("pieces_bad"))
	assert.NoError(t, resolver.SetDenominatorColumn("pieces_total"))
	before := store.Snapshot()
	beforeConfig := resolver.Config()

	// 同列选择被拒绝，先前状态完整保留
	assert.Error(t, resolver.SetDenominatorColumn("pieces_bad"))
	assert.Error(t, resolver.SetDefectiveColumn("pieces_total"))
	assert.Equal(t, before, store.Snapshot())
	assert.Equal(t, beforeConfig, resolver.Config())
}

func TestUnknownColumnIsRefused(t *testing.T) {
	store := newCountStore()
	resolver := NewDerivedMetricResolver(store)

	assert.Error(t, resolver.SetDefectiveColumn("missing"))
	assert.Error(t, resolver.SetDenominatorColumn("missing"))
	assert.Error(t, resolver.SetDenominatorType(DenominatorType("ratio")))
}

func TestFormulaWithTotalDenominator(t *testing.T) {
	store := newCountStore()
	resolver := NewDerivedMetricResolver(store)

	_, ok := resolver.Formula()
	assert.False(t, ok, "计数列未配齐时不产出公式")

	assert.NoError(t, resolver.SetDefectiveColumn("pieces_bad"))
	assert.NoError(t, resolver.SetDenominatorColumn("pieces_total"))

	formula, ok := resolver.Formula()
	assert.True(t, ok)
	assert.Equal(t, "defective/total", formula.Expression)
	assert.Equal(t, "pieces_bad", formula.DefectiveColumn)
	assert.Equal(t, "pieces_total", formula.DenominatorColumn)
	assert.Equal(t, DenominatorTotal, formula.DenominatorType)
}

func TestFormulaWithNonDefectiveDenominator(t *testing.T) {
	store := newCountStore()
	resolver := NewDerivedMetricResolver(store)

	assert.NoError(t, resolver.SetDefectiveColumn("pieces_bad"))
	assert.NoError(t, resolver.SetDenominatorType(DenominatorNonDefective))
	assert.NoError(t, resolver.SetDenominatorColumn("pieces_good"))

	formula, ok := resolver.Formula()
	assert.True(t, ok)
	assert.Equal(t, "defective/(defective+non_defective)", formula.Expression)
	assert.Equal(t, DenominatorNonDefective, formula.DenominatorType)
}

func TestDenominatorTypeSwitchUpdatesRoleInPlace(t *testing.T) {
	store := newCountStore()
	resolver := NewDerivedMetricResolver(store)

	assert.NoError(t, resolver.SetDenominatorColumn("pieces_total"))
	assert.Equal(t, []string{"pieces_total"}, store.ColumnsWithRole(RoleTotalCount))

	// 切换语义类型无需重新选择列，角色原地更新
	assert.NoError(t, resolver.SetDenominatorType(DenominatorNonDefective))
	assert.Empty(t, store.ColumnsWithRole(RoleTotalCount))
	assert.Equal(t, []string{"pieces_total"}, store.ColumnsWithRole(RoleNonDefectiveCount))
	assert.Equal(t, "pieces_total", resolver.Config().DenominatorColumn)
}

func TestResolverActivation(t *testing.T) {
	store := newCountStore()
	resolver := NewDerivedMetricResolver(store)

	// 案例B且无直接不良率/质量评分：激活（引导配置计数列）
	assert.True(t, resolver.Active(CaseDefectsOnly))
	assert.False(t, resolver.Active(CaseDelayOnly))
	assert.False(t, resolver.Active(CaseMixed))

	// 出现直接不良率列后不再激活
	store.SetRole("pieces_bad", RoleDefects)
	assert.False(t, resolver.Active(CaseDefectsOnly))
}

func TestResyncAdoptsSuggestedCountRoles(t *testing.T) {
	store := NewMappingStore()
	store.Initialize([]ColumnProfile{
		{Column: "bad", DetectedType: "integer"},
		{Column: "good", DetectedType: "integer"},
	}, []RoleMapping{
		{SourceColumn: "bad", TargetRole: RoleDefectiveCount, Confidence: 0.7},
		{SourceColumn: "good", TargetRole: RoleNonDefectiveCount, Confidence: 0.7},
	})

	// 画像分析服务直接建议计数角色时，解析器从仓库现状同步
	resolver := NewDerivedMetricResolver(store)
	config := resolver.Config()
	assert.Equal(t, "bad", config.DefectiveColumn)
	assert.Equal(t, "good", config.DenominatorColumn)
	assert.Equal(t, DenominatorNonDefective, config.DenominatorType)
}

func TestCountSampleWarnings(t *testing.T) {
	store := NewMappingStore()
	store.Initialize([]ColumnProfile{
		{Column: "bad", DetectedType: "string", SampleValues: []string{"3", "n/a"}},
		{Column: "total", DetectedType: "integer", SampleValues: []string{"500"}},
	}, nil)
	resolver := NewDerivedMetricResolver(store)
	assert.NoError(t, resolver.SetDefectiveColumn("bad"))
	assert.NoError(t, resolver.SetDenominatorColumn("total"))

	profiles := map[string]ColumnProfile{
		"bad":   {Column: "bad", SampleValues: []string{"3", "n/a"}},
		"total": {Column: "total", SampleValues: []string{"500"}},
	}

	warnings := resolver.CountSampleWarnings(profiles)
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "bad")
}
