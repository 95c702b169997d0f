/*
 * @module service/mapping/store_test
 * @description 映射仓库测试，覆盖1:1不变量、用户改派置信度与排他指派
 * @architecture 测试层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 初始化 -> 编辑 -> 快照断言
 * @rules 初始化幂等；未知列空操作；排他指派无可观察中间态
 * @dependencies testing, testify
 * @refs store.go
 */

package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testProfiles() []ColumnProfile {
	return []ColumnProfile{
		{Column: "lieferant", DetectedType: "string", SampleValues: []string{"ACME", "Globex"}, UniqueCount: 12},
		{Column: "zusage", DetectedType: "date", SampleValues: []string{"2025-01-10"}},
		{Column: "lieferdatum", DetectedType: "date", SampleValues: []string{"2025-01-12"}},
		{Column: "stueck_gesamt", DetectedType: "integer", SampleValues: []string{"500"}},
		{Column: "stueck_fehler", DetectedType: "integer", SampleValues: []string{"3"}},
	}
}

func testSuggestions() []RoleMapping {
	return []RoleMapping{
		{SourceColumn: "lieferant", TargetRole: RoleSupplier, Confidence: 0.95, Reasoning: "高基数文本列"},
		{SourceColumn: "zusage", TargetRole: RoleDatePromised, Confidence: 0.8},
		{SourceColumn: "lieferdatum", TargetRole: RoleDateDelivered, Confidence: 0.85},
	}
}

func TestInitializeCreatesOneMappingPerProfile(t *testing.T) {
	store := NewMappingStore()
	store.Initialize(testProfiles(), testSuggestions())

	// 1:1不变量：条目数等于列画像数
	assert.Equal(t, 5, store.Len())

	// 无建议的列默认ignore、置信度0
	entry, ok := store.Get("stueck_gesamt")
	assert.True(t, ok)
	assert.Equal(t, RoleIgnore, entry.TargetRole)
	assert.Equal(t, 0.0, entry.Confidence)

	// 有建议的列沿用建议
	entry, ok = store.Get("lieferant")
	assert.True(t, ok)
	assert.Equal(t, RoleSupplier, entry.TargetRole)
	assert.Equal(t, 0.95, entry.Confidence)
	assert.Equal(t, "高基数文本列", entry.Reasoning)
}

func TestInitializeIsIdempotent(t *testing.T) {
	store := NewMappingStore()
	store.Initialize(testProfiles(), testSuggestions())
	first := store.Snapshot()

	store.Initialize(testProfiles(), testSuggestions())
	second := store.Snapshot()

	// 相同输入重复初始化产生相同映射列表
	assert.Equal(t, first, second)
}

func TestSetRoleForcesConfidence(t *testing.T) {
	store := NewMappingStore()
	store.Initialize(testProfiles(), testSuggestions())

	// 用户改派权威，置信度强制为1.0，返回更新后的条目
	updated, ok := store.SetRole("zusage", RoleOrderDate)
	assert.True(t, ok)
	assert.Equal(t, RoleOrderDate, updated.TargetRole)
	assert.Equal(t, 1.0, updated.Confidence)

	entry, _ := store.Get("zusage")
	assert.Equal(t, updated, entry)
}

func TestSetRoleUnknownColumnIsNoop(t *testing.T) {
	store := NewMappingStore()
	store.Initialize(testProfiles(), testSuggestions())
	before := store.Snapshot()

	_, ok := store.SetRole("no_such_column", RoleSupplier)
	assert.False(t, ok)
	assert.Equal(t, before, store.Snapshot())
}

func TestSetRoleHasNoCrossColumnSideEffects(t *testing.T) {
	store := NewMappingStore()
	store.Initialize(testProfiles(), testSuggestions())

	// 通用角色允许多列持有，SetRole 不做排他修正
	store.SetRole("zusage", RoleSupplier)
	entry, _ := store.Get("lieferant")
	assert.Equal(t, RoleSupplier, entry.TargetRole)
	assert.Len(t, store.ColumnsWithRole(RoleSupplier), 2)
}

func TestAssignExclusiveDemotesPriorHolder(t *testing.T) {
	store := NewMappingStore()
	store.Initialize(testProfiles(), testSuggestions())

	store.assignExclusive("stueck_fehler", RoleDefectiveCount)
	store.assignExclusive("stueck_gesamt", RoleDefectiveCount)

	// 排他角色至多一列持有，旧持有者降为ignore
	assert.Equal(t, []string{"stueck_gesamt"}, store.ColumnsWithRole(RoleDefectiveCount))
	entry, _ := store.Get("stueck_fehler")
	assert.Equal(t, RoleIgnore, entry.TargetRole)
}

func TestBulkReplace(t *testing.T) {
	store := NewMappingStore()
	store.Initialize(testProfiles(), testSuggestions())

	replacement := []RoleMapping{
		{SourceColumn: "a", TargetRole: RoleSupplier, Confidence: 0.5},
		{SourceColumn: "b", TargetRole: RoleDelay, Confidence: 0.6},
	}
	store.BulkReplace(replacement)

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, replacement, store.Snapshot())
}

func TestSnapshotIsDetached(t *testing.T) {
	store := NewMappingStore()
	store.Initialize(testProfiles(), testSuggestions())

	snapshot := store.Snapshot()
	store.SetRole("lieferant", RoleIgnore)

	// 快照是值拷贝，后续编辑不影响已取出的快照
	assert.Equal(t, RoleSupplier, snapshot[0].TargetRole)
}
