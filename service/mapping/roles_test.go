/*
 * @module service/mapping/roles_test
 * @description 角色目录与案例规则表测试
 * @architecture 测试层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 常量校验 -> 规则表查询 -> 归一化断言
 * @rules 覆盖封闭枚举完整性与角色标识归一化
 * @dependencies testing, testify
 * @refs roles.go
 */

package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleGroups(t *testing.T) {
	// 每个角色恰好属于一个分组
	assert.Equal(t, GroupIdentity, GroupOf(RoleSupplier))

	for _, role := range []Role{RoleDatePromised, RoleDateDelivered, RoleDelay, RoleDelayDirect} {
		assert.Equal(t, GroupDelay, GroupOf(role), "角色 %s 应属于延迟组", role)
	}

	// 下单日期只是随行维度，延迟充分性判定不看它，目录也不宣示延迟能力
	assert.Equal(t, GroupContext, GroupOf(RoleOrderDate))
	for _, role := range []Role{RoleDefects, RoleQualityScore, RoleDefectiveCount, RoleTotalCount, RoleNonDefectiveCount} {
		assert.Equal(t, GroupDefect, GroupOf(role), "角色 %s 应属于缺陷组", role)
	}

	// ignore 不属于任何分组
	assert.Equal(t, GroupNone, GroupOf(RoleIgnore))
	assert.Equal(t, GroupNone, GroupOf(Role("unknown")))
}

func TestAllRolesAreValid(t *testing.T) {
	for _, role := range GetAllRoles() {
		assert.True(t, IsValidRole(role))
		assert.NotEqual(t, "未知角色", GetRoleDisplayName(role))
	}
	assert.Len(t, GetAllRoles(), 12)
	assert.False(t, IsValidRole(Role("supplier_name")))
}

func TestNormalizeRole(t *testing.T) {
	// 短名
	role, ok := NormalizeRole("defective_count")
	assert.True(t, ok)
	assert.Equal(t, RoleDefectiveCount, role)

	// 带命名空间的变体，两种表示归一为同一封闭枚举值
	role, ok = NormalizeRole("ColumnRole.DEFECTIVE_COUNT")
	assert.True(t, ok)
	assert.Equal(t, RoleDefectiveCount, role)

	role, ok = NormalizeRole("ColumnRole.SUPPLIER")
	assert.True(t, ok)
	assert.Equal(t, RoleSupplier, role)

	role, ok = NormalizeRole("  date_promised ")
	assert.True(t, ok)
	assert.Equal(t, RoleDatePromised, role)

	// 未知角色回退为 ignore
	role, ok = NormalizeRole("ColumnRole.SOMETHING_ELSE")
	assert.False(t, ok)
	assert.Equal(t, RoleIgnore, role)
}

func TestRequiredGroupsFor(t *testing.T) {
	delayOnly := RequiredGroupsFor(CaseDelayOnly)
	assert.True(t, delayOnly.NeedsIdentity)
	assert.True(t, delayOnly.NeedsDelay)
	assert.False(t, delayOnly.NeedsDefect)
	assert.False(t, delayOnly.BothRequired)

	defectsOnly := RequiredGroupsFor(CaseDefectsOnly)
	assert.True(t, defectsOnly.NeedsIdentity)
	assert.False(t, defectsOnly.NeedsDelay)
	assert.True(t, defectsOnly.NeedsDefect)

	mixed := RequiredGroupsFor(CaseMixed)
	assert.True(t, mixed.NeedsDelay)
	assert.True(t, mixed.NeedsDefect)
	assert.True(t, mixed.BothRequired)
}

func TestRequiredGroupsForUnknownCasePanics(t *testing.T) {
	// 封闭枚举之外的案例属于编程错误，必须快速失败
	assert.Panics(t, func() {
		RequiredGroupsFor(AnalysisCase("case_d"))
	})
}

func TestAnalysisCaseCatalog(t *testing.T) {
	assert.Len(t, GetAllAnalysisCases(), 3)
	for _, c := range GetAllAnalysisCases() {
		assert.True(t, IsValidAnalysisCase(c))
		assert.NotEqual(t, "未知案例", GetCaseDisplayName(c))
	}
	assert.False(t, IsValidAnalysisCase(AnalysisCase("delay")))
}
