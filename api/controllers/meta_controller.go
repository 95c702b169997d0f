package controllers

import (
	"net/http"

	"supplier-analysis-service/service/mapping"

	"github.com/go-chi/render"
)

type MetaController struct {
}

func NewMetaController() *MetaController {
	return &MetaController{}
}

// RoleMeta 角色目录条目
type RoleMeta struct {
	Role        mapping.Role      `json:"role"`
	DisplayName string            `json:"display_name"`
	Group       mapping.RoleGroup `json:"group"`
}

// CaseMeta 分析场景目录条目
type CaseMeta struct {
	Case        mapping.AnalysisCase   `json:"case"`
	DisplayName string                 `json:"display_name"`
	Requires    mapping.RequiredGroups `json:"requires"`
}

// @Summary 获取角色目录
// @Description 获取全部目标角色及其能力分组，用于前端映射下拉框
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]RoleMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/roles [get]
func (c *MetaController) GetRoles(w http.ResponseWriter, r *http.Request) {
	roles := mapping.GetAllRoles()
	metas := make([]RoleMeta, 0, len(roles))
	for _, role := range roles {
		metas = append(metas, RoleMeta{
			Role:        role,
			DisplayName: mapping.GetRoleDisplayName(role),
			Group:       mapping.GroupOf(role),
		})
	}
	render.JSON(w, r, SuccessResponse("获取角色目录成功", metas))
}

// @Summary 获取分析场景目录
// @Description 获取全部分析场景及各场景要求的数据能力分组
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]CaseMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/analysis-cases [get]
func (c *MetaController) GetAnalysisCases(w http.ResponseWriter, r *http.Request) {
	cases := mapping.GetAllAnalysisCases()
	metas := make([]CaseMeta, 0, len(cases))
	for _, ac := range cases {
		metas = append(metas, CaseMeta{
			Case:        ac,
			DisplayName: mapping.GetCaseDisplayName(ac),
			Requires:    mapping.RequiredGroupsFor(ac),
		})
	}
	render.JSON(w, r, SuccessResponse("获取分析场景目录成功", metas))
}

// @Summary 获取分母语义目录
// @Description 获取派生不良率支持的分母语义及对应计算公式
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=map[string]string}
// @Failure 500 {object} APIResponse
// @Router /meta/denominator-types [get]
func (c *MetaController) GetDenominatorTypes(w http.ResponseWriter, r *http.Request) {
	types := map[string]string{
		string(mapping.DenominatorTotal):        "defective/total",
		string(mapping.DenominatorNonDefective): "defective/(defective+non_defective)",
	}
	render.JSON(w, r, SuccessResponse("获取分母语义目录成功", types))
}
