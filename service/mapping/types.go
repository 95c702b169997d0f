/*
 * @module service/mapping/types
 * @description 列映射引擎的核心数据结构，包括列画像、角色映射和分析服务输出载荷
 * @architecture 数据模型层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 分析服务输出 -> 入口归一化 -> 映射仓库初始化
 * @rules 列画像为只读输入，角色映射为会话内可变状态，每个源列恰好一条映射
 * @dependencies 无外部依赖
 * @refs service/mapping/store.go, service/oracle/listener.go
 */

package mapping

// ColumnProfile 列画像，由外部画像分析服务产出，本引擎只读
type ColumnProfile struct {
	Column       string   `json:"column"`
	DetectedType string   `json:"detected_type"` // integer, float, date, string, boolean
	SampleValues []string `json:"sample_values"`
	NullCount    int      `json:"null_count"`
	UniqueCount  int      `json:"unique_count"`
}

// RoleMapping 源列到目标角色的映射条目
// TargetRole 默认取画像分析服务的建议值，用户改派后 Confidence 强制为1.0
type RoleMapping struct {
	SourceColumn       string  `json:"source_column"`
	TargetRole         Role    `json:"target_role"`
	Confidence         float64 `json:"confidence"`
	Reasoning          string  `json:"reasoning"`
	TransformationHint string  `json:"transformation_hint,omitempty"`
}

// IssueSeverity 画像问题严重级别
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
	SeverityInfo    IssueSeverity = "info"
)

// ProfilingIssue 画像分析阶段发现的问题，本引擎原样透传
type ProfilingIssue struct {
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// AnalysisResult 画像分析服务的完整输出，每次导入消费一次
type AnalysisResult struct {
	Mappings       []RoleMapping    `json:"mappings"`
	ColumnAnalysis []ColumnProfile  `json:"column_analysis"`
	DetectedCase   AnalysisCase     `json:"detected_case"`
	Issues         []ProfilingIssue `json:"issues"`
	Recommendation string           `json:"recommendation"`
}
