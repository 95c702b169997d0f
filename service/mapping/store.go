/*
 * @module service/mapping/store
 * @description 映射仓库，维护源列到目标角色的可编辑映射列表，保证列与映射1:1不变量
 * @architecture 分层架构 - 业务服务层（会话内内存结构）
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 批量初始化 -> 交互式编辑 -> 快照供验证引擎读取
 * @rules 未知列名的变更为空操作；计数类角色的排他改派由派生指标解析器独占负责
 * @dependencies log/slog
 * @refs service/mapping/derived.go, service/mapping/validator.go
 */

package mapping

import "log/slog"

// MappingStore 映射仓库
// 单写者使用（一个交互式编辑会话），内部不加锁，见 session_service 的会话级互斥
type MappingStore struct {
	entries []*RoleMapping
	index   map[string]*RoleMapping
}

// NewMappingStore 创建空的映射仓库
func NewMappingStore() *MappingStore {
	return &MappingStore{
		index: make(map[string]*RoleMapping),
	}
}

// Initialize 按列画像批量建立映射，每列恰好一条
// 画像分析服务未给出建议的列默认 ignore、置信度0；重复初始化产生相同结果
func (s *MappingStore) Initialize(profiles []ColumnProfile, suggested []RoleMapping) {
	suggestion := make(map[string]RoleMapping, len(suggested))
	for _, m := range suggested {
		suggestion[m.SourceColumn] = m
	}

	s.entries = make([]*RoleMapping, 0, len(profiles))
	s.index = make(map[string]*RoleMapping, len(profiles))

	for _, profile := range profiles {
		entry := &RoleMapping{
			SourceColumn: profile.Column,
			TargetRole:   RoleIgnore,
			Confidence:   0,
		}
		if m, exists := suggestion[profile.Column]; exists {
			entry.TargetRole = m.TargetRole
			entry.Confidence = m.Confidence
			entry.Reasoning = m.Reasoning
			entry.TransformationHint = m.TransformationHint
		}
		s.entries = append(s.entries, entry)
		s.index[profile.Column] = entry
	}
}

// SetRole 改派指定列的目标角色，用户操作权威，置信度强制为1.0
// 返回更新后的条目副本；未知列名视为调用方编程错误，记录日志后空操作
// 非计数类角色之间允许自由重复指派，不做跨列副作用
func (s *MappingStore) SetRole(column string, role Role) (RoleMapping, bool) {
	entry, exists := s.index[column]
	if !exists {
		slog.Warn("映射仓库收到未知列名的角色改派", "column", column, "role", role)
		return RoleMapping{}, false
	}

	entry.TargetRole = role
	entry.Confidence = 1.0
	return *entry, true
}

// BulkReplace 整体替换映射列表
// 用于切换案例时按案例预置默认角色，以及复核轮次覆盖旧映射
func (s *MappingStore) BulkReplace(entries []RoleMapping) {
	s.entries = make([]*RoleMapping, 0, len(entries))
	s.index = make(map[string]*RoleMapping, len(entries))
	for i := range entries {
		entry := entries[i]
		s.entries = append(s.entries, &entry)
		s.index[entry.SourceColumn] = &entry
	}
}

// Get 查询指定列的映射条目副本
func (s *MappingStore) Get(column string) (RoleMapping, bool) {
	if entry, exists := s.index[column]; exists {
		return *entry, true
	}
	return RoleMapping{}, false
}

// Has 判断指定列是否存在
func (s *MappingStore) Has(column string) bool {
	_, exists := s.index[column]
	return exists
}

// Len 返回映射条目数量
func (s *MappingStore) Len() int {
	return len(s.entries)
}

// Snapshot 返回映射列表的不可变值拷贝，保持初始化顺序
// 验证引擎只读取快照，避免并行预验证时读到撕裂状态
func (s *MappingStore) Snapshot() []RoleMapping {
	snapshot := make([]RoleMapping, 0, len(s.entries))
	for _, entry := range s.entries {
		snapshot = append(snapshot, *entry)
	}
	return snapshot
}

// ColumnsWithRole 返回当前持有指定角色的列名列表（按初始化顺序）
func (s *MappingStore) ColumnsWithRole(role Role) []string {
	var columns []string
	for _, entry := range s.entries {
		if entry.TargetRole == role {
			columns = append(columns, entry.SourceColumn)
		}
	}
	return columns
}

// assignExclusive 排他指派：一次事务性变更内完成新列赋角色与旧持有者降级
// demoted 中任一角色的既有持有者（目标列除外）统一降为 ignore，
// 不存在两列短暂同时持有排他角色的可观察中间态
func (s *MappingStore) assignExclusive(column string, role Role, demoted ...Role) bool {
	target, exists := s.index[column]
	if !exists {
		slog.Warn("映射仓库收到未知列名的排他指派", "column", column, "role", role)
		return false
	}

	demotedSet := make(map[Role]bool, len(demoted)+1)
	demotedSet[role] = true
	for _, r := range demoted {
		demotedSet[r] = true
	}

	for _, entry := range s.entries {
		if entry != target && demotedSet[entry.TargetRole] {
			entry.TargetRole = RoleIgnore
			entry.Confidence = 1.0
		}
	}

	target.TargetRole = role
	target.Confidence = 1.0
	return true
}
