/*
 * @module service/mapping/session_service
 * @description 导入会话服务，编排映射仓库、派生指标解析器与验证引擎，管理会话生命周期与提交
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 画像结果进入 -> 会话编辑 -> 每次变更全量重验证 -> 提交入库/复核轮次
 * @rules 每个会话单写者；提交前必须通过验证闸门；提交加分布式锁防多实例重复入库
 * @dependencies gorm.io/gorm, github.com/google/uuid, github.com/prometheus/client_golang
 * @refs service/mapping/store.go, client/ingestion_client.go, service/distributed_lock
 */

package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"supplier-analysis-service/service/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// ApplyRequest 提交给入库服务的最终映射载荷
type ApplyRequest struct {
	SessionID      string             `json:"session_id"`
	Mappings       []RoleMapping      `json:"mappings"` // 仅含非ignore列
	TargetCase     AnalysisCase       `json:"target_case"`
	DerivedFormula *FormulaDescriptor `json:"derived_formula,omitempty"`
}

// ApplyResponse 入库服务的处理结果
type ApplyResponse struct {
	Success  bool     `json:"success"`
	Warnings []string `json:"warnings"` // 如：值被强转、行被丢弃
	Errors   []string `json:"errors"`   // 仅 success=false 时出现
}

// IngestionClient 入库服务客户端接口
type IngestionClient interface {
	Apply(ctx context.Context, req *ApplyRequest) (*ApplyResponse, error)
}

// OracleClient 画像分析服务客户端接口，用于触发复核轮次
type OracleClient interface {
	RequestReview(ctx context.Context, sessionID string, profiles []ColumnProfile) error
}

// ApplyLock 提交互斥锁接口，由 distributed_lock 包的Redis实现满足
type ApplyLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// 提交锁的保护时长，覆盖一次入库调用的最长耗时
const applyLockTTL = 2 * time.Minute

var (
	sessionsOpenedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_sessions_opened_total",
		Help: "导入会话创建总数",
	})
	validationsRunTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_validations_run_total",
		Help: "映射验证执行总数",
	})
	appliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_applies_total",
		Help: "入库提交总数（按结果）",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(sessionsOpenedTotal, validationsRunTotal, appliesTotal)
}

// editSession 单个导入会话的内存态
// 单写者（交互式编辑会话），跨会话的并发由服务级互斥保护
type editSession struct {
	id                string
	name              string
	status            string
	targetCase        AnalysisCase
	detectedCase      AnalysisCase
	recommendation    string
	store             *MappingStore
	resolver          *DerivedMetricResolver
	profileOrder      []ColumnProfile
	profiles          map[string]ColumnProfile
	issues            []ProfilingIssue
	ingestionErrors   []string
	ingestionWarnings []string
	reviewRound       int
}

// SessionView 会话的对外视图，供API层返回
type SessionView struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Status         string              `json:"status"`
	TargetCase     AnalysisCase        `json:"target_case"`
	DetectedCase   AnalysisCase        `json:"detected_case"`
	Recommendation string              `json:"recommendation"`
	Mappings       []RoleMapping       `json:"mappings"`
	ColumnProfiles []ColumnProfile     `json:"column_profiles"`
	DerivedConfig  DerivedMetricConfig `json:"derived_config"`
	ResolverActive bool                `json:"resolver_active"`
	Formula        *FormulaDescriptor  `json:"formula,omitempty"`
	ReviewRound    int                 `json:"review_round"`
	Report         ValidationReport    `json:"report"`
}

// ImportSessionService 导入会话服务
type ImportSessionService struct {
	db        *gorm.DB
	ingestion IngestionClient
	oracle    OracleClient
	lock      ApplyLock // 可为nil（单实例部署时退化为无锁）

	mu       sync.Mutex
	sessions map[string]*editSession
}

// NewImportSessionService 创建导入会话服务实例
func NewImportSessionService(db *gorm.DB, ingestion IngestionClient, oracle OracleClient, lock ApplyLock) *ImportSessionService {
	return &ImportSessionService{
		db:        db,
		ingestion: ingestion,
		oracle:    oracle,
		lock:      lock,
		sessions:  make(map[string]*editSession),
	}
}

// OpenSession 由画像分析服务的输出建立新的导入会话
// 建议映射中的角色标识在此归一化；画像未覆盖的列默认ignore；
// 会话建立后立即执行首轮验证并落库
func (s *ImportSessionService) OpenSession(name string, result *AnalysisResult) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &editSession{
		id:             uuid.New().String(),
		name:           name,
		status:         models.SessionStatusEditing,
		recommendation: result.Recommendation,
		issues:         result.Issues,
	}

	session.targetCase = result.DetectedCase
	session.detectedCase = result.DetectedCase
	if !IsValidAnalysisCase(session.targetCase) {
		slog.Warn("画像分析服务给出未知的检测案例，回退为交付延迟分析",
			"session_id", session.id, "detected_case", result.DetectedCase)
		session.targetCase = CaseDelayOnly
		session.detectedCase = CaseDelayOnly
	}

	session.profileOrder = result.ColumnAnalysis
	session.profiles = make(map[string]ColumnProfile, len(result.ColumnAnalysis))
	for _, profile := range result.ColumnAnalysis {
		session.profiles[profile.Column] = profile
	}

	suggested := make([]RoleMapping, 0, len(result.Mappings))
	for _, m := range result.Mappings {
		role, ok := NormalizeRole(string(m.TargetRole))
		if !ok {
			slog.Warn("建议映射包含未知角色，按ignore处理",
				"session_id", session.id, "column", m.SourceColumn, "raw_role", m.TargetRole)
			m.Confidence = 0
		}
		m.TargetRole = role
		suggested = append(suggested, m)
	}

	session.store = NewMappingStore()
	session.store.Initialize(session.profileOrder, suggested)
	session.resolver = NewDerivedMetricResolver(session.store)

	s.sessions[session.id] = session
	sessionsOpenedTotal.Inc()

	if err := s.persist(session); err != nil {
		delete(s.sessions, session.id)
		return nil, fmt.Errorf("保存导入会话失败: %w", err)
	}

	slog.Info("导入会话已创建", "session_id", session.id, "name", name,
		"columns", session.store.Len(), "target_case", session.targetCase)
	view := s.view(session)
	return &view, nil
}

// GetSession 获取会话当前视图
func (s *ImportSessionService) GetSession(id string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.editable(id, false)
	if err != nil {
		return nil, err
	}
	view := s.view(session)
	return &view, nil
}

// SetRole 改派指定列的角色并重新验证
func (s *ImportSessionService) SetRole(id, column string, rawRole string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.editable(id, true)
	if err != nil {
		return nil, err
	}

	role, ok := NormalizeRole(rawRole)
	if !ok {
		return nil, fmt.Errorf("未知的目标角色: %s", rawRole)
	}
	if _, ok := session.store.SetRole(column, role); !ok {
		return nil, fmt.Errorf("列不存在: %s", column)
	}

	// 计数类角色可能被本次改派覆盖或让出，解析器配置需要重新对齐
	session.resolver.Resync()
	return s.commit(session)
}

// SetCase 切换分析案例并重新验证
// 留有按案例预置默认角色的扩展点（BulkReplace），当前策略为保持现有映射
func (s *ImportSessionService) SetCase(id string, rawCase string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.editable(id, true)
	if err != nil {
		return nil, err
	}

	c := AnalysisCase(rawCase)
	if !IsValidAnalysisCase(c) {
		return nil, fmt.Errorf("未知的分析案例: %s", rawCase)
	}

	session.targetCase = c
	return s.commit(session)
}

// SetDefectiveColumn 选择不良品数量列
func (s *ImportSessionService) SetDefectiveColumn(id, column string) (*SessionView, error) {
	return s.mutateResolver(id, func(r *DerivedMetricResolver) error {
		return r.SetDefectiveColumn(column)
	})
}

// SetDenominatorColumn 选择分母列
func (s *ImportSessionService) SetDenominatorColumn(id, column string) (*SessionView, error) {
	return s.mutateResolver(id, func(r *DerivedMetricResolver) error {
		return r.SetDenominatorColumn(column)
	})
}

// SetDenominatorType 切换分母语义类型
func (s *ImportSessionService) SetDenominatorType(id string, t DenominatorType) (*SessionView, error) {
	return s.mutateResolver(id, func(r *DerivedMetricResolver) error {
		return r.SetDenominatorType(t)
	})
}

func (s *ImportSessionService) mutateResolver(id string, mutate func(*DerivedMetricResolver) error) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.editable(id, true)
	if err != nil {
		return nil, err
	}
	if err := mutate(session.resolver); err != nil {
		return nil, err
	}
	return s.commit(session)
}

// Apply 将用户确认的映射提交给入库服务
// 验证闸门未通过时拒绝；多实例部署下以Redis锁防止同一会话并发提交；
// 入库失败不丢弃会话，拒绝信息并入报告供用户修正后重新提交
func (s *ImportSessionService) Apply(ctx context.Context, id string) (*SessionView, error) {
	// 先取提交锁再读取会话快照，持锁期间的编辑不会被落后的快照覆盖
	if s.lock != nil {
		lockKey := "import:apply:" + id
		acquired, lockErr := s.lock.TryLock(ctx, lockKey, applyLockTTL)
		if lockErr != nil {
			slog.Error("获取提交锁失败", "session_id", id, "error", lockErr)
			return nil, fmt.Errorf("获取提交锁失败: %w", lockErr)
		}
		if !acquired {
			return nil, fmt.Errorf("会话 %s 正在提交中，请勿重复操作", id)
		}
		defer func() {
			if unlockErr := s.lock.Unlock(ctx, lockKey); unlockErr != nil {
				slog.Warn("释放提交锁失败", "session_id", id, "error", unlockErr)
			}
		}()
	}

	s.mu.Lock()
	session, err := s.editable(id, true)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	report := s.report(session)
	if !report.CanApply {
		s.mu.Unlock()
		return nil, fmt.Errorf("当前映射未通过验证，剩余 %d 个错误", len(report.Errors))
	}
	req := s.buildApplyRequest(session)
	s.mu.Unlock()

	startTime := time.Now()
	resp, err := s.ingestion.Apply(ctx, req)
	duration := time.Since(startTime).Milliseconds()
	if err != nil {
		appliesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("调用入库服务失败: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 锁外调用期间会话可能被取消
	session, err = s.editable(id, false)
	if err != nil {
		return nil, err
	}

	attempt := &models.ApplyAttempt{
		SessionID:    id,
		TargetCase:   string(req.TargetCase),
		MappingCount: len(req.Mappings),
		Success:      resp.Success,
		Errors:       resp.Errors,
		Warnings:     resp.Warnings,
		Duration:     duration,
	}
	if dbErr := s.db.Create(attempt).Error; dbErr != nil {
		slog.Error("记录提交尝试失败", "session_id", id, "error", dbErr)
	}

	if resp.Success {
		session.status = models.SessionStatusApplied
		session.ingestionErrors = nil
		session.ingestionWarnings = resp.Warnings
		appliesTotal.WithLabelValues("success").Inc()
		slog.Info("导入会话提交成功", "session_id", id,
			"mappings", len(req.Mappings), "duration_ms", duration)
	} else {
		session.ingestionErrors = resp.Errors
		session.ingestionWarnings = resp.Warnings
		appliesTotal.WithLabelValues("rejected").Inc()
		slog.Warn("入库服务拒绝了提交", "session_id", id, "errors", len(resp.Errors))
	}

	return s.commit(session)
}

// RequestReview 触发画像分析服务的复核轮次
// 会话转入等待状态，复核结果到达后经 SupersedeSession 覆盖现有映射
func (s *ImportSessionService) RequestReview(ctx context.Context, id string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.editable(id, true)
	if err != nil {
		return nil, err
	}
	if s.oracle == nil {
		return nil, fmt.Errorf("画像分析服务未配置，无法发起复核")
	}

	if err := s.oracle.RequestReview(ctx, id, session.profileOrder); err != nil {
		return nil, fmt.Errorf("发起复核失败: %w", err)
	}

	session.status = models.SessionStatusNeedsReview
	return s.commit(session)
}

// SupersedeSession 复核轮次结果到达，整体覆盖会话的画像与映射
// 按新画像重建映射仓库，旧选择不保留；未给出建议的列默认 ignore；轮次计数递增
func (s *ImportSessionService) SupersedeSession(id string, result *AnalysisResult) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return nil, fmt.Errorf("导入会话不存在: %s", id)
	}

	session.profileOrder = result.ColumnAnalysis
	session.profiles = make(map[string]ColumnProfile, len(result.ColumnAnalysis))
	for _, profile := range result.ColumnAnalysis {
		session.profiles[profile.Column] = profile
	}

	replacement := make([]RoleMapping, 0, len(result.Mappings))
	for _, m := range result.Mappings {
		role, ok := NormalizeRole(string(m.TargetRole))
		if !ok {
			slog.Warn("复核结果包含未知角色，按ignore处理",
				"session_id", session.id, "column", m.SourceColumn, "raw_role", m.TargetRole)
			m.Confidence = 0
		}
		m.TargetRole = role
		replacement = append(replacement, m)
	}
	session.store.Initialize(session.profileOrder, replacement)
	session.resolver.Resync()

	session.issues = result.Issues
	session.recommendation = result.Recommendation
	session.ingestionErrors = nil
	session.ingestionWarnings = nil
	session.reviewRound++
	session.status = models.SessionStatusEditing

	slog.Info("导入会话已被复核轮次覆盖", "session_id", id, "review_round", session.reviewRound)
	return s.commit(session)
}

// CancelSession 取消会话，丢弃全部编辑内容
func (s *ImportSessionService) CancelSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return fmt.Errorf("导入会话不存在: %s", id)
	}

	delete(s.sessions, id)
	err := s.db.Model(&models.ImportSession{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   models.SessionStatusCancelled,
			"mappings": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("标记会话取消失败: %w", err)
	}

	slog.Info("导入会话已取消", "session_id", id, "name", session.name)
	return nil
}

// ListSessions 分页查询会话记录，status为空时不过滤
func (s *ImportSessionService) ListSessions(page, pageSize int, status string) ([]models.ImportSession, int64, error) {
	var records []models.ImportSession
	var total int64

	query := s.db.Model(&models.ImportSession{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("updated_at DESC").
		Offset(offset).Limit(pageSize).Find(&records).Error

	return records, total, err
}

// RestoreSessions 服务重启后从数据库恢复未完结的会话
func (s *ImportSessionService) RestoreSessions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.ImportSession
	err := s.db.Where("status IN ?", []string{models.SessionStatusEditing, models.SessionStatusNeedsReview}).
		Find(&records).Error
	if err != nil {
		return fmt.Errorf("加载未完结会话失败: %w", err)
	}

	restored := 0
	for i := range records {
		session, restoreErr := s.fromRecord(&records[i])
		if restoreErr != nil {
			slog.Error("恢复导入会话失败", "session_id", records[i].ID, "error", restoreErr)
			continue
		}
		s.sessions[session.id] = session
		restored++
	}

	if restored > 0 {
		slog.Info("已恢复未完结的导入会话", "count", restored)
	}
	return nil
}

// editable 查找会话；requireEditing 为真时校验会话仍可编辑
func (s *ImportSessionService) editable(id string, requireEditing bool) (*editSession, error) {
	session, exists := s.sessions[id]
	if !exists {
		return nil, fmt.Errorf("导入会话不存在: %s", id)
	}
	if requireEditing && session.status == models.SessionStatusApplied {
		return nil, fmt.Errorf("会话 %s 已提交完成，不可再编辑", id)
	}
	return session, nil
}

// commit 重新验证并落库，返回最新视图
// 每次变更都全量重验证：验证引擎为纯函数且开销极小，勿在此做防抖
func (s *ImportSessionService) commit(session *editSession) (*SessionView, error) {
	if err := s.persist(session); err != nil {
		return nil, fmt.Errorf("保存导入会话失败: %w", err)
	}
	view := s.view(session)
	return &view, nil
}

// report 构建会话当前验证报告
func (s *ImportSessionService) report(session *editSession) ValidationReport {
	result := ValidateCase(session.store.Snapshot(), session.targetCase, session.resolver.Config())
	validationsRunTotal.Inc()

	rpt := BuildReport(session.issues, result, session.ingestionErrors, session.ingestionWarnings)
	if session.resolver.Active(session.targetCase) {
		rpt.Warnings = append(rpt.Warnings, session.resolver.CountSampleWarnings(session.profiles)...)
	}
	return rpt
}

func (s *ImportSessionService) view(session *editSession) SessionView {
	view := SessionView{
		ID:             session.id,
		Name:           session.name,
		Status:         session.status,
		TargetCase:     session.targetCase,
		DetectedCase:   session.detectedCase,
		Recommendation: session.recommendation,
		Mappings:       session.store.Snapshot(),
		ColumnProfiles: session.profileOrder,
		DerivedConfig:  session.resolver.Config(),
		ResolverActive: session.resolver.Active(session.targetCase),
		ReviewRound:    session.reviewRound,
		Report:         s.report(session),
	}
	if formula, ok := session.resolver.Formula(); ok {
		view.Formula = &formula
	}
	return view
}

func (s *ImportSessionService) buildApplyRequest(session *editSession) *ApplyRequest {
	req := &ApplyRequest{
		SessionID:  session.id,
		TargetCase: session.targetCase,
	}
	for _, entry := range session.store.Snapshot() {
		if entry.TargetRole != RoleIgnore {
			req.Mappings = append(req.Mappings, entry)
		}
	}
	if formula, ok := session.resolver.Formula(); ok && session.resolver.Active(session.targetCase) {
		req.DerivedFormula = &formula
	}
	return req
}

// persist 将会话快照写入数据库
func (s *ImportSessionService) persist(session *editSession) error {
	record := &models.ImportSession{
		ID:             session.id,
		Name:           session.name,
		Status:         session.status,
		TargetCase:     string(session.targetCase),
		DetectedCase:   string(session.detectedCase),
		Recommendation: session.recommendation,
		ColumnProfiles: toJSONBArray(session.profileOrder),
		Mappings:       toJSONBArray(session.store.Snapshot()),
		Issues:         toJSONBArray(session.issues),
		DerivedConfig:  toJSONB(session.resolver.Config()),
		ReviewRound:    session.reviewRound,
	}
	if session.status == models.SessionStatusApplied {
		now := time.Now()
		record.AppliedAt = &now
	}
	return s.db.Save(record).Error
}

// fromRecord 由数据库记录重建内存会话
func (s *ImportSessionService) fromRecord(record *models.ImportSession) (*editSession, error) {
	session := &editSession{
		id:             record.ID,
		name:           record.Name,
		status:         record.Status,
		targetCase:     AnalysisCase(record.TargetCase),
		detectedCase:   AnalysisCase(record.DetectedCase),
		recommendation: record.Recommendation,
		reviewRound:    record.ReviewRound,
	}
	if !IsValidAnalysisCase(session.targetCase) {
		return nil, fmt.Errorf("会话记录包含未知案例: %s", record.TargetCase)
	}

	if err := fromJSONBArray(record.ColumnProfiles, &session.profileOrder); err != nil {
		return nil, fmt.Errorf("解析列画像失败: %w", err)
	}
	session.profiles = make(map[string]ColumnProfile, len(session.profileOrder))
	for _, profile := range session.profileOrder {
		session.profiles[profile.Column] = profile
	}

	var mappings []RoleMapping
	if err := fromJSONBArray(record.Mappings, &mappings); err != nil {
		return nil, fmt.Errorf("解析映射快照失败: %w", err)
	}
	if err := fromJSONBArray(record.Issues, &session.issues); err != nil {
		return nil, fmt.Errorf("解析画像问题失败: %w", err)
	}

	session.store = NewMappingStore()
	session.store.Initialize(session.profileOrder, mappings)
	session.resolver = NewDerivedMetricResolver(session.store)

	var derived DerivedMetricConfig
	if err := fromJSONB(record.DerivedConfig, &derived); err == nil && derived.DenominatorType != "" {
		// 分母类型不由角色推导（列未选时无角色可依据），需单独恢复
		_ = session.resolver.SetDenominatorType(derived.DenominatorType)
	}

	return session, nil
}

func toJSONB(v interface{}) models.JSONB {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out models.JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func toJSONBArray(v interface{}) models.JSONBArray {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out models.JSONBArray
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func fromJSONB(in models.JSONB, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func fromJSONBArray(in models.JSONBArray, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
