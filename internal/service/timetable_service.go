package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/dto"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/repository"
	pkgerrors "github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/errors"
)

// ── 课表模块业务错误 ──

var (
	ErrTimetableInvalidWindow = pkgerrors.InvalidInput("effective_to must not be before effective_from")
	ErrTimetableNoneCovering  = pkgerrors.NotFound("No active timetable for this class and section on the given date")
)

// ── TimetableService 接口 ──────────────────────────────────
//
// 设计说明：
//   - 课表是 (班级, 分班, 生效窗口) 的版本容器，条目只能经 EntryScheduler 写入。
//   - 更新只改字段，不重新检查已有条目的冲突；窗口之间是否重叠由调用方负责。
//   - 删除在单个事务中先删条目再删课表，任何一步失败都整体回滚。
// ─────────────────────────────────────────────────────────────

// TimetableService 课表生命周期业务接口
type TimetableService interface {
	Create(ctx context.Context, scope Scope, req *dto.CreateTimetableRequest) (*dto.TimetableResponse, error)
	GetByID(ctx context.Context, scope Scope, id string) (*dto.TimetableResponse, error)
	List(ctx context.Context, scope Scope, req *dto.TimetableListRequest) ([]dto.TimetableResponse, int64, error)
	Update(ctx context.Context, scope Scope, id string, req *dto.UpdateTimetableRequest) (*dto.TimetableResponse, error)
	Delete(ctx context.Context, scope Scope, id string) error
	// GetByClassSection 返回在指定日期生效的有效课表（生效日期最晚者优先）
	GetByClassSection(ctx context.Context, scope Scope, q *dto.ClassSectionQuery) (*dto.TimetableResponse, error)
	// GetByTeacher 返回教师在分校所有有效课表中的条目
	GetByTeacher(ctx context.Context, scope Scope, teacherID string) (*dto.TeacherTimetableResponse, error)
}

type timetableService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewTimetableService 创建 TimetableService 实例
func NewTimetableService(repo *repository.Repository, logger *zap.Logger) TimetableService {
	return &timetableService{repo: repo, logger: logger, now: time.Now}
}

// ════════════════════════════════════════════════════════════
// Create — 创建课表
// ════════════════════════════════════════════════════════════
//
// 校验顺序：学年（租户）→ 班级（租户 + 分校）→ 分班属于班级 → 生效窗口

func (s *timetableService) Create(ctx context.Context, scope Scope, req *dto.CreateTimetableRequest) (*dto.TimetableResponse, error) {
	exists, err := s.repo.Reference.AcademicYearExists(ctx, req.AcademicYearID, scope.TenantID)
	if err != nil {
		s.logger.Error("查询学年失败", zap.Error(err))
		return nil, err
	}
	if !exists {
		return nil, ErrAcademicYearNotFound
	}

	class, err := s.repo.Reference.GetClass(ctx, req.ClassID, scope.TenantID, scope.BranchID)
	if err != nil {
		return nil, notFoundOr(err, ErrClassNotFound)
	}

	section, err := s.repo.Reference.GetSection(ctx, req.SectionID, class.ClassID)
	if err != nil {
		return nil, notFoundOr(err, ErrSectionNotFound)
	}

	from, to, err := req.Window()
	if err != nil {
		return nil, ErrTimetableInvalidWindow
	}

	timetable := &model.Timetable{
		TenantID:       scope.TenantID,
		BranchID:       scope.BranchID,
		AcademicYearID: req.AcademicYearID,
		ClassID:        class.ClassID,
		SectionID:      section.SectionID,
		EffectiveFrom:  from,
		EffectiveTo:    to,
		IsActive:       true,
	}
	timetable.CreatedBy = scope.actor()
	timetable.UpdatedBy = scope.actor()

	if err := s.repo.Timetable.Create(ctx, timetable); err != nil {
		s.logger.Error("创建课表失败", zap.Error(err))
		return nil, err
	}

	timetable.Class = class
	timetable.Section = section

	s.logger.Info("课表已创建",
		zap.String("timetable_id", timetable.TimetableID),
		zap.String("class_id", class.ClassID),
		zap.String("section_id", section.SectionID),
	)
	return toTimetableResponse(timetable), nil
}

// ════════════════════════════════════════════════════════════
// GetByID / List
// ════════════════════════════════════════════════════════════

func (s *timetableService) GetByID(ctx context.Context, scope Scope, id string) (*dto.TimetableResponse, error) {
	timetable, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return toTimetableResponse(timetable), nil
}

func (s *timetableService) List(ctx context.Context, scope Scope, req *dto.TimetableListRequest) ([]dto.TimetableResponse, int64, error) {
	filter := repository.TimetableFilter{
		TenantID:       scope.TenantID,
		BranchID:       scope.BranchID,
		AcademicYearID: req.AcademicYearID,
		ClassID:        req.ClassID,
		SectionID:      req.SectionID,
		IsActive:       req.IsActive,
		Offset:         req.GetOffset(),
		Limit:          req.GetPageSize(),
	}

	timetables, total, err := s.repo.Timetable.List(ctx, filter)
	if err != nil {
		s.logger.Error("列出课表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.TimetableResponse, 0, len(timetables))
	for i := range timetables {
		result = append(result, *toTimetableResponse(&timetables[i]))
	}
	return result, total, nil
}

// ════════════════════════════════════════════════════════════
// Update — 仅修改字段，不触发冲突复查
// ════════════════════════════════════════════════════════════

func (s *timetableService) Update(ctx context.Context, scope Scope, id string, req *dto.UpdateTimetableRequest) (*dto.TimetableResponse, error) {
	timetable, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	// 客户端带版本号时做并发校验
	if req.Version != nil && *req.Version != timetable.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	if req.EffectiveFrom != nil {
		from, err := time.Parse(dto.DateLayout, *req.EffectiveFrom)
		if err != nil {
			return nil, ErrTimetableInvalidWindow
		}
		timetable.EffectiveFrom = from
	}
	if req.ClearEffectiveTo {
		timetable.EffectiveTo = nil
	} else if req.EffectiveTo != nil {
		to, err := time.Parse(dto.DateLayout, *req.EffectiveTo)
		if err != nil {
			return nil, ErrTimetableInvalidWindow
		}
		timetable.EffectiveTo = &to
	}
	if timetable.EffectiveTo != nil && timetable.EffectiveTo.Before(timetable.EffectiveFrom) {
		return nil, ErrTimetableInvalidWindow
	}
	if req.IsActive != nil {
		timetable.IsActive = *req.IsActive
	}
	timetable.UpdatedBy = scope.actor()

	if err := s.repo.Timetable.Update(ctx, timetable); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新课表失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	return toTimetableResponse(timetable), nil
}

// ════════════════════════════════════════════════════════════
// Delete — 级联软删除
// ════════════════════════════════════════════════════════════

func (s *timetableService) Delete(ctx context.Context, scope Scope, id string) error {
	if _, err := s.load(ctx, scope, id); err != nil {
		return err
	}

	if err := s.repo.Timetable.DeleteCascade(ctx, id, scope.ActorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTimetableNotFound
		}
		s.logger.Error("级联删除课表失败", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("课表已删除", zap.String("timetable_id", id), zap.String("actor_id", scope.ActorID))
	return nil
}

// ════════════════════════════════════════════════════════════
// GetByClassSection — 按日期选取生效版本
// ════════════════════════════════════════════════════════════

func (s *timetableService) GetByClassSection(ctx context.Context, scope Scope, q *dto.ClassSectionQuery) (*dto.TimetableResponse, error) {
	day := s.now()
	if q.Date != "" {
		parsed, err := time.Parse(dto.DateLayout, q.Date)
		if err != nil {
			return nil, pkgerrors.InvalidInput("Invalid date %q", q.Date)
		}
		day = parsed
	}

	candidates, err := s.repo.Timetable.ListActiveByClassSection(ctx, scope.TenantID, scope.BranchID, q.ClassID, q.SectionID)
	if err != nil {
		s.logger.Error("按班级查询课表失败", zap.Error(err))
		return nil, err
	}

	// candidates 已按 effective_from 倒序，首个覆盖该日期的即为当前版本
	for i := range candidates {
		if candidates[i].Covers(day) {
			return s.GetByID(ctx, scope, candidates[i].TimetableID)
		}
	}
	return nil, ErrTimetableNoneCovering
}

// ════════════════════════════════════════════════════════════
// GetByTeacher
// ════════════════════════════════════════════════════════════

func (s *timetableService) GetByTeacher(ctx context.Context, scope Scope, teacherID string) (*dto.TeacherTimetableResponse, error) {
	teacher, err := s.repo.Reference.GetTeacher(ctx, teacherID, scope.TenantID)
	if err != nil {
		return nil, notFoundOr(err, ErrTeacherNotFound)
	}
	if teacher.BranchID != scope.BranchID {
		return nil, ErrTeacherNotFound
	}

	items, err := s.repo.TimetableEntry.ListByTeacher(ctx, scope.TenantID, scope.BranchID, teacherID)
	if err != nil {
		s.logger.Error("查询教师课表失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, err
	}

	resp := &dto.TeacherTimetableResponse{
		TeacherID: teacherID,
		Entries:   make([]dto.TeacherEntryResponse, 0, len(items)),
	}
	for i := range items {
		item := &items[i]
		resp.Entries = append(resp.Entries, dto.TeacherEntryResponse{
			EntryResponse: *toEntryResponse(&item.Entry),
			ClassName:     item.ClassName,
			SectionName:   item.SectionName,
			EffectiveFrom: item.EffectiveFrom.Format(dto.DateLayout),
			EffectiveTo:   formatDatePtr(item.EffectiveTo),
		})
	}
	return resp, nil
}

// ── 内部辅助方法 ──

func (s *timetableService) load(ctx context.Context, scope Scope, id string) (*model.Timetable, error) {
	timetable, err := s.repo.Timetable.GetByID(ctx, scope.TenantID, scope.BranchID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimetableNotFound
		}
		s.logger.Error("查询课表失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return timetable, nil
}

func toTimetableResponse(t *model.Timetable) *dto.TimetableResponse {
	resp := &dto.TimetableResponse{
		ID:             t.TimetableID,
		AcademicYearID: t.AcademicYearID,
		ClassID:        t.ClassID,
		SectionID:      t.SectionID,
		EffectiveFrom:  t.EffectiveFrom.Format(dto.DateLayout),
		EffectiveTo:    formatDatePtr(t.EffectiveTo),
		IsActive:       t.IsActive,
		Version:        t.Version,
		CreatedAt:      t.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:      t.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if t.Class != nil {
		resp.ClassName = t.Class.Name
	}
	if t.Section != nil {
		resp.SectionName = t.Section.Name
	}
	if len(t.Entries) > 0 {
		resp.Entries = make([]dto.EntryResponse, 0, len(t.Entries))
		for i := range t.Entries {
			resp.Entries = append(resp.Entries, *toEntryResponse(&t.Entries[i]))
		}
	}
	return resp
}

func toEntryResponse(e *model.TimetableEntry) *dto.EntryResponse {
	resp := &dto.EntryResponse{
		ID:          e.EntryID,
		TimetableID: e.TimetableID,
		DayOfWeek:   string(e.DayOfWeek),
		PeriodID:    e.PeriodID,
		SubjectID:   e.SubjectID,
		TeacherID:   e.TeacherID,
		Period:      toPeriodBrief(e.Period),
		CreatedAt:   e.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if e.Subject != nil {
		resp.SubjectName = e.Subject.Name
	}
	if e.Teacher != nil {
		resp.TeacherName = e.Teacher.Name
	}
	return resp
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dto.DateLayout)
	return &s
}
