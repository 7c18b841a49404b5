package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/dto"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/repository"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/database"
)

// sectionSlotConstraint 同一课表 (星期, 节次) 唯一的部分索引
const sectionSlotConstraint = "uq_timetable_entries_section_slot"

// ── EntryScheduler 接口 ──────────────────────────────────
//
// 设计说明：
//   - AddEntry 的流水线：加载课表 → 引用校验 → 教师冲突 → 分班冲突 → 写入。
//     引用校验在事务外执行；冲突检查与写入在同一事务内，
//     由课表行锁和教师时段 advisory lock 串行化，并发请求不会重复占用。
//   - 部分唯一索引是分班约束的最后一道防线，违反时翻译为同样的冲突错误。
//   - ValidateEntries 走同一套校验但不落库，收集全部错误而非遇错即停。
// ─────────────────────────────────────────────────────────────

// EntryScheduler 课表条目编排接口
type EntryScheduler interface {
	AddEntry(ctx context.Context, scope Scope, timetableID string, req *dto.EntryRequest) (*dto.EntryResponse, error)
	RemoveEntry(ctx context.Context, scope Scope, timetableID, entryID string) error
	ValidateEntries(ctx context.Context, scope Scope, timetableID string, req *dto.ValidateEntriesRequest) (*dto.ValidationReport, error)
}

type entryScheduler struct {
	repo      *repository.Repository
	validator *referenceValidator
	logger    *zap.Logger
}

// NewEntryScheduler 创建 EntryScheduler 实例
func NewEntryScheduler(repo *repository.Repository, logger *zap.Logger) EntryScheduler {
	return &entryScheduler{
		repo:      repo,
		validator: newReferenceValidator(repo),
		logger:    logger,
	}
}

// ════════════════════════════════════════════════════════════
// AddEntry
// ════════════════════════════════════════════════════════════

func (s *entryScheduler) AddEntry(ctx context.Context, scope Scope, timetableID string, req *dto.EntryRequest) (*dto.EntryResponse, error) {
	timetable, err := s.loadTimetable(ctx, scope, timetableID)
	if err != nil {
		return nil, err
	}

	candidate := toCandidate(req)
	refs, err := s.validator.Validate(ctx, scope, timetable, candidate)
	if err != nil {
		return nil, err
	}

	entry := &model.TimetableEntry{
		TimetableID: timetable.TimetableID,
		DayOfWeek:   candidate.DayOfWeek,
		PeriodID:    candidate.PeriodID,
		SubjectID:   candidate.SubjectID,
		TeacherID:   candidate.TeacherID,
	}
	entry.CreatedBy = scope.actor()
	entry.UpdatedBy = scope.actor()

	err = s.repo.TimetableEntry.CreateExclusive(ctx, entry, scope.TenantID, scope.BranchID,
		func(ctx context.Context, r repository.EntryReader) error {
			return detectConflicts(ctx, r, scope, timetable.TimetableID, candidate)
		})
	if err != nil {
		return nil, s.translateWriteError(ctx, timetable.TimetableID, candidate, err)
	}

	entry.Period = refs.Period
	entry.Teacher = refs.Teacher

	s.logger.Info("课表条目已添加",
		zap.String("timetable_id", timetable.TimetableID),
		zap.String("entry_id", entry.EntryID),
		zap.String("day_of_week", string(entry.DayOfWeek)),
		zap.String("period_id", entry.PeriodID),
		zap.String("teacher_id", entry.TeacherID),
	)
	return toEntryResponse(entry), nil
}

// translateWriteError 把事务内的底层错误翻译为业务错误
func (s *entryScheduler) translateWriteError(ctx context.Context, timetableID string, c EntryCandidate, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 校验之后课表被并发删除
		return ErrTimetableNotFound
	case database.IsUniqueViolation(err, sectionSlotConstraint):
		subject := "another subject"
		if sb, lookupErr := sectionConflict(ctx, s.repo.TimetableEntry, timetableID, c.DayOfWeek, c.PeriodID, ""); lookupErr == nil && sb != nil {
			subject = sb.SubjectName
		}
		return errSectionConflict(subject)
	}
	if isBusinessError(err) {
		return err
	}
	s.logger.Error("写入课表条目失败", zap.String("timetable_id", timetableID), zap.Error(err))
	return err
}

// ════════════════════════════════════════════════════════════
// RemoveEntry
// ════════════════════════════════════════════════════════════

func (s *entryScheduler) RemoveEntry(ctx context.Context, scope Scope, timetableID, entryID string) error {
	if _, err := s.loadTimetable(ctx, scope, timetableID); err != nil {
		return err
	}

	entry, err := s.repo.TimetableEntry.GetByID(ctx, entryID)
	if err != nil {
		return notFoundOr(err, ErrTimetableEntryMissing)
	}
	// 条目不属于该课表时与不存在同样处理
	if entry.TimetableID != timetableID {
		return ErrTimetableEntryMissing
	}

	if err := s.repo.TimetableEntry.Delete(ctx, entryID, scope.ActorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTimetableEntryMissing
		}
		s.logger.Error("删除课表条目失败", zap.String("entry_id", entryID), zap.Error(err))
		return err
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// ValidateEntries — 批量预检，不落库
// ════════════════════════════════════════════════════════════
//
// 每条候选依次执行引用校验、教师冲突、分班冲突，并与同批次中排在前面的候选互相比对。
// 错误消息格式为 "Entry <序号>: <原因>"，序号从 1 开始。

func (s *entryScheduler) ValidateEntries(ctx context.Context, scope Scope, timetableID string, req *dto.ValidateEntriesRequest) (*dto.ValidationReport, error) {
	timetable, err := s.loadTimetable(ctx, scope, timetableID)
	if err != nil {
		return nil, err
	}

	report := &dto.ValidationReport{Valid: true, Errors: []string{}}
	fail := func(idx int, reason string) {
		report.Valid = false
		report.Errors = append(report.Errors, fmt.Sprintf("Entry %d: %s", idx+1, reason))
	}

	type slotKey struct {
		day    model.DayOfWeek
		period string
	}
	sectionSeen := make(map[slotKey]int)

	for i := range req.Entries {
		c := toCandidate(&req.Entries[i])

		if _, err := s.validator.Validate(ctx, scope, timetable, c); err != nil {
			if !isBusinessError(err) {
				return nil, err
			}
			fail(i, err.Error())
		}
		if !c.DayOfWeek.Valid() {
			continue
		}

		tb, err := teacherConflict(ctx, s.repo.TimetableEntry, scope, c.TeacherID, c.DayOfWeek, c.PeriodID, "")
		if err != nil {
			return nil, err
		}
		if tb != nil {
			fail(i, errTeacherConflict(tb).Error())
		}

		sb, err := sectionConflict(ctx, s.repo.TimetableEntry, timetable.TimetableID, c.DayOfWeek, c.PeriodID, "")
		if err != nil {
			return nil, err
		}
		if sb != nil {
			fail(i, errSectionConflict(sb.SubjectName).Error())
		}

		// 同批次内部冲突；批次共用一张课表，教师重复必然伴随时段重复，只报告时段
		key := slotKey{day: c.DayOfWeek, period: c.PeriodID}
		if j, ok := sectionSeen[key]; ok {
			fail(i, fmt.Sprintf("Section slot is already used by entry %d in this batch", j+1))
		} else {
			sectionSeen[key] = i
		}
	}

	return report, nil
}

// ── 内部辅助方法 ──

func (s *entryScheduler) loadTimetable(ctx context.Context, scope Scope, id string) (*model.Timetable, error) {
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

func toCandidate(req *dto.EntryRequest) EntryCandidate {
	day, _ := model.ParseDayOfWeek(req.DayOfWeek)
	return EntryCandidate{
		DayOfWeek: day,
		PeriodID:  req.PeriodID,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
	}
}
