package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/repository"
	pkgerrors "github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/errors"
)

// ── 引用校验错误 ──

var (
	ErrInvalidDayOfWeek      = pkgerrors.InvalidInput("Invalid day of week")
	ErrSubjectNotFound       = pkgerrors.NotFound("Subject not found")
	ErrSubjectNotInClass     = pkgerrors.InvalidInput("Subject is not assigned to this class")
	ErrTeacherNotFound       = pkgerrors.NotFound("Teacher not found")
	ErrTeacherInactive       = pkgerrors.InvalidInput("Teacher is not active")
	ErrAcademicYearNotFound  = pkgerrors.NotFound("Academic year not found")
	ErrClassNotFound         = pkgerrors.NotFound("Class not found")
	ErrSectionNotFound       = pkgerrors.NotFound("Section not found")
	ErrTimetableNotFound     = pkgerrors.NotFound("Timetable not found")
	ErrTimetableEntryMissing = pkgerrors.NotFound("Timetable entry not found")
)

// EntryCandidate 待写入（或待校验）的一条课表条目
type EntryCandidate struct {
	DayOfWeek model.DayOfWeek
	PeriodID  string
	SubjectID string
	TeacherID string
}

// resolvedRefs 校验通过后顺带取回的引用，用于组装响应
type resolvedRefs struct {
	Period  *model.Period
	Teacher *model.Teacher
}

// referenceValidator 条目引用的只读校验
//
// 校验顺序固定：星期 → 节次（存在 + 范围）→ 科目 → 班级科目映射 → 教师（租户）→ 教师分校 → 教师在职。
// 先失败的检查决定返回的错误，同样的输入总是得到同样的消息。
type referenceValidator struct {
	repo *repository.Repository
}

func newReferenceValidator(repo *repository.Repository) *referenceValidator {
	return &referenceValidator{repo: repo}
}

func (v *referenceValidator) Validate(ctx context.Context, scope Scope, timetable *model.Timetable, c EntryCandidate) (*resolvedRefs, error) {
	if !c.DayOfWeek.Valid() {
		return nil, ErrInvalidDayOfWeek
	}

	period, err := v.repo.Period.GetByID(ctx, scope.TenantID, scope.BranchID, c.PeriodID)
	if err != nil {
		return nil, notFoundOr(err, ErrPeriodNotFound)
	}

	exists, err := v.repo.Reference.SubjectExists(ctx, c.SubjectID, scope.TenantID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSubjectNotFound
	}

	mapped, err := v.repo.Reference.ClassSubjectExists(ctx, timetable.ClassID, c.SubjectID)
	if err != nil {
		return nil, err
	}
	if !mapped {
		return nil, ErrSubjectNotInClass
	}

	teacher, err := v.repo.Reference.GetTeacher(ctx, c.TeacherID, scope.TenantID)
	if err != nil {
		return nil, notFoundOr(err, ErrTeacherNotFound)
	}
	// 其它分校的教师按不存在处理
	if teacher.BranchID != scope.BranchID {
		return nil, ErrTeacherNotFound
	}
	if !teacher.IsActive() {
		return nil, ErrTeacherInactive
	}

	return &resolvedRefs{Period: period, Teacher: teacher}, nil
}

// notFoundOr 把 gorm.ErrRecordNotFound 翻译为指定的业务错误，其它错误原样返回
func notFoundOr(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

// isBusinessError 是否为带分类的业务错误（NotFound / InvalidInput / Conflict）
func isBusinessError(err error) bool {
	return pkgerrors.KindOf(err) != nil
}
