package service

import (
	"context"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/repository"
	pkgerrors "github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/errors"
)

// ── 冲突检测 ──
//
// 两个互相独立的判定：
//   - 教师冲突：分校内所有有效课表中，同一教师在同一 (星期, 节次) 只能出现一次
//   - 分班冲突：同一课表内，同一 (星期, 节次) 只能有一条条目
//
// 判定本身只读；与写入的原子性由 TimetableEntryRepository.CreateExclusive 保证。

func errTeacherConflict(b *model.TeacherBooking) error {
	return pkgerrors.Conflict("Teacher is already assigned to %s - %s at this time", b.ClassName, b.SectionName)
}

func errSectionConflict(subjectName string) error {
	return pkgerrors.Conflict("Section already has %s at this time", subjectName)
}

// teacherConflict 返回占用该教师时段的条目描述，无冲突返回 nil
func teacherConflict(ctx context.Context, r repository.EntryReader, scope Scope, teacherID string, day model.DayOfWeek, periodID, excludeEntryID string) (*model.TeacherBooking, error) {
	return r.FindTeacherBooking(ctx, scope.TenantID, scope.BranchID, teacherID, day, periodID, excludeEntryID)
}

// sectionConflict 返回同一课表内占用该时段的条目描述，无冲突返回 nil
func sectionConflict(ctx context.Context, r repository.EntryReader, timetableID string, day model.DayOfWeek, periodID, excludeEntryID string) (*model.SectionBooking, error) {
	return r.FindSectionBooking(ctx, timetableID, day, periodID, excludeEntryID)
}

// detectConflicts 先查教师后查分班，返回第一个冲突
func detectConflicts(ctx context.Context, r repository.EntryReader, scope Scope, timetableID string, c EntryCandidate) error {
	tb, err := teacherConflict(ctx, r, scope, c.TeacherID, c.DayOfWeek, c.PeriodID, "")
	if err != nil {
		return err
	}
	if tb != nil {
		return errTeacherConflict(tb)
	}

	sb, err := sectionConflict(ctx, r, timetableID, c.DayOfWeek, c.PeriodID, "")
	if err != nil {
		return err
	}
	if sb != nil {
		return errSectionConflict(sb.SubjectName)
	}
	return nil
}
