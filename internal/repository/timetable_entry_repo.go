package repository

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
)

// EntryReader 冲突检测所需的只读查询
// 事务内外共用同一套实现，事务内传入绑定 tx 的实例
type EntryReader interface {
	// FindTeacherBooking 在分校所有有效课表中查找占用 (teacher, day, period) 的条目，未找到返回 nil
	FindTeacherBooking(ctx context.Context, tenantID, branchID, teacherID string, day model.DayOfWeek, periodID, excludeEntryID string) (*model.TeacherBooking, error)
	// FindSectionBooking 在同一课表内查找占用 (day, period) 的条目，未找到返回 nil
	FindSectionBooking(ctx context.Context, timetableID string, day model.DayOfWeek, periodID, excludeEntryID string) (*model.SectionBooking, error)
}

// EntryGuard 写入前在同一事务内执行的检查，返回错误则回滚
type EntryGuard func(ctx context.Context, reader EntryReader) error

// TimetableEntryRepository 课表条目数据访问接口
type TimetableEntryRepository interface {
	EntryReader
	GetByID(ctx context.Context, id string) (*model.TimetableEntry, error)
	// ListByTeacher 返回教师在分校有效课表中的全部条目
	ListByTeacher(ctx context.Context, tenantID, branchID, teacherID string) ([]model.TeacherScheduleItem, error)
	// CreateExclusive 锁定课表行与教师时段后执行 guard，再插入条目
	CreateExclusive(ctx context.Context, entry *model.TimetableEntry, tenantID, branchID string, guard EntryGuard) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type timetableEntryRepo struct {
	db *gorm.DB
}

// NewTimetableEntryRepo 创建 TimetableEntryRepository 实例
func NewTimetableEntryRepo(db *gorm.DB) TimetableEntryRepository {
	return &timetableEntryRepo{db: db}
}

func (r *timetableEntryRepo) GetByID(ctx context.Context, id string) (*model.TimetableEntry, error) {
	var entry model.TimetableEntry
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *timetableEntryRepo) FindTeacherBooking(ctx context.Context, tenantID, branchID, teacherID string, day model.DayOfWeek, periodID, excludeEntryID string) (*model.TeacherBooking, error) {
	var row struct {
		EntryID     string
		TimetableID string
		ClassID     string
		ClassName   string
		SectionID   string
		SectionName string
	}

	db := r.db.WithContext(ctx).
		Table("timetable_entries e").
		Select(`e.entry_id, t.timetable_id, t.class_id, COALESCE(c.name, '') AS class_name,
			t.section_id, COALESCE(s.name, '') AS section_name`).
		Joins("JOIN timetables t ON t.timetable_id = e.timetable_id AND t.deleted_at IS NULL").
		Joins("LEFT JOIN classes c ON c.class_id = t.class_id").
		Joins("LEFT JOIN sections s ON s.section_id = t.section_id").
		Where("e.deleted_at IS NULL AND t.is_active = ?", true).
		Where("t.tenant_id = ? AND t.branch_id = ?", tenantID, branchID).
		Where("e.teacher_id = ? AND e.day_of_week = ? AND e.period_id = ?", teacherID, day, periodID)

	if excludeEntryID != "" {
		db = db.Where("e.entry_id <> ?", excludeEntryID)
	}

	if err := db.Order("e.created_at ASC").Limit(1).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.EntryID == "" {
		return nil, nil
	}

	return &model.TeacherBooking{
		EntryID:     row.EntryID,
		TimetableID: row.TimetableID,
		ClassID:     row.ClassID,
		ClassName:   row.ClassName,
		SectionID:   row.SectionID,
		SectionName: row.SectionName,
	}, nil
}

func (r *timetableEntryRepo) FindSectionBooking(ctx context.Context, timetableID string, day model.DayOfWeek, periodID, excludeEntryID string) (*model.SectionBooking, error) {
	var row struct {
		EntryID     string
		SubjectID   string
		SubjectName string
	}

	db := r.db.WithContext(ctx).
		Table("timetable_entries e").
		Select("e.entry_id, e.subject_id, COALESCE(sub.name, '') AS subject_name").
		Joins("LEFT JOIN subjects sub ON sub.subject_id = e.subject_id").
		Where("e.deleted_at IS NULL").
		Where("e.timetable_id = ? AND e.day_of_week = ? AND e.period_id = ?", timetableID, day, periodID)

	if excludeEntryID != "" {
		db = db.Where("e.entry_id <> ?", excludeEntryID)
	}

	if err := db.Order("e.created_at ASC").Limit(1).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.EntryID == "" {
		return nil, nil
	}

	return &model.SectionBooking{
		EntryID:     row.EntryID,
		SubjectID:   row.SubjectID,
		SubjectName: row.SubjectName,
	}, nil
}

func (r *timetableEntryRepo) ListByTeacher(ctx context.Context, tenantID, branchID, teacherID string) ([]model.TeacherScheduleItem, error) {
	var entries []model.TimetableEntry
	err := r.db.WithContext(ctx).
		Joins("JOIN timetables t ON t.timetable_id = timetable_entries.timetable_id AND t.deleted_at IS NULL AND t.is_active = ?", true).
		Where("t.tenant_id = ? AND t.branch_id = ? AND timetable_entries.teacher_id = ?", tenantID, branchID, teacherID).
		Preload("Period").
		Preload("Subject").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []model.TeacherScheduleItem{}, nil
	}

	ids := make([]string, 0, len(entries))
	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.TimetableID] {
			seen[e.TimetableID] = true
			ids = append(ids, e.TimetableID)
		}
	}

	var timetables []model.Timetable
	if err := r.db.WithContext(ctx).
		Preload("Class").
		Preload("Section").
		Where("timetable_id IN ?", ids).
		Find(&timetables).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Timetable, len(timetables))
	for i := range timetables {
		byID[timetables[i].TimetableID] = &timetables[i]
	}

	items := make([]model.TeacherScheduleItem, 0, len(entries))
	for _, e := range entries {
		t, ok := byID[e.TimetableID]
		if !ok {
			continue
		}
		item := model.TeacherScheduleItem{
			Entry:         e,
			EffectiveFrom: t.EffectiveFrom,
			EffectiveTo:   t.EffectiveTo,
		}
		if t.Class != nil {
			item.ClassName = t.Class.Name
		}
		if t.Section != nil {
			item.SectionName = t.Section.Name
		}
		items = append(items, item)
	}

	SortTeacherSchedule(items)
	return items, nil
}

// SortTeacherSchedule 按星期、节次开始时间排序
func SortTeacherSchedule(items []model.TeacherScheduleItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Entry, items[j].Entry
		if a.DayOfWeek.Index() != b.DayOfWeek.Index() {
			return a.DayOfWeek.Index() < b.DayOfWeek.Index()
		}
		if a.Period != nil && b.Period != nil {
			return a.Period.StartTime < b.Period.StartTime
		}
		return false
	})
}

// CreateExclusive 串行化同一课表、同一教师时段的并发写入
//
// 锁顺序固定为：课表行锁 → 教师时段咨询锁，避免死锁。
// DeleteCascade 同样先取课表行锁，两者互斥；教师时段锁跨课表，只能用 advisory lock 表达。
func (r *timetableEntryRepo) CreateExclusive(ctx context.Context, entry *model.TimetableEntry, tenantID, branchID string, guard EntryGuard) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked model.Timetable
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("timetable_id").
			Where("timetable_id = ? AND tenant_id = ? AND branch_id = ?", entry.TimetableID, tenantID, branchID).
			First(&locked).Error; err != nil {
			return err
		}

		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))",
			teacherSlotLockKey(tenantID, branchID, entry.TeacherID, entry.DayOfWeek, entry.PeriodID)).Error; err != nil {
			return err
		}

		if guard != nil {
			if err := guard(ctx, &timetableEntryRepo{db: tx}); err != nil {
				return err
			}
		}

		return tx.Omit("Period", "Subject", "Teacher").Create(entry).Error
	})
}

func teacherSlotLockKey(tenantID, branchID, teacherID string, day model.DayOfWeek, periodID string) string {
	return fmt.Sprintf("timetable:teacher-slot:%s:%s:%s:%s:%s", tenantID, branchID, teacherID, day, periodID)
}

func (r *timetableEntryRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.TimetableEntry{}).
		Where("entry_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
