package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
	pkgerrors "github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/errors"
)

// TimetableFilter 课表列表查询条件
type TimetableFilter struct {
	TenantID       string
	BranchID       string
	AcademicYearID string
	ClassID        string
	SectionID      string
	IsActive       *bool
	Offset         int
	Limit          int
}

// TimetableRepository 课表数据访问接口
type TimetableRepository interface {
	Create(ctx context.Context, timetable *model.Timetable) error
	// GetByID 加载课表及其有效条目（含节次、科目、教师）
	GetByID(ctx context.Context, tenantID, branchID, id string) (*model.Timetable, error)
	List(ctx context.Context, filter TimetableFilter) ([]model.Timetable, int64, error)
	// ListActiveByClassSection 按生效日期倒序返回班级/分班的有效课表（不含条目）
	ListActiveByClassSection(ctx context.Context, tenantID, branchID, classID, sectionID string) ([]model.Timetable, error)
	Update(ctx context.Context, timetable *model.Timetable) error
	// DeleteCascade 在单个事务中软删除全部条目与课表本身
	// 先持有课表行锁，与 CreateExclusive 互斥，不会留下已删课表下的有效条目
	DeleteCascade(ctx context.Context, id string, deletedBy string) error
}

type timetableRepo struct {
	db *gorm.DB
}

// NewTimetableRepo 创建 TimetableRepository 实例
func NewTimetableRepo(db *gorm.DB) TimetableRepository {
	return &timetableRepo{db: db}
}

func (r *timetableRepo) Create(ctx context.Context, timetable *model.Timetable) error {
	return r.db.WithContext(ctx).Omit("Class", "Section", "Entries").Create(timetable).Error
}

func (r *timetableRepo) GetByID(ctx context.Context, tenantID, branchID, id string) (*model.Timetable, error) {
	var timetable model.Timetable
	err := r.db.WithContext(ctx).
		Preload("Class").
		Preload("Section").
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Entries.Period").
		Preload("Entries.Subject").
		Preload("Entries.Teacher").
		Where("timetable_id = ? AND tenant_id = ? AND branch_id = ?", id, tenantID, branchID).
		First(&timetable).Error
	if err != nil {
		return nil, err
	}
	return &timetable, nil
}

func (r *timetableRepo) List(ctx context.Context, filter TimetableFilter) ([]model.Timetable, int64, error) {
	db := r.db.WithContext(ctx).
		Model(&model.Timetable{}).
		Where("tenant_id = ? AND branch_id = ?", filter.TenantID, filter.BranchID)

	if filter.AcademicYearID != "" {
		db = db.Where("academic_year_id = ?", filter.AcademicYearID)
	}
	if filter.ClassID != "" {
		db = db.Where("class_id = ?", filter.ClassID)
	}
	if filter.SectionID != "" {
		db = db.Where("section_id = ?", filter.SectionID)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var timetables []model.Timetable
	q := db.Preload("Class").Preload("Section").Order("effective_from DESC, created_at DESC")
	if filter.Limit > 0 {
		q = q.Offset(filter.Offset).Limit(filter.Limit)
	}
	if err := q.Find(&timetables).Error; err != nil {
		return nil, 0, err
	}
	return timetables, total, nil
}

func (r *timetableRepo) ListActiveByClassSection(ctx context.Context, tenantID, branchID, classID, sectionID string) ([]model.Timetable, error) {
	var timetables []model.Timetable
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND branch_id = ? AND class_id = ? AND section_id = ? AND is_active = ?",
			tenantID, branchID, classID, sectionID, true).
		Order("effective_from DESC, created_at DESC").
		Find(&timetables).Error
	return timetables, err
}

func (r *timetableRepo) Update(ctx context.Context, timetable *model.Timetable) error {
	oldVersion := timetable.Version
	result := r.db.WithContext(ctx).
		Model(&model.Timetable{}).
		Where("timetable_id = ? AND version = ?", timetable.TimetableID, oldVersion).
		Updates(map[string]interface{}{
			"effective_from": timetable.EffectiveFrom,
			"effective_to":   timetable.EffectiveTo,
			"is_active":      timetable.IsActive,
			"updated_by":     timetable.UpdatedBy,
			"version":        oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	timetable.Version = oldVersion + 1
	return nil
}

func (r *timetableRepo) DeleteCascade(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 锁课表行，与 CreateExclusive 同序；进行中的写入提交后才继续，之后的写入会看到课表已删除
		var locked model.Timetable
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("timetable_id").
			Where("timetable_id = ?", id).
			First(&locked).Error; err != nil {
			return err
		}

		// 2. 删子条目；同一事务内 NOW() 取值一致
		if err := tx.Model(&model.TimetableEntry{}).
			Where("timetable_id = ?", id).
			Updates(map[string]interface{}{
				"deleted_by": deletedBy,
				"deleted_at": gorm.Expr("NOW()"),
			}).Error; err != nil {
			return err
		}

		// 3. 标记课表；任一步失败整体回滚
		result := tx.Model(&model.Timetable{}).
			Where("timetable_id = ?", id).
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
	})
}
