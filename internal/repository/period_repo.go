package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
)

// PeriodRepository 节次数据访问接口
// 所有查询都带 tenant + branch 条件，越权访问表现为记录不存在
type PeriodRepository interface {
	Create(ctx context.Context, period *model.Period) error
	GetByID(ctx context.Context, tenantID, branchID, id string) (*model.Period, error)
	ListByBranch(ctx context.Context, tenantID, branchID string) ([]model.Period, error)
	// ListOverlapping 返回与 [start, end) 重叠的有效节次，按 display_order、start_time 排序
	ListOverlapping(ctx context.Context, tenantID, branchID string, start, end model.TimeOfDay, excludeID string) ([]model.Period, error)
	Update(ctx context.Context, period *model.Period) error
	Delete(ctx context.Context, id string, deletedBy string) error
	// CountEntryReferences 统计引用该节次的有效课表条目数
	CountEntryReferences(ctx context.Context, periodID string) (int64, error)
}

type periodRepo struct {
	db *gorm.DB
}

// NewPeriodRepo 创建 PeriodRepository 实例
func NewPeriodRepo(db *gorm.DB) PeriodRepository {
	return &periodRepo{db: db}
}

func (r *periodRepo) Create(ctx context.Context, period *model.Period) error {
	return r.db.WithContext(ctx).Create(period).Error
}

func (r *periodRepo) GetByID(ctx context.Context, tenantID, branchID, id string) (*model.Period, error) {
	var period model.Period
	err := r.db.WithContext(ctx).
		Where("period_id = ? AND tenant_id = ? AND branch_id = ?", id, tenantID, branchID).
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) ListByBranch(ctx context.Context, tenantID, branchID string) ([]model.Period, error) {
	var periods []model.Period
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND branch_id = ?", tenantID, branchID).
		Order("display_order ASC, start_time ASC").
		Find(&periods).Error
	return periods, err
}

func (r *periodRepo) ListOverlapping(ctx context.Context, tenantID, branchID string, start, end model.TimeOfDay, excludeID string) ([]model.Period, error) {
	var periods []model.Period
	db := r.db.WithContext(ctx).
		Where("tenant_id = ? AND branch_id = ?", tenantID, branchID).
		Where("start_time < ? AND end_time > ?", end, start)

	if excludeID != "" {
		db = db.Where("period_id <> ?", excludeID)
	}

	err := db.Order("display_order ASC, start_time ASC").Find(&periods).Error
	return periods, err
}

func (r *periodRepo) Update(ctx context.Context, period *model.Period) error {
	return r.db.WithContext(ctx).
		Model(period).
		Where("period_id = ?", period.PeriodID).
		Updates(map[string]interface{}{
			"name":          period.Name,
			"start_time":    period.StartTime,
			"end_time":      period.EndTime,
			"display_order": period.DisplayOrder,
			"kind":          period.Kind,
			"updated_by":    period.UpdatedBy,
		}).Error
}

func (r *periodRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Period{}).
		Where("period_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

func (r *periodRepo) CountEntryReferences(ctx context.Context, periodID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.TimetableEntry{}).
		Where("period_id = ?", periodID).
		Count(&n).Error
	return n, err
}
