package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/dto"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/repository"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/database"
	pkgerrors "github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/errors"
)

// ── 节次模块业务错误 ──

var (
	ErrPeriodNotFound     = pkgerrors.NotFound("Period not found")
	ErrPeriodInvalidRange = pkgerrors.InvalidInput("End time must be after start time")
	ErrPeriodInvalidTime  = pkgerrors.InvalidInput("Time must be in HH:MM format")
	ErrPeriodInvalidKind  = pkgerrors.InvalidInput("Invalid period kind")
	ErrPeriodInUse        = pkgerrors.Conflict("Period is referenced by timetable entries")
)

// periodOverlapConstraint 同分校有效节次时间不重叠的排他约束
const periodOverlapConstraint = "ex_periods_no_overlap"

func errPeriodOverlap(name string) error {
	return pkgerrors.Conflict("Time overlaps with existing period %s", name)
}

// PeriodService 节次登记业务接口
// 同一分校内的有效节次两两不重叠，首尾相接不算重叠
type PeriodService interface {
	Create(ctx context.Context, scope Scope, req *dto.CreatePeriodRequest) (*dto.PeriodResponse, error)
	GetByID(ctx context.Context, scope Scope, id string) (*dto.PeriodResponse, error)
	List(ctx context.Context, scope Scope) ([]dto.PeriodResponse, error)
	Update(ctx context.Context, scope Scope, id string, req *dto.UpdatePeriodRequest) (*dto.PeriodResponse, error)
	Delete(ctx context.Context, scope Scope, id string) error
}

type periodService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewPeriodService 创建 PeriodService 实例
func NewPeriodService(repo *repository.Repository, logger *zap.Logger) PeriodService {
	return &periodService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *periodService) Create(ctx context.Context, scope Scope, req *dto.CreatePeriodRequest) (*dto.PeriodResponse, error) {
	start, end, err := parseRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	kind := model.PeriodKindRegular
	if req.Kind != "" {
		kind = model.PeriodKind(req.Kind)
		if !kind.Valid() {
			return nil, ErrPeriodInvalidKind
		}
	}

	if err := s.checkOverlap(ctx, scope, start, end, ""); err != nil {
		return nil, err
	}

	period := &model.Period{
		TenantID:     scope.TenantID,
		BranchID:     scope.BranchID,
		Name:         req.Name,
		StartTime:    start,
		EndTime:      end,
		DisplayOrder: req.DisplayOrder,
		Kind:         kind,
	}
	period.CreatedBy = scope.actor()
	period.UpdatedBy = scope.actor()

	if err := s.repo.Period.Create(ctx, period); err != nil {
		return nil, s.translateWriteError(ctx, scope, start, end, "", err)
	}

	s.logger.Info("节次已创建",
		zap.String("period_id", period.PeriodID),
		zap.String("branch_id", scope.BranchID),
		zap.String("range", start.String()+"-"+end.String()),
	)
	return toPeriodResponse(period), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *periodService) GetByID(ctx context.Context, scope Scope, id string) (*dto.PeriodResponse, error) {
	period, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return toPeriodResponse(period), nil
}

// ────────────────────── List ──────────────────────

func (s *periodService) List(ctx context.Context, scope Scope) ([]dto.PeriodResponse, error) {
	periods, err := s.repo.Period.ListByBranch(ctx, scope.TenantID, scope.BranchID)
	if err != nil {
		s.logger.Error("列出节次失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.PeriodResponse, 0, len(periods))
	for i := range periods {
		result = append(result, *toPeriodResponse(&periods[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *periodService) Update(ctx context.Context, scope Scope, id string, req *dto.UpdatePeriodRequest) (*dto.PeriodResponse, error) {
	period, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	// 合并后的区间：未提供的端点沿用原值
	start, end := period.StartTime, period.EndTime
	if req.StartTime != nil {
		if start, err = model.ParseTimeOfDay(*req.StartTime); err != nil {
			return nil, ErrPeriodInvalidTime
		}
	}
	if req.EndTime != nil {
		if end, err = model.ParseTimeOfDay(*req.EndTime); err != nil {
			return nil, ErrPeriodInvalidTime
		}
	}
	if start >= end {
		return nil, ErrPeriodInvalidRange
	}

	if req.StartTime != nil || req.EndTime != nil {
		if err := s.checkOverlap(ctx, scope, start, end, period.PeriodID); err != nil {
			return nil, err
		}
	}

	if req.Kind != nil {
		kind := model.PeriodKind(*req.Kind)
		if !kind.Valid() {
			return nil, ErrPeriodInvalidKind
		}
		period.Kind = kind
	}
	if req.Name != nil {
		period.Name = *req.Name
	}
	if req.DisplayOrder != nil {
		period.DisplayOrder = *req.DisplayOrder
	}
	period.StartTime = start
	period.EndTime = end
	period.UpdatedBy = scope.actor()

	if err := s.repo.Period.Update(ctx, period); err != nil {
		return nil, s.translateWriteError(ctx, scope, start, end, period.PeriodID, err)
	}

	return toPeriodResponse(period), nil
}

// ────────────────────── Delete ──────────────────────

func (s *periodService) Delete(ctx context.Context, scope Scope, id string) error {
	if _, err := s.load(ctx, scope, id); err != nil {
		return err
	}

	refs, err := s.repo.Period.CountEntryReferences(ctx, id)
	if err != nil {
		s.logger.Error("统计节次引用失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if refs > 0 {
		return ErrPeriodInUse
	}

	if err := s.repo.Period.Delete(ctx, id, scope.ActorID); err != nil {
		s.logger.Error("删除节次失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ── 内部辅助方法 ──

func (s *periodService) load(ctx context.Context, scope Scope, id string) (*model.Period, error) {
	period, err := s.repo.Period.GetByID(ctx, scope.TenantID, scope.BranchID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询节次失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return period, nil
}

// checkOverlap 与分校内其它有效节次比对，命中时报告排序最靠前的一条
func (s *periodService) checkOverlap(ctx context.Context, scope Scope, start, end model.TimeOfDay, excludeID string) error {
	overlapping, err := s.repo.Period.ListOverlapping(ctx, scope.TenantID, scope.BranchID, start, end, excludeID)
	if err != nil {
		s.logger.Error("节次重叠检查失败", zap.Error(err))
		return err
	}
	if len(overlapping) > 0 {
		return errPeriodOverlap(overlapping[0].Name)
	}
	return nil
}

// translateWriteError 检查之后被并发写入抢先时落到排他约束上，回查冲突节次给出同样的错误
func (s *periodService) translateWriteError(ctx context.Context, scope Scope, start, end model.TimeOfDay, excludeID string, err error) error {
	if !database.IsExclusionViolation(err, periodOverlapConstraint) {
		s.logger.Error("写入节次失败", zap.String("id", excludeID), zap.Error(err))
		return err
	}
	if overlapErr := s.checkOverlap(ctx, scope, start, end, excludeID); overlapErr != nil {
		return overlapErr
	}
	return pkgerrors.Conflict("Time overlaps with an existing period")
}

func parseRange(startText, endText string) (model.TimeOfDay, model.TimeOfDay, error) {
	start, err := model.ParseTimeOfDay(startText)
	if err != nil {
		return 0, 0, ErrPeriodInvalidTime
	}
	end, err := model.ParseTimeOfDay(endText)
	if err != nil {
		return 0, 0, ErrPeriodInvalidTime
	}
	if start >= end {
		return 0, 0, ErrPeriodInvalidRange
	}
	return start, end, nil
}

func toPeriodResponse(p *model.Period) *dto.PeriodResponse {
	return &dto.PeriodResponse{
		ID:           p.PeriodID,
		Name:         p.Name,
		StartTime:    p.StartTime.String(),
		EndTime:      p.EndTime.String(),
		DisplayOrder: p.DisplayOrder,
		Kind:         string(p.Kind),
		CreatedAt:    p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:    p.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func toPeriodBrief(p *model.Period) *dto.PeriodBrief {
	if p == nil {
		return nil
	}
	return &dto.PeriodBrief{
		ID:        p.PeriodID,
		Name:      p.Name,
		StartTime: p.StartTime.String(),
		EndTime:   p.EndTime.String(),
		Kind:      string(p.Kind),
	}
}
