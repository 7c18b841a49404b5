package service

import (
	"go.uber.org/zap"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Period    PeriodService
	Timetable TimetableService
	Scheduler EntryScheduler
	Export    ExportService
}

// NewService 创建 Service 聚合
func NewService(repo *repository.Repository, logger *zap.Logger) *Service {
	return &Service{
		Period:    NewPeriodService(repo, logger),
		Timetable: NewTimetableService(repo, logger),
		Scheduler: NewEntryScheduler(repo, logger),
		Export:    NewExportService(repo, logger),
	}
}
