package handler

import "github.com/resoniratech-svg/school-erp-manoj-sub001/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Period    *PeriodHandler
	Timetable *TimetableHandler
	Export    *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Period:    NewPeriodHandler(svc.Period),
		Timetable: NewTimetableHandler(svc.Timetable, svc.Scheduler),
		Export:    NewExportHandler(svc.Export),
	}
}
