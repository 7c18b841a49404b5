package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/dto"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/service"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/response"
)

// PeriodHandler 节次模块 HTTP 处理器
type PeriodHandler struct {
	periodSvc service.PeriodService
}

// NewPeriodHandler 创建 PeriodHandler
func NewPeriodHandler(periodSvc service.PeriodService) *PeriodHandler {
	return &PeriodHandler{periodSvc: periodSvc}
}

// ListPeriods 获取本分校节次列表（按开始时间排序）
// GET /api/v1/periods
func (h *PeriodHandler) ListPeriods(c *gin.Context) {
	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	periods, err := h.periodSvc.List(c.Request.Context(), scope)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, gin.H{"list": periods})
}

// GetPeriod 获取节次详情
// GET /api/v1/periods/:id
func (h *PeriodHandler) GetPeriod(c *gin.Context) {
	scope, ok := MustGetScope(c)
	if !ok {
		return
	}
	id, ok := MustGetPathID(c, "id", "节次ID")
	if !ok {
		return
	}

	period, err := h.periodSvc.GetByID(c.Request.Context(), scope, id)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, period)
}

// CreatePeriod 创建节次
// POST /api/v1/periods
func (h *PeriodHandler) CreatePeriod(c *gin.Context) {
	var req dto.CreatePeriodRequest
	if !bindJSON(c, &req) {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	period, err := h.periodSvc.Create(c.Request.Context(), scope, &req)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.Created(c, period)
}

// UpdatePeriod 更新节次
// PUT /api/v1/periods/:id
func (h *PeriodHandler) UpdatePeriod(c *gin.Context) {
	id, ok := MustGetPathID(c, "id", "节次ID")
	if !ok {
		return
	}

	var req dto.UpdatePeriodRequest
	if !bindJSON(c, &req) {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	period, err := h.periodSvc.Update(c.Request.Context(), scope, id, &req)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, period)
}

// DeletePeriod 删除节次（仍被课表条目引用时拒绝）
// DELETE /api/v1/periods/:id
func (h *PeriodHandler) DeletePeriod(c *gin.Context) {
	id, ok := MustGetPathID(c, "id", "节次ID")
	if !ok {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	if err := h.periodSvc.Delete(c.Request.Context(), scope, id); err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, nil)
}

// handlePeriodError 统一处理节次模块业务错误
func (h *PeriodHandler) handlePeriodError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 20001, err.Error())
	case errors.Is(err, service.ErrPeriodInvalidRange):
		response.BadRequest(c, 20004, err.Error())
	case errors.Is(err, service.ErrPeriodInUse):
		response.Conflict(c, 20005, err.Error())
	default:
		response.FromError(c, codePeriodBase, err)
	}
}
