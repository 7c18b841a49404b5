package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/dto"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/service"
	pkgerrors "github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/errors"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/response"
)

// TimetableHandler 课表模块 HTTP 处理器（课表本身 + 条目排课）
type TimetableHandler struct {
	timetableSvc service.TimetableService
	schedulerSvc service.EntryScheduler
}

// NewTimetableHandler 创建 TimetableHandler
func NewTimetableHandler(timetableSvc service.TimetableService, schedulerSvc service.EntryScheduler) *TimetableHandler {
	return &TimetableHandler{timetableSvc: timetableSvc, schedulerSvc: schedulerSvc}
}

// ═══════════════════════════════════════════════════════════
// 课表
// ═══════════════════════════════════════════════════════════

// ListTimetables 分页获取课表列表
// GET /api/v1/timetables?academic_year_id=&class_id=&section_id=&is_active=&page=&page_size=
func (h *TimetableHandler) ListTimetables(c *gin.Context) {
	var req dto.TimetableListRequest
	if !bindQuery(c, &req) {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	list, total, err := h.timetableSvc.List(c.Request.Context(), scope, &req)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetTimetable 获取课表详情（含条目）
// GET /api/v1/timetables/:id
func (h *TimetableHandler) GetTimetable(c *gin.Context) {
	id, ok := MustGetPathID(c, "id", "课表ID")
	if !ok {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	tt, err := h.timetableSvc.GetByID(c.Request.Context(), scope, id)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, tt)
}

// CreateTimetable 创建课表
// POST /api/v1/timetables
func (h *TimetableHandler) CreateTimetable(c *gin.Context) {
	var req dto.CreateTimetableRequest
	if !bindJSON(c, &req) {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	tt, err := h.timetableSvc.Create(c.Request.Context(), scope, &req)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.Created(c, tt)
}

// UpdateTimetable 更新课表生效窗口 / 有效状态
// PUT /api/v1/timetables/:id
func (h *TimetableHandler) UpdateTimetable(c *gin.Context) {
	id, ok := MustGetPathID(c, "id", "课表ID")
	if !ok {
		return
	}

	var req dto.UpdateTimetableRequest
	if !bindJSON(c, &req) {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	tt, err := h.timetableSvc.Update(c.Request.Context(), scope, id, &req)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, tt)
}

// DeleteTimetable 删除课表及其全部条目
// DELETE /api/v1/timetables/:id
func (h *TimetableHandler) DeleteTimetable(c *gin.Context) {
	id, ok := MustGetPathID(c, "id", "课表ID")
	if !ok {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	if err := h.timetableSvc.Delete(c.Request.Context(), scope, id); err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetByClassSection 获取班级/分班在指定日期生效的课表
// GET /api/v1/timetables/by-class-section?class_id=&section_id=&date=
func (h *TimetableHandler) GetByClassSection(c *gin.Context) {
	var q dto.ClassSectionQuery
	if !bindQuery(c, &q) {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	tt, err := h.timetableSvc.GetByClassSection(c.Request.Context(), scope, &q)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, tt)
}

// GetByTeacher 获取教师在本分校有效课表中的全部课
// GET /api/v1/timetables/by-teacher/:teacherId
func (h *TimetableHandler) GetByTeacher(c *gin.Context) {
	teacherID, ok := MustGetPathID(c, "teacherId", "教师ID")
	if !ok {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	resp, err := h.timetableSvc.GetByTeacher(c.Request.Context(), scope, teacherID)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, resp)
}

// ═══════════════════════════════════════════════════════════
// 条目
// ═══════════════════════════════════════════════════════════

// AddEntry 向课表添加一条课（校验引用 + 冲突检测）
// POST /api/v1/timetables/:id/entries
func (h *TimetableHandler) AddEntry(c *gin.Context) {
	id, ok := MustGetPathID(c, "id", "课表ID")
	if !ok {
		return
	}

	var req dto.EntryRequest
	if !bindJSON(c, &req) {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	entry, err := h.schedulerSvc.AddEntry(c.Request.Context(), scope, id, &req)
	if err != nil {
		h.handleEntryError(c, err)
		return
	}

	response.Created(c, entry)
}

// RemoveEntry 移除课表条目
// DELETE /api/v1/timetables/:id/entries/:entryId
func (h *TimetableHandler) RemoveEntry(c *gin.Context) {
	id, ok := MustGetPathID(c, "id", "课表ID")
	if !ok {
		return
	}
	entryID, ok := MustGetPathID(c, "entryId", "条目ID")
	if !ok {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	if err := h.schedulerSvc.RemoveEntry(c.Request.Context(), scope, id, entryID); err != nil {
		h.handleEntryError(c, err)
		return
	}

	response.OK(c, nil)
}

// ValidateEntries 批量预检条目，不落库
// POST /api/v1/timetables/:id/entries/validate
//
// 逐条问题作为数据返回（200）；只有课表本身不可用时才返回错误状态
func (h *TimetableHandler) ValidateEntries(c *gin.Context) {
	id, ok := MustGetPathID(c, "id", "课表ID")
	if !ok {
		return
	}

	var req dto.ValidateEntriesRequest
	if !bindJSON(c, &req) {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	report, err := h.schedulerSvc.ValidateEntries(c.Request.Context(), scope, id, &req)
	if err != nil {
		h.handleEntryError(c, err)
		return
	}

	response.OK(c, report)
}

// handleTimetableError 统一处理课表模块业务错误
func (h *TimetableHandler) handleTimetableError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTimetableNotFound), errors.Is(err, service.ErrTimetableNoneCovering):
		response.NotFound(c, 21001, err.Error())
	case errors.Is(err, service.ErrTimetableInvalidWindow):
		response.BadRequest(c, 21004, err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 21005, err.Error())
	default:
		response.FromError(c, codeTimetableBase, err)
	}
}

// handleEntryError 统一处理排课业务错误
func (h *TimetableHandler) handleEntryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTimetableNotFound):
		response.NotFound(c, 21001, err.Error())
	case errors.Is(err, service.ErrTimetableEntryMissing):
		response.NotFound(c, 22004, err.Error())
	case errors.Is(err, service.ErrSubjectNotInClass):
		response.BadRequest(c, 22005, err.Error())
	case errors.Is(err, service.ErrTeacherInactive):
		response.BadRequest(c, 22006, err.Error())
	default:
		response.FromError(c, codeEntryBase, err)
	}
}
