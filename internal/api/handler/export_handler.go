package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/service"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportTimetable 导出课表为 Excel（行 = 节次，列 = 星期）
// GET /api/v1/timetables/:id/export
func (h *ExportHandler) ExportTimetable(c *gin.Context) {
	id, ok := MustGetPathID(c, "id", "课表ID")
	if !ok {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportTimetable(c.Request.Context(), scope, id)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendFile(c, filename, contentTypeXLSX, buf.Bytes())
}

// ExportTeacherCalendar 导出教师周课表为 iCalendar
// GET /api/v1/timetables/by-teacher/:teacherId/ics
func (h *ExportHandler) ExportTeacherCalendar(c *gin.Context) {
	teacherID, ok := MustGetPathID(c, "teacherId", "教师ID")
	if !ok {
		return
	}

	scope, ok := MustGetScope(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportTeacherCalendar(c.Request.Context(), scope, teacherID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendFile(c, filename, contentTypeICS, buf.Bytes())
}

// sendFile 以附件形式返回文件
func sendFile(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, contentType, data)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoPeriods):
		response.BadRequest(c, 23004, err.Error())
	case errors.Is(err, service.ErrExportGenerateErr):
		_ = c.Error(err)
		response.InternalError(c)
	default:
		response.FromError(c, codeExportBase, err)
	}
}
