package dto

import (
	"fmt"
	"time"
)

// DateLayout 请求与响应中日期字段的格式
const DateLayout = "2006-01-02"

// ── 课表模块 DTO ──

// CreateTimetableRequest 创建课表请求
type CreateTimetableRequest struct {
	AcademicYearID string  `json:"academic_year_id" binding:"required,uuid"`
	ClassID        string  `json:"class_id"         binding:"required,uuid"`
	SectionID      string  `json:"section_id"       binding:"required,uuid"`
	EffectiveFrom  string  `json:"effective_from"   binding:"required,datetime=2006-01-02"`
	EffectiveTo    *string `json:"effective_to"     binding:"omitempty,datetime=2006-01-02"`
}

// Window 解析生效窗口；截止日期早于开始日期时报错
func (r *CreateTimetableRequest) Window() (time.Time, *time.Time, error) {
	return parseWindow(r.EffectiveFrom, r.EffectiveTo)
}

// UpdateTimetableRequest 更新课表请求（仅更新非空字段）
// ClearEffectiveTo 为 true 时把截止日期改为不限
type UpdateTimetableRequest struct {
	EffectiveFrom    *string `json:"effective_from"     binding:"omitempty,datetime=2006-01-02"`
	EffectiveTo      *string `json:"effective_to"       binding:"omitempty,datetime=2006-01-02"`
	ClearEffectiveTo bool    `json:"clear_effective_to"`
	IsActive         *bool   `json:"is_active"`
	Version          *int    `json:"version"            binding:"omitempty,min=1"`
}

// TimetableListRequest 课表列表查询参数
type TimetableListRequest struct {
	AcademicYearID string `form:"academic_year_id" binding:"omitempty,uuid"`
	ClassID        string `form:"class_id"         binding:"omitempty,uuid"`
	SectionID      string `form:"section_id"       binding:"omitempty,uuid"`
	IsActive       *bool  `form:"is_active"`
	PaginationRequest
}

// ClassSectionQuery 按班级/分班查询当前课表
// Date 为空时取服务端当天
type ClassSectionQuery struct {
	ClassID   string `form:"class_id"   binding:"required,uuid"`
	SectionID string `form:"section_id" binding:"required,uuid"`
	Date      string `form:"date"       binding:"omitempty,datetime=2006-01-02"`
}

// EntryRequest 课表条目（新增 / 批量校验共用）
type EntryRequest struct {
	DayOfWeek string `json:"day_of_week" binding:"required"`
	PeriodID  string `json:"period_id"   binding:"required,uuid"`
	SubjectID string `json:"subject_id"  binding:"required,uuid"`
	TeacherID string `json:"teacher_id"  binding:"required,uuid"`
}

// ValidateEntriesRequest 批量校验请求（不落库）
type ValidateEntriesRequest struct {
	Entries []EntryRequest `json:"entries" binding:"required,min=1,max=500,dive"`
}

// ── 响应 ──

// TimetableResponse 课表响应
type TimetableResponse struct {
	ID             string          `json:"id"`
	AcademicYearID string          `json:"academic_year_id"`
	ClassID        string          `json:"class_id"`
	ClassName      string          `json:"class_name,omitempty"`
	SectionID      string          `json:"section_id"`
	SectionName    string          `json:"section_name,omitempty"`
	EffectiveFrom  string          `json:"effective_from"`
	EffectiveTo    *string         `json:"effective_to,omitempty"`
	IsActive       bool            `json:"is_active"`
	Version        int             `json:"version"`
	Entries        []EntryResponse `json:"entries,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// EntryResponse 课表条目响应
type EntryResponse struct {
	ID          string       `json:"id"`
	TimetableID string       `json:"timetable_id"`
	DayOfWeek   string       `json:"day_of_week"`
	PeriodID    string       `json:"period_id"`
	SubjectID   string       `json:"subject_id"`
	TeacherID   string       `json:"teacher_id"`
	Period      *PeriodBrief `json:"period,omitempty"`
	SubjectName string       `json:"subject_name,omitempty"`
	TeacherName string       `json:"teacher_name,omitempty"`
	CreatedAt   string       `json:"created_at"`
}

// TeacherEntryResponse 教师视角的一条课
type TeacherEntryResponse struct {
	EntryResponse
	ClassName     string  `json:"class_name"`
	SectionName   string  `json:"section_name"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to,omitempty"`
}

// TeacherTimetableResponse 教师课表响应
type TeacherTimetableResponse struct {
	TeacherID string                 `json:"teacher_id"`
	Entries   []TeacherEntryResponse `json:"entries"`
}

// ValidationReport 批量校验结果
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ── 内部辅助 ──

func parseWindow(from string, to *string) (time.Time, *time.Time, error) {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid effective_from %q", from)
	}
	if to == nil || *to == "" {
		return start, nil, nil
	}
	end, err := time.Parse(DateLayout, *to)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid effective_to %q", *to)
	}
	if end.Before(start) {
		return time.Time{}, nil, fmt.Errorf("effective_to must not be before effective_from")
	}
	return start, &end, nil
}
