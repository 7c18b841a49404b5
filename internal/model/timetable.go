package model

import (
	"strings"
	"time"
)

// DayOfWeek 星期（小写英文）
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// Weekdays 周一至周日的固定顺序
var Weekdays = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseDayOfWeek 大小写不敏感地解析星期
func ParseDayOfWeek(s string) (DayOfWeek, bool) {
	d := DayOfWeek(strings.ToLower(strings.TrimSpace(s)))
	return d, d.Valid()
}

// Valid 是否为七个合法取值之一
func (d DayOfWeek) Valid() bool {
	return d.Index() > 0
}

// Index 周一为 1 … 周日为 7；非法值为 0
func (d DayOfWeek) Index() int {
	for i, w := range Weekdays {
		if w == d {
			return i + 1
		}
	}
	return 0
}

// Weekday 转为 time.Weekday
func (d DayOfWeek) Weekday() time.Weekday {
	return time.Weekday(d.Index() % 7)
}

// Timetable 课表 — 对应 timetables
// 同一班级/分班可以有多个版本，由生效窗口区分；窗口之间是否重叠由调用方负责
type Timetable struct {
	TimetableID    string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"timetable_id"`
	TenantID       string     `gorm:"type:uuid;not null"                             json:"tenant_id"`
	BranchID       string     `gorm:"type:uuid;not null"                             json:"branch_id"`
	AcademicYearID string     `gorm:"type:uuid;not null"                             json:"academic_year_id"`
	ClassID        string     `gorm:"type:uuid;not null"                             json:"class_id"`
	SectionID      string     `gorm:"type:uuid;not null"                             json:"section_id"`
	EffectiveFrom  time.Time  `gorm:"type:date;not null"                             json:"effective_from"`
	EffectiveTo    *time.Time `gorm:"type:date"                                      json:"effective_to,omitempty"`
	IsActive       bool       `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel

	// 关联
	Class   *Class           `gorm:"foreignKey:ClassID;references:ClassID"         json:"class,omitempty"`
	Section *Section         `gorm:"foreignKey:SectionID;references:SectionID"     json:"section,omitempty"`
	Entries []TimetableEntry `gorm:"foreignKey:TimetableID;references:TimetableID" json:"entries,omitempty"`
}

// TableName 指定表名
func (Timetable) TableName() string { return "timetables" }

// Covers 生效窗口是否覆盖指定日期（按日比较，EffectiveTo 为空表示无截止）
func (t *Timetable) Covers(day time.Time) bool {
	d := truncateDay(day)
	if d.Before(truncateDay(t.EffectiveFrom)) {
		return false
	}
	return t.EffectiveTo == nil || !d.After(truncateDay(*t.EffectiveTo))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TimetableEntry 课表条目 — 对应 timetable_entries
type TimetableEntry struct {
	EntryID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_id"`
	TimetableID string    `gorm:"type:uuid;not null"                             json:"timetable_id"`
	DayOfWeek   DayOfWeek `gorm:"type:varchar(10);not null"                      json:"day_of_week"`
	PeriodID    string    `gorm:"type:uuid;not null"                             json:"period_id"`
	SubjectID   string    `gorm:"type:uuid;not null"                             json:"subject_id"`
	TeacherID   string    `gorm:"type:uuid;not null"                             json:"teacher_id"`
	SoftDeleteModel

	// 关联
	Period  *Period  `gorm:"foreignKey:PeriodID;references:PeriodID"   json:"period,omitempty"`
	Subject *Subject `gorm:"foreignKey:SubjectID;references:SubjectID" json:"subject,omitempty"`
	Teacher *Teacher `gorm:"foreignKey:TeacherID;references:TeacherID" json:"teacher,omitempty"`
}

// TableName 指定表名
func (TimetableEntry) TableName() string { return "timetable_entries" }

// TeacherBooking 教师在某时段已被占用的描述
type TeacherBooking struct {
	EntryID     string
	TimetableID string
	ClassID     string
	ClassName   string
	SectionID   string
	SectionName string
}

// SectionBooking 班级在某时段已被占用的描述
type SectionBooking struct {
	EntryID     string
	SubjectID   string
	SubjectName string
}

// TeacherScheduleItem 教师视角的一条课表（按教师查询 / ICS 导出）
type TeacherScheduleItem struct {
	Entry         TimetableEntry
	ClassName     string
	SectionName   string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}
