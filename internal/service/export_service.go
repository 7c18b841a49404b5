package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/repository"
	pkgerrors "github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoPeriods   = pkgerrors.InvalidInput("No periods defined for this branch")
	ErrExportGenerateErr = errors.New("generate export file failed")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 课表导出为 Excel (.xlsx)：行为分校节次（按 display_order），列为周一 ~ 周日
//   - 教师课表导出为 iCalendar：每条条目一个按周重复的事件，锚定在课表生效窗口内
//   - 均以 bytes.Buffer 返回，由 Handler 层设置响应头
type ExportService interface {
	ExportTimetable(ctx context.Context, scope Scope, timetableID string) (*bytes.Buffer, string, error)
	ExportTeacherCalendar(ctx context.Context, scope Scope, teacherID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger, now: time.Now}
}

// ═══════════════════════════════════════════════════════════
// ExportTimetable — 课表网格
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 标题行：<班级> - <分班> (<生效起> ~ <生效止>)
//   - 表头：节次 | 时间 | Monday … Sunday
//   - 单元格：科目 / 教师；无条目为 "-"

func (s *exportService) ExportTimetable(ctx context.Context, scope Scope, timetableID string) (*bytes.Buffer, string, error) {
	timetable, err := s.repo.Timetable.GetByID(ctx, scope.TenantID, scope.BranchID, timetableID)
	if err != nil {
		return nil, "", notFoundOr(err, ErrTimetableNotFound)
	}

	periods, err := s.repo.Period.ListByBranch(ctx, scope.TenantID, scope.BranchID)
	if err != nil {
		s.logger.Error("查询节次失败", zap.Error(err))
		return nil, "", err
	}
	if len(periods) == 0 {
		return nil, "", ErrExportNoPeriods
	}

	// "periodID:day" → 单元格文本
	cells := make(map[string]string, len(timetable.Entries))
	for _, e := range timetable.Entries {
		cells[e.PeriodID+":"+string(e.DayOfWeek)] = entryCellText(&e)
	}

	title := timetableTitle(timetable)

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Timetable"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 14)
	f.SetColWidth(sheetName, "B", "B", 14)
	lastCol := colName(1 + len(model.Weekdays))
	f.SetColWidth(sheetName, "C", lastCol, 24)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellValue(sheetName, "A1", title)
	f.MergeCell(sheetName, "A1", cell(lastCol, 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	row := 2
	f.SetCellValue(sheetName, cell("A", row), "Period")
	f.SetCellValue(sheetName, cell("B", row), "Time")
	for i, day := range model.Weekdays {
		f.SetCellValue(sheetName, cell(colName(2+i), row), dayLabel(day))
	}
	f.SetCellStyle(sheetName, cell("A", row), cell(lastCol, row), headerStyle)

	row = 3
	for _, p := range periods {
		f.SetCellValue(sheetName, cell("A", row), p.Name)
		f.SetCellValue(sheetName, cell("B", row), fmt.Sprintf("%s-%s", p.StartTime, p.EndTime))
		for i, day := range model.Weekdays {
			text, ok := cells[p.PeriodID+":"+string(day)]
			if !ok {
				text = "-"
			}
			f.SetCellValue(sheetName, cell(colName(2+i), row), text)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateErr
	}

	filename := fmt.Sprintf("timetable_%s.xlsx", fileSafe(title))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportTeacherCalendar — 教师周课表 iCalendar
// ═══════════════════════════════════════════════════════════
//
// 时间使用浮动时间（不带时区），由日历客户端按本地时间展示。

func (s *exportService) ExportTeacherCalendar(ctx context.Context, scope Scope, teacherID string) (*bytes.Buffer, string, error) {
	teacher, err := s.repo.Reference.GetTeacher(ctx, teacherID, scope.TenantID)
	if err != nil {
		return nil, "", notFoundOr(err, ErrTeacherNotFound)
	}
	if teacher.BranchID != scope.BranchID {
		return nil, "", ErrTeacherNotFound
	}

	items, err := s.repo.TimetableEntry.ListByTeacher(ctx, scope.TenantID, scope.BranchID, teacherID)
	if err != nil {
		s.logger.Error("查询教师课表失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, "", err
	}

	cal := buildTeacherCalendar(teacher, items, s.now().UTC())

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("teacher_%s.ics", fileSafe(teacher.Name))
	return buf, filename, nil
}

func buildTeacherCalendar(teacher *model.Teacher, items []model.TeacherScheduleItem, stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//school-erp//timetable//EN")
	cal.SetXWRCalName(teacher.Name)

	for _, item := range items {
		e := item.Entry
		if e.Period == nil {
			continue
		}
		first := firstOccurrence(item.EffectiveFrom, e.DayOfWeek)
		if item.EffectiveTo != nil && first.After(*item.EffectiveTo) {
			continue
		}

		start := first.Add(time.Duration(e.Period.StartTime) * time.Minute)
		end := first.Add(time.Duration(e.Period.EndTime) * time.Minute)

		evt := cal.AddEvent(e.EntryID + "@timetable")
		evt.SetDtStampTime(stamp)
		evt.SetProperty(ics.ComponentPropertyDtStart, start.Format(icsLocalLayout))
		evt.SetProperty(ics.ComponentPropertyDtEnd, end.Format(icsLocalLayout))
		evt.SetSummary(eventSummary(&e))
		evt.SetLocation(fmt.Sprintf("%s - %s", item.ClassName, item.SectionName))
		evt.AddRrule(weeklyRule(e.DayOfWeek, item.EffectiveTo))
	}
	return cal
}

const icsLocalLayout = "20060102T150405"

var icsByDay = map[model.DayOfWeek]string{
	model.Monday:    "MO",
	model.Tuesday:   "TU",
	model.Wednesday: "WE",
	model.Thursday:  "TH",
	model.Friday:    "FR",
	model.Saturday:  "SA",
	model.Sunday:    "SU",
}

// firstOccurrence 生效日当天或之后第一个匹配星期的日期（零点）
func firstOccurrence(from time.Time, day model.DayOfWeek) time.Time {
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

func weeklyRule(day model.DayOfWeek, until *time.Time) string {
	rule := "FREQ=WEEKLY;BYDAY=" + icsByDay[day]
	if until != nil {
		rule += ";UNTIL=" + time.Date(until.Year(), until.Month(), until.Day(), 23, 59, 59, 0, time.UTC).Format(icsLocalLayout)
	}
	return rule
}

func eventSummary(e *model.TimetableEntry) string {
	if e.Subject != nil && e.Subject.Name != "" {
		return e.Subject.Name
	}
	return "Class"
}

// ── 辅助函数 ──

func entryCellText(e *model.TimetableEntry) string {
	subject, teacher := e.SubjectID, e.TeacherID
	if e.Subject != nil {
		subject = e.Subject.Name
	}
	if e.Teacher != nil {
		teacher = e.Teacher.Name
	}
	return subject + " / " + teacher
}

func timetableTitle(t *model.Timetable) string {
	className, sectionName := t.ClassID, t.SectionID
	if t.Class != nil {
		className = t.Class.Name
	}
	if t.Section != nil {
		sectionName = t.Section.Name
	}
	window := t.EffectiveFrom.Format("2006-01-02") + " ~ "
	if t.EffectiveTo != nil {
		window += t.EffectiveTo.Format("2006-01-02")
	}
	return fmt.Sprintf("%s - %s (%s)", className, sectionName, strings.TrimSpace(window))
}

func dayLabel(d model.DayOfWeek) string {
	s := string(d)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
