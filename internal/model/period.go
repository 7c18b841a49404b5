package model

// PeriodKind 节次类型
// 目前仅作展示用途，冲突检测对所有类型一视同仁
type PeriodKind string

const (
	PeriodKindRegular  PeriodKind = "regular"
	PeriodKindBreak    PeriodKind = "break"
	PeriodKindLunch    PeriodKind = "lunch"
	PeriodKindAssembly PeriodKind = "assembly"
)

// Valid 是否为已知类型
func (k PeriodKind) Valid() bool {
	switch k {
	case PeriodKindRegular, PeriodKindBreak, PeriodKindLunch, PeriodKindAssembly:
		return true
	}
	return false
}

// Period 节次定义表 — 对应 periods
// [StartTime, EndTime) 为半开区间；同一分校内有效节次互不重叠
type Period struct {
	PeriodID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"period_id"`
	TenantID     string     `gorm:"type:uuid;not null"                             json:"tenant_id"`
	BranchID     string     `gorm:"type:uuid;not null"                             json:"branch_id"`
	Name         string     `gorm:"type:varchar(50);not null"                      json:"name"`
	StartTime    TimeOfDay  `gorm:"type:time;not null"                             json:"start_time"`
	EndTime      TimeOfDay  `gorm:"type:time;not null"                             json:"end_time"`
	DisplayOrder int        `gorm:"not null;default:0"                             json:"display_order"`
	Kind         PeriodKind `gorm:"type:varchar(20);not null;default:regular"      json:"kind"`
	SoftDeleteModel
}

// TableName 指定表名
func (Period) TableName() string { return "periods" }

// Overlaps 与另一区间是否重叠
func (p *Period) Overlaps(start, end TimeOfDay) bool {
	return IntervalsOverlap(p.StartTime, p.EndTime, start, end)
}
