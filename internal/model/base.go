package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ── 分钟精度的时刻类型 ──

// TimeOfDay 一天中的时刻，单位为自零点起的分钟数（0 ~ 1439）
// 对应 PostgreSQL TIME 列，实现 GORM Scanner/Valuer 接口。
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay 解析 "HH:MM" 或 "HH:MM:SS"（秒必须为 0）
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 2 || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		// 数据库回读可能带秒（可能还带小数），分钟精度要求秒为 0
		sec, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || sec != 0 {
			return 0, fmt.Errorf("time of day %q is not minute aligned", s)
		}
	}
	return TimeOfDay(h*60 + m), nil
}

// MustParseTimeOfDay 解析失败时 panic，仅用于常量与测试
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String 格式化为 "HH:MM"
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid 是否落在 00:00 ~ 23:59
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// Scan 兼容 pgx 返回的文本、time.Time 与整数
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	case time.Time:
		*t = TimeOfDay(v.Hour()*60 + v.Minute())
		return nil
	case int64:
		*t = TimeOfDay(v)
		return nil
	default:
		return fmt.Errorf("TimeOfDay.Scan: unsupported type %T", src)
	}
}

func (t *TimeOfDay) scanString(s string) error {
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return fmt.Errorf("TimeOfDay.Scan: %w", err)
	}
	*t = parsed
	return nil
}

// Value 序列化为 PostgreSQL TIME 文本
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

// IntervalsOverlap 半开区间 [start1, end1) 与 [start2, end2) 是否重叠
// 首尾相接（end1 == start2）不算重叠
func IntervalsOverlap(start1, end1, start2, end2 TimeOfDay) bool {
	return start1 < end2 && end1 > start2
}

// ── 审计字段 ──

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy *string   `gorm:"type:uuid"                          json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy *string   `gorm:"type:uuid"                          json:"updated_by,omitempty"`
}

// SoftDeleteModel 支持软删除的审计字段
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index"     json:"deleted_at,omitempty"`
	DeletedBy *string        `gorm:"type:uuid" json:"deleted_by,omitempty"`
}

// VersionedModel 支持乐观锁的软删除模型
type VersionedModel struct {
	SoftDeleteModel
	Version int `gorm:"not null;default:1" json:"version"`
}
