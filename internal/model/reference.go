package model

import "gorm.io/gorm"

// ── 外部模块维护的基础数据（排课只读） ──

// TeacherStatusActive 在职状态
const TeacherStatusActive = "active"

// AcademicYear 学年 — 对应 academic_years
type AcademicYear struct {
	AcademicYearID string         `gorm:"type:uuid;primaryKey" json:"academic_year_id"`
	TenantID       string         `gorm:"type:uuid;not null"   json:"tenant_id"`
	Name           string         `gorm:"type:varchar(50)"     json:"name"`
	DeletedAt      gorm.DeletedAt `gorm:"index"                json:"-"`
}

// TableName 指定表名
func (AcademicYear) TableName() string { return "academic_years" }

// Class 年级/班级 — 对应 classes
type Class struct {
	ClassID        string         `gorm:"type:uuid;primaryKey" json:"class_id"`
	TenantID       string         `gorm:"type:uuid;not null"   json:"tenant_id"`
	BranchID       string         `gorm:"type:uuid;not null"   json:"branch_id"`
	AcademicYearID string         `gorm:"type:uuid;not null"   json:"academic_year_id"`
	Name           string         `gorm:"type:varchar(50)"     json:"name"`
	DeletedAt      gorm.DeletedAt `gorm:"index"                json:"-"`
}

// TableName 指定表名
func (Class) TableName() string { return "classes" }

// Section 分班 — 对应 sections
type Section struct {
	SectionID string         `gorm:"type:uuid;primaryKey" json:"section_id"`
	ClassID   string         `gorm:"type:uuid;not null"   json:"class_id"`
	Name      string         `gorm:"type:varchar(50)"     json:"name"`
	DeletedAt gorm.DeletedAt `gorm:"index"                json:"-"`
}

// TableName 指定表名
func (Section) TableName() string { return "sections" }

// Subject 科目 — 对应 subjects
type Subject struct {
	SubjectID string         `gorm:"type:uuid;primaryKey" json:"subject_id"`
	TenantID  string         `gorm:"type:uuid;not null"   json:"tenant_id"`
	Name      string         `gorm:"type:varchar(100)"    json:"name"`
	DeletedAt gorm.DeletedAt `gorm:"index"                json:"-"`
}

// TableName 指定表名
func (Subject) TableName() string { return "subjects" }

// ClassSubject 班级-科目映射 — 对应 class_subjects
type ClassSubject struct {
	ClassID   string         `gorm:"type:uuid;primaryKey" json:"class_id"`
	SubjectID string         `gorm:"type:uuid;primaryKey" json:"subject_id"`
	DeletedAt gorm.DeletedAt `gorm:"index"                json:"-"`
}

// TableName 指定表名
func (ClassSubject) TableName() string { return "class_subjects" }

// Teacher 教师 — 对应 teachers
type Teacher struct {
	TeacherID string         `gorm:"type:uuid;primaryKey" json:"teacher_id"`
	TenantID  string         `gorm:"type:uuid;not null"   json:"tenant_id"`
	BranchID  string         `gorm:"type:uuid;not null"   json:"branch_id"`
	Name      string         `gorm:"type:varchar(100)"    json:"name"`
	Status    string         `gorm:"type:varchar(20)"     json:"status"`
	DeletedAt gorm.DeletedAt `gorm:"index"                json:"-"`
}

// TableName 指定表名
func (Teacher) TableName() string { return "teachers" }

// IsActive 是否在职
func (t *Teacher) IsActive() bool { return t.Status == TeacherStatusActive }
