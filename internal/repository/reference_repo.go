package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
)

// ReferenceRepository 外部模块数据的只读查询（学年、班级、分班、科目、教师）
// 对应排课引擎依赖的六个外部契约；找不到时统一返回 gorm.ErrRecordNotFound 或 false
type ReferenceRepository interface {
	AcademicYearExists(ctx context.Context, id, tenantID string) (bool, error)
	GetClass(ctx context.Context, id, tenantID, branchID string) (*model.Class, error)
	GetSection(ctx context.Context, id, classID string) (*model.Section, error)
	SubjectExists(ctx context.Context, id, tenantID string) (bool, error)
	ClassSubjectExists(ctx context.Context, classID, subjectID string) (bool, error)
	GetTeacher(ctx context.Context, id, tenantID string) (*model.Teacher, error)
}

type referenceRepo struct {
	db *gorm.DB
}

// NewReferenceRepo 创建 ReferenceRepository 实例
func NewReferenceRepo(db *gorm.DB) ReferenceRepository {
	return &referenceRepo{db: db}
}

func (r *referenceRepo) AcademicYearExists(ctx context.Context, id, tenantID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.AcademicYear{}).
		Where("academic_year_id = ? AND tenant_id = ?", id, tenantID).
		Count(&n).Error
	return n > 0, err
}

func (r *referenceRepo) GetClass(ctx context.Context, id, tenantID, branchID string) (*model.Class, error) {
	var class model.Class
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND tenant_id = ? AND branch_id = ?", id, tenantID, branchID).
		First(&class).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *referenceRepo) GetSection(ctx context.Context, id, classID string) (*model.Section, error) {
	var section model.Section
	err := r.db.WithContext(ctx).
		Where("section_id = ? AND class_id = ?", id, classID).
		First(&section).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *referenceRepo) SubjectExists(ctx context.Context, id, tenantID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Subject{}).
		Where("subject_id = ? AND tenant_id = ?", id, tenantID).
		Count(&n).Error
	return n > 0, err
}

func (r *referenceRepo) ClassSubjectExists(ctx context.Context, classID, subjectID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.ClassSubject{}).
		Where("class_id = ? AND subject_id = ?", classID, subjectID).
		Count(&n).Error
	return n > 0, err
}

func (r *referenceRepo) GetTeacher(ctx context.Context, id, tenantID string) (*model.Teacher, error) {
	var teacher model.Teacher
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? AND tenant_id = ?", id, tenantID).
		First(&teacher).Error
	if err != nil {
		return nil, err
	}
	return &teacher, nil
}
