package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Period         PeriodRepository
	Timetable      TimetableRepository
	TimetableEntry TimetableEntryRepository
	Reference      ReferenceRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Period:         NewPeriodRepo(db),
		Timetable:      NewTimetableRepo(db),
		TimetableEntry: NewTimetableEntryRepo(db),
		Reference:      NewReferenceRepo(db),
	}
}
