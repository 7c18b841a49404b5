package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateExclusionViolation  = "23P01"
)

// IsUniqueViolation 判断是否违反唯一约束
// constraint 非空时还要求约束名一致
func IsUniqueViolation(err error, constraint string) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) && constraint == "" {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != sqlStateUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsForeignKeyViolation 判断是否违反外键约束
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateForeignKeyViolation
}

// IsExclusionViolation 判断是否违反排他约束
// constraint 非空时还要求约束名一致
func IsExclusionViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != sqlStateExclusionViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
