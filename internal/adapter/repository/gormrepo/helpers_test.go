package gormrepo

import (
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbinfra "github.com/gabrieltemtsen/clenja/internal/infrastructure/db"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

const (
	alice    = "0x00000000000000000000000000000000000A11cE"
	bob      = "0x0000000000000000000000000000000000000B0b"
	custody  = "0x000000000000000000000000000000000000c057"
	treasury = "0x0000000000000000000000000000000000007EA5"
)

// openTestDB creates an in-memory sqlite DB with the full schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbinfra.OpenGorm(dbinfra.DriverSQLite, ":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := dbinfra.Migrate(db); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func amt(s string) money.Amount { return money.MustParse(s) }
