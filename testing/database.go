// Package testing provides test utilities and database setup for testing the ledger
package testing

import (
	"context"
	"fmt"
	"log"

	"github.com/novapay/recharge-ledger/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB represents a test database instance backed by in-memory SQLite.
// Each SetupTestDB call gets a fresh schema, so tests never see each
// other's rows.
type TestDB struct {
	DB *gorm.DB
}

// SetupTestDB creates a new in-memory database and migrates the full schema
func SetupTestDB() (*TestDB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_fk=1"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// Keep a single connection so the shared in-memory database survives
	// for the lifetime of the test.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Operator{},
		&models.Transaction{},
		&models.Admin{},
		&models.AuditLog{},
		&models.Notification{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate test schema: %w", err)
	}

	return &TestDB{DB: db}, nil
}

// TeardownTestDB closes the database connection, discarding all data
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}
	sqlDB, err := tdb.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ClearAllTables removes all data from tables while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	// Order matters due to foreign key constraints
	tables := []string{
		"notifications",
		"audit_log",
		"transactions",
		"admins",
		"operators",
		"users",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	return nil
}

// TestWithDB runs a test function against a fresh database and tears it down after
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
