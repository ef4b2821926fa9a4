package db

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// Blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/gym-api/internal/models"
)

// ConnectAndMigrate opens the configured database and brings the schema up to
// date. Postgres DSNs get a retry loop (container startup); anything else is
// opened as a sqlite file, which is also the dev default.
func ConnectAndMigrate(dsn string) (*gorm.DB, error) {
	dsn = NormalizeDSN(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN is empty, check environment configuration")
	}
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var conn *gorm.DB
	var err error
	if IsPostgres(dsn) {
		for i := 0; i < 10; i++ {
			conn, err = gorm.Open(postgres.Open(dsn), cfg)
			if err == nil {
				break
			}
			fmt.Println("Retrying DB connection...", err)
			time.Sleep(2 * time.Second)
		}
	} else {
		conn, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if pingErr := conn.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)([^\s]+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	fmt.Println("[DB] Using DSN:", masked)

	// MIGRATIONS=1 runs sql migrations via golang-migrate (postgres only);
	// otherwise AutoMigrate keeps dev and test databases in sync.
	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if !IsPostgres(dsn) {
			return nil, errors.New("MIGRATIONS=1 requires a postgres DSN")
		}
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		if err := AutoMigrate(conn); err != nil {
			return nil, err
		}
	}

	for _, table := range []string{"users", "students", "lessons", "payments"} {
		if !conn.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}
	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(conn)
	}
	return conn, nil
}

// AutoMigrate creates/updates all tables. Exported for tests.
func AutoMigrate(conn *gorm.DB) error {
	modelsToMigrate := []interface{}{
		&models.User{}, &models.TrainerProfile{}, &models.MemberProfile{},
		&models.Student{}, &models.Lesson{}, &models.Payment{},
		&models.TrainingSession{}, &models.Plan{}, &models.Machine{},
	}
	for _, m := range modelsToMigrate {
		if migErr := conn.AutoMigrate(m); migErr != nil {
			return fmt.Errorf("automigrate %T: %w", m, migErr)
		}
	}
	return nil
}

// seed provisions a dev admin and a starter machine catalog. Idempotent.
func seed(conn *gorm.DB) {
	var count int64
	conn.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count == 0 {
		hash, _ := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
		conn.Create(&models.User{Username: "admin", Email: "admin@example.com", Password: string(hash), Role: models.RoleAdmin})
	}
	baseMachines := []models.Machine{
		{Code: "TRD-01", Name: "Treadmill"},
		{Code: "ROW-01", Name: "Rowing machine"},
		{Code: "SQR-01", Name: "Squat rack"},
	}
	for _, m := range baseMachines {
		var existing models.Machine
		if err := conn.Where("code = ?", m.Code).First(&existing).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			conn.Create(&m)
		}
	}
}

// runSQLMigrations executes migrations in ./migrations using the file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
