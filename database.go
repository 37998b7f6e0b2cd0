package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrUnsupportedEngine is returned for a DB_ENGINE outside postgresql, mysql and sqlite.
var ErrUnsupportedEngine = errors.New("unsupported database engine")

const (
	enginePostgres = "postgres"
	engineMySQL    = "mysql"
	engineSQLite   = "sqlite"
)

// dialect folds the accepted DB_ENGINE spellings onto one name per driver.
func dialect(engine string) string {
	switch engine {
	case "postgresql", "postgres":
		return enginePostgres
	case "mysql", "mariadb":
		return engineMySQL
	case "sqlite", "sqlite3":
		return engineSQLite
	}
	return ""
}

// connectDB establishes a connection to the database
func connectDB(config *Config, logger *zap.Logger) (*sql.DB, error) {
	logger.Named("database").Info("connecting",
		zap.String("engine", config.DBEngine),
		zap.String("host", config.DBHost),
		zap.String("port", config.DBPort),
		zap.String("db", config.DBName),
	)

	var dsn string
	var driverName string

	switch dialect(config.DBEngine) {
	case enginePostgres:
		driverName = "postgres" // lib/pq registers as "postgres"
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			config.DBHost,
			config.DBPort,
			config.DBUser,
			config.DBPass,
			config.DBName,
			config.DBSSLMode,
		)
	case engineMySQL:
		driverName = "mysql"
		dsn = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true",
			config.DBUser,
			config.DBPass,
			config.DBHost,
			config.DBPort,
			config.DBName,
		)
	case engineSQLite:
		driverName = "sqlite3"
		dsn = config.DBPath
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEngine, config.DBEngine)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// bind rewrites ? placeholders as $1..$n for postgres.
func (s *Service) bind(query string) string {
	if dialect(s.config.DBEngine) != enginePostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// initCustomColumnsTable creates the custom_columns table if it doesn't exist
func (s *Service) initCustomColumnsTable() error {
	log := s.logger.Named("database")
	log.Debug("initializing custom_columns table", zap.String("engine", s.config.DBEngine))

	var createTableQuery string
	switch dialect(s.config.DBEngine) {
	case enginePostgres:
		createTableQuery = `
			CREATE TABLE IF NOT EXISTS custom_columns (
				id SERIAL PRIMARY KEY,
				state_key VARCHAR(255) NOT NULL,
				col_id VARCHAR(64) NOT NULL,
				col_label VARCHAR(255) NOT NULL,
				col_type VARCHAR(32) NOT NULL,
				options JSONB NOT NULL DEFAULT '[]'::jsonb,
				col_width INTEGER NOT NULL DEFAULT 150,
				col_order INTEGER NOT NULL DEFAULT 0,
				created_by VARCHAR(255),
				created TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				deleted_at TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_custom_columns_state ON custom_columns(state_key);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_custom_columns_live ON custom_columns(state_key, col_id) WHERE deleted_at IS NULL;
		`
	case engineMySQL:
		createTableQuery = `
			CREATE TABLE IF NOT EXISTS custom_columns (
				id INT AUTO_INCREMENT PRIMARY KEY,
				state_key VARCHAR(255) NOT NULL,
				col_id VARCHAR(64) NOT NULL,
				col_label VARCHAR(255) NOT NULL,
				col_type VARCHAR(32) NOT NULL,
				options JSON NOT NULL,
				col_width INT NOT NULL DEFAULT 150,
				col_order INT NOT NULL DEFAULT 0,
				created_by VARCHAR(255),
				created TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
				deleted_at TIMESTAMP NULL,
				INDEX idx_state (state_key),
				INDEX idx_deleted (deleted_at)
			);
		`
	case engineSQLite:
		createTableQuery = `
			CREATE TABLE IF NOT EXISTS custom_columns (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				state_key TEXT NOT NULL,
				col_id TEXT NOT NULL,
				col_label TEXT NOT NULL,
				col_type TEXT NOT NULL,
				options TEXT NOT NULL DEFAULT '[]',
				col_width INTEGER NOT NULL DEFAULT 150,
				col_order INTEGER NOT NULL DEFAULT 0,
				created_by TEXT,
				created TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				deleted_at TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_custom_columns_state ON custom_columns(state_key);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_custom_columns_live ON custom_columns(state_key, col_id) WHERE deleted_at IS NULL;
		`
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEngine, s.config.DBEngine)
	}

	if _, err := s.db.Exec(createTableQuery); err != nil {
		log.Error("error creating custom_columns table", zap.Error(err))
		return fmt.Errorf("failed to create custom_columns table: %w", err)
	}

	// Tables created before created_by existed are widened in place.
	var migrationQueries []string
	switch dialect(s.config.DBEngine) {
	case enginePostgres, engineMySQL:
		migrationQueries = []string{
			"ALTER TABLE custom_columns ADD COLUMN IF NOT EXISTS created_by VARCHAR(255)",
		}
	case engineSQLite:
		// SQLite has no ADD COLUMN IF NOT EXISTS
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('custom_columns') WHERE name = 'created_by'").Scan(&count)
		if err == nil && count == 0 {
			migrationQueries = []string{"ALTER TABLE custom_columns ADD COLUMN created_by TEXT"}
		}
	}
	for _, q := range migrationQueries {
		if _, err := s.db.Exec(q); err != nil {
			log.Warn("migration may have failed (column might already exist)", zap.Error(err))
		}
	}

	log.Debug("custom_columns table ready")
	return nil
}

// initViewConfigsTable creates the view_configs table if it doesn't exist
func (s *Service) initViewConfigsTable() error {
	log := s.logger.Named("database")

	var createTableQuery string
	switch dialect(s.config.DBEngine) {
	case enginePostgres:
		createTableQuery = `
			CREATE TABLE IF NOT EXISTS view_configs (
				state_key VARCHAR(255) PRIMARY KEY,
				config TEXT NOT NULL,
				modified TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
		`
	case engineMySQL:
		createTableQuery = `
			CREATE TABLE IF NOT EXISTS view_configs (
				state_key VARCHAR(255) PRIMARY KEY,
				config TEXT NOT NULL,
				modified TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			);
		`
	case engineSQLite:
		createTableQuery = `
			CREATE TABLE IF NOT EXISTS view_configs (
				state_key TEXT PRIMARY KEY,
				config TEXT NOT NULL,
				modified TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
		`
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEngine, s.config.DBEngine)
	}

	if _, err := s.db.Exec(createTableQuery); err != nil {
		log.Error("error creating view_configs table", zap.Error(err))
		return fmt.Errorf("failed to create view_configs table: %w", err)
	}
	log.Debug("view_configs table ready")
	return nil
}
