package main

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Service owns the database handle backing the column registry and view config store
type Service struct {
	db     *sql.DB
	config *Config
	logger *zap.Logger
}

// NewService creates a new service instance with database connection
func NewService(config *Config, logger *zap.Logger) (*Service, error) {
	log := logger.Named("service")
	log.Info("initializing service", zap.String("engine", config.DBEngine))

	db, err := connectDB(config, logger)
	if err != nil {
		log.Error("failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		log.Error("failed to ping database", zap.Error(err))
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Debug("database ping successful")

	service := newServiceWithDB(db, config, logger)
	if err := service.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("service ready")
	return service, nil
}

func newServiceWithDB(db *sql.DB, config *Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, config: config, logger: logger}
}

// initSchema creates or migrates every table the service reads.
func (s *Service) initSchema() error {
	if err := s.initCustomColumnsTable(); err != nil {
		return fmt.Errorf("failed to initialize custom_columns table: %w", err)
	}
	if err := s.initViewConfigsTable(); err != nil {
		return fmt.Errorf("failed to initialize view_configs table: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Service) Close() error {
	return s.db.Close()
}
