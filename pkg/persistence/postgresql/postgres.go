// Package postgresql provides PostgreSQL persistence for automations, contacts and deferred tasks.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/relay/pkg/persistence"
	"github.com/dukex/relay/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	automationRepo *AutomationRepository
	contactRepo    *ContactRepository
	taskRepo       *DeferredTaskRepository
	crmRepo        *CRMRepository
	templateRepo   *TemplateRepository
	connectionRepo *ConnectionRepository
	messageRepo    *MessageRepository
	enrollmentRepo *EnrollmentRepository
}

// NewPersistence connects to databaseURL, runs pending migrations and returns the persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger = logger.With("module", "postgresql")

	return &Persistence{
		db:             database,
		logger:         logger,
		automationRepo: NewAutomationRepository(database, logger),
		contactRepo:    NewContactRepository(database, logger),
		taskRepo:       NewDeferredTaskRepository(database, logger),
		crmRepo:        NewCRMRepository(database, logger),
		templateRepo:   &TemplateRepository{db: database},
		connectionRepo: &ConnectionRepository{db: database},
		messageRepo:    &MessageRepository{db: database, logger: logger},
		enrollmentRepo: &EnrollmentRepository{db: database},
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) AutomationRepository() persistence.AutomationRepository {
	return p.automationRepo
}

func (p *Persistence) ContactRepository() persistence.ContactRepository {
	return p.contactRepo
}

func (p *Persistence) DeferredTaskRepository() persistence.DeferredTaskRepository {
	return p.taskRepo
}

func (p *Persistence) CRMRepository() persistence.CRMRepository {
	return p.crmRepo
}

func (p *Persistence) TemplateRepository() persistence.TemplateRepository {
	return p.templateRepo
}

func (p *Persistence) ConnectionRepository() persistence.ConnectionRepository {
	return p.connectionRepo
}

func (p *Persistence) MessageRepository() persistence.MessageRepository {
	return p.messageRepo
}

func (p *Persistence) EnrollmentRepository() persistence.EnrollmentRepository {
	return p.enrollmentRepo
}

type scanner interface {
	Scan(dest ...any) error
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
