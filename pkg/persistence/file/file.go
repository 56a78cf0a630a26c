// Package file provides file-based persistence for automations, contacts and deferred tasks.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/dukex/relay/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// A single mutex serializes every repository so read-modify-write operations are atomic
// within the process.
type Persistence struct {
	root string
	mu   *sync.Mutex

	automationRepo  *AutomationRepository
	contactRepo     *ContactRepository
	taskRepo        *DeferredTaskRepository
	crmRepo         *CRMRepository
	templateRepo    *TemplateRepository
	connectionRepo  *ConnectionRepository
	messageRepo     *MessageRepository
	enrollmentRepo  *EnrollmentRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	mu := &sync.Mutex{}

	// A missing root is reported by HealthCheck.
	_ = os.MkdirAll(cleanRoot, 0750)

	return &Persistence{
		root:           cleanRoot,
		mu:             mu,
		automationRepo: NewAutomationRepository(cleanRoot, mu),
		contactRepo:    NewContactRepository(cleanRoot, mu),
		taskRepo:       NewDeferredTaskRepository(cleanRoot, mu),
		crmRepo:        NewCRMRepository(cleanRoot, mu),
		templateRepo:   NewTemplateRepository(cleanRoot, mu),
		connectionRepo: NewConnectionRepository(cleanRoot, mu),
		messageRepo:    NewMessageRepository(cleanRoot, mu),
		enrollmentRepo: NewEnrollmentRepository(cleanRoot, mu),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) AutomationRepository() persistence.AutomationRepository {
	return fp.automationRepo
}

func (fp *Persistence) ContactRepository() persistence.ContactRepository {
	return fp.contactRepo
}

func (fp *Persistence) DeferredTaskRepository() persistence.DeferredTaskRepository {
	return fp.taskRepo
}

func (fp *Persistence) CRMRepository() persistence.CRMRepository {
	return fp.crmRepo
}

func (fp *Persistence) TemplateRepository() persistence.TemplateRepository {
	return fp.templateRepo
}

func (fp *Persistence) ConnectionRepository() persistence.ConnectionRepository {
	return fp.connectionRepo
}

func (fp *Persistence) MessageRepository() persistence.MessageRepository {
	return fp.messageRepo
}

func (fp *Persistence) EnrollmentRepository() persistence.EnrollmentRepository {
	return fp.enrollmentRepo
}
