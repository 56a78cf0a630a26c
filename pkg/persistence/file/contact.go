package file

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/google/uuid"
)

// ContactRepository handles contact-related file operations.
type ContactRepository struct {
	mu       *sync.Mutex
	contacts *collection[models.Contact]
}

func NewContactRepository(root string, mu *sync.Mutex) *ContactRepository {
	return &ContactRepository{
		mu:       mu,
		contacts: newCollection[models.Contact](root, "contacts"),
	}
}

func (r *ContactRepository) ContactByID(_ context.Context, id string) (*models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load("ContactByID", id)
}

func (r *ContactRepository) load(op, id string) (*models.Contact, error) {
	contact, err := r.contacts.get(id)
	if err != nil {
		return nil, persistence.NewContactError(op, id, err)
	}

	if contact == nil {
		return nil, persistence.NewContactError(op, id, persistence.ErrContactNotFound)
	}

	return contact, nil
}

func (r *ContactRepository) SaveContact(_ context.Context, contact *models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if contact.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate contact ID: %w", err)
		}

		contact.ID = id.String()
	}

	now := time.Now().UTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}

	contact.UpdatedAt = now

	err := r.contacts.put(contact.ID, contact)
	if err != nil {
		return persistence.NewContactError("SaveContact", contact.ID, err)
	}

	return nil
}

// UpdateContact applies patch to the stored contact and returns the result.
func (r *ContactRepository) UpdateContact(_ context.Context, id string, patch models.ContactPatch) (*models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contact, err := r.load("UpdateContact", id)
	if err != nil {
		return nil, err
	}

	patch.Apply(contact)
	contact.UpdatedAt = time.Now().UTC()

	err = r.contacts.put(contact.ID, contact)
	if err != nil {
		return nil, persistence.NewContactError("UpdateContact", id, err)
	}

	return contact, nil
}
