// Package store persists in-flight conversion operations in Firestore.
package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tlxtech/textextract/internal/models"
)

// OperationStore maps owner IDs to their single in-flight operation. The
// Firestore document ID is the owner ID itself, so Put is a keyed replace
// and the one-job-per-owner invariant holds by construction rather than by
// a uniqueness constraint.
type OperationStore struct {
	client     *firestore.Client
	collection string
}

// NewOperationStore creates a store over the given collection.
func NewOperationStore(client *firestore.Client, collection string) (*OperationStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client must be provided")
	}
	if collection == "" {
		return nil, fmt.Errorf("operations collection name must be provided")
	}
	return &OperationStore{client: client, collection: collection}, nil
}

// Get returns the owner's operation, or nil when none exists.
func (s *OperationStore) Get(ctx context.Context, ownerID string) (*models.Operation, error) {
	snap, err := s.client.Collection(s.collection).Doc(ownerID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read operation for owner %s: %w", ownerID, err)
	}

	var op models.Operation
	if err := snap.DataTo(&op); err != nil {
		return nil, fmt.Errorf("failed to decode operation for owner %s: %w", ownerID, err)
	}
	return &op, nil
}

// Put stores the operation, replacing any existing record for the owner.
func (s *OperationStore) Put(ctx context.Context, ownerID string, op *models.Operation) error {
	if _, err := s.client.Collection(s.collection).Doc(ownerID).Set(ctx, op); err != nil {
		return fmt.Errorf("failed to store operation for owner %s: %w", ownerID, err)
	}
	return nil
}

// Delete removes the owner's operation. Deleting an absent record succeeds.
func (s *OperationStore) Delete(ctx context.Context, ownerID string) error {
	if _, err := s.client.Collection(s.collection).Doc(ownerID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete operation for owner %s: %w", ownerID, err)
	}
	return nil
}
