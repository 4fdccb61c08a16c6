package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Store reads and merges conversation documents. Every merge is a
// read-modify-write under a row lock, so concurrent patches touching
// different keys both survive.
type Store struct {
	repo Repository
	tx   txRunner
}

// NewStore builds a state store.
func NewStore(repo Repository, tx txRunner) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("conversation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Store{repo: repo, tx: tx}, nil
}

// Load returns the stored document, or an empty one.
func (s *Store) Load(ctx context.Context, merchantID, customerID int64) (types.Document, error) {
	row, err := s.repo.Find(ctx, merchantID, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Document{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation state")
	}
	if row.Data == nil {
		return types.Document{}, nil
	}
	return row.Data, nil
}

// LoadState is Load decoded into a State.
func (s *Store) LoadState(ctx context.Context, merchantID, customerID int64) (State, error) {
	doc, err := s.Load(ctx, merchantID, customerID)
	if err != nil {
		return State{}, err
	}
	return Decode(doc), nil
}

// Merge applies patch onto the stored document and returns the result.
// Keys with nil values are removed. An empty patch resets the document.
func (s *Store) Merge(ctx context.Context, merchantID, customerID int64, patch types.Document) (types.Document, error) {
	return s.write(ctx, merchantID, customerID, func(current types.Document) types.Document {
		if len(patch) == 0 {
			return types.Document{}
		}
		next := current.Clone()
		for k, v := range patch {
			if v == nil {
				delete(next, k)
				continue
			}
			next[k] = v
		}
		return next
	})
}

// Replace overwrites the whole document.
func (s *Store) Replace(ctx context.Context, merchantID, customerID int64, doc types.Document) (types.Document, error) {
	return s.write(ctx, merchantID, customerID, func(types.Document) types.Document {
		next := types.Document{}
		for k, v := range doc {
			if v != nil {
				next[k] = v
			}
		}
		return next
	})
}

// Reset clears the document.
func (s *Store) Reset(ctx context.Context, merchantID, customerID int64) error {
	_, err := s.Replace(ctx, merchantID, customerID, nil)
	return err
}

// ResetStale clears documents left in one of steps since before.
func (s *Store) ResetStale(ctx context.Context, steps []enums.ConversationStep, before time.Time) (int64, error) {
	n, err := s.repo.ResetStale(ctx, steps, before)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset stale conversations")
	}
	return n, nil
}

func (s *Store) write(ctx context.Context, merchantID, customerID int64, apply func(types.Document) types.Document) (types.Document, error) {
	var out types.Document
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Ensure(ctx, merchantID, customerID); err != nil {
			return err
		}
		row, err := repo.FindForUpdate(ctx, merchantID, customerID)
		if err != nil {
			return err
		}
		current := row.Data
		if current == nil {
			current = types.Document{}
		}
		out = apply(current)
		return repo.Save(ctx, row.ID, out, stepOf(out))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge conversation state")
	}
	return out, nil
}

func stepOf(doc types.Document) enums.ConversationStep {
	return Decode(doc).Phase.Step()
}
