package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/cashboard/cashboard/internal/common"
	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/service"
)

// Action is the outcome of a duplicate check for one normalized record.
type Action string

const (
	// ActionNew means no stored row matches; the record is inserted.
	ActionNew Action = "new"
	// ActionDuplicate means an equivalent row is already stored; skip.
	ActionDuplicate Action = "duplicate"
	// ActionPromote means a stored pending row should be promoted to
	// completed in place.
	ActionPromote Action = "pending_to_completed"
)

// DuplicateDetector decides whether a normalized record is new, already
// stored, or the completed re-export of a stored pending record. It is what
// makes re-running ingestion over the same export file idempotent.
type DuplicateDetector struct {
	store service.Storage
}

// NewDuplicateDetector creates a detector backed by the given store.
func NewDuplicateDetector(store service.Storage) *DuplicateDetector {
	return &DuplicateDetector{store: store}
}

// Check classifies the incoming record. When the record carries an external
// identifier, the stored row with the same (original_id, source_type,
// source_id) decides: a stored pending row plus an incoming completed record
// is a promotion, any other match is a duplicate. Records without an
// identifier fall back to content equality, but only while pending, since
// pending exports are the ones that lack stable identifiers.
func (d *DuplicateDetector) Check(ctx context.Context, txn *model.Transaction) (Action, *model.Transaction, error) {
	if originalID, ok := txn.DedupeKey(); ok {
		existing, err := d.store.FindTransactionByOriginalID(ctx, originalID, txn.SourceType, txn.SourceID)
		if err == nil {
			if existing.Status == model.StatusPending && txn.Status == model.StatusCompleted {
				return ActionPromote, existing, nil
			}
			return ActionDuplicate, existing, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return "", nil, fmt.Errorf("failed to check dedup key: %w", err)
		}
		return ActionNew, nil, nil
	}

	if txn.Status == model.StatusPending {
		existing, err := d.store.FindPendingByContent(ctx, txn)
		if err == nil {
			return ActionDuplicate, existing, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return "", nil, fmt.Errorf("failed to check content fallback: %w", err)
		}
	}

	return ActionNew, nil, nil
}
