/*
ledger.go - Stock Ledger: the only writer of material stock

PURPOSE:
  Applies or reverses the stock effect of a movement on one material.
  Stock is a running counter kept consistent with the movement history:
  opening stock + sum(returns) - sum(withdrawals) over stored movements.

CRITICAL INVARIANTS:
  1. NON-NEGATIVE: an apply that would leave stock below zero fails with
     InsufficientStockError and writes nothing. An increase that would
     overflow int64 is a ValidationError on the quantity.
  2. LOCKED READ-MODIFY-WRITE: the material is read through LockMaterial
     inside the caller's transaction, so the new quantity is never computed
     from a stale read.
  3. SOLE WRITER: Store.UpdateStock is called from here and nowhere else.

REVERSAL:
  reverse=true flips the sign. Editing a movement is
  Apply(old, reverse=true) followed by Apply(new) in one transaction,
  which leaves the counter exactly where it would be had the old value
  never been recorded.

EXAMPLE:
  err := store.WithTx(ctx, func(s inventory.Store) error {
      _, err := ledger.Apply(ctx, s, "mat-1", 3, inventory.KindWithdrawal, false)
      return err
  })

SEE ALSO:
  - recorder.go: the only caller
  - store.go: LockMaterial / UpdateStock contracts
*/
package inventory

import (
	"context"
	"fmt"
	"math"
)

// StockLedger owns per-material stock arithmetic.
type StockLedger struct{}

func NewStockLedger() *StockLedger {
	return &StockLedger{}
}

// Preview computes the stock that applying quantity of kind to m would
// leave, without touching storage.
func (l *StockLedger) Preview(m Material, quantity int64, kind MovementKind, reverse bool) (int64, error) {
	if quantity <= 0 {
		return 0, invalid("quantity", "must be positive, got %d", quantity)
	}
	if !kind.Valid() {
		return 0, invalid("kind", "unknown movement kind %q", kind)
	}

	delta := kind.Delta(quantity)
	if reverse {
		delta = -delta
	}
	if delta > 0 && m.StockQuantity > math.MaxInt64-delta {
		return 0, invalid("quantity", "%d would overflow the stock of %s (%d)", quantity, m.ID, m.StockQuantity)
	}
	next := m.StockQuantity + delta
	if next < 0 {
		return 0, &InsufficientStockError{
			MaterialID: m.ID,
			Available:  m.StockQuantity,
			Requested:  -delta,
		}
	}
	return next, nil
}

// Apply locks the material, computes the new quantity and persists it.
// s must be the transactional Store handed to a WithTx callback.
func (l *StockLedger) Apply(ctx context.Context, s Store, id MaterialID, quantity int64, kind MovementKind, reverse bool) (int64, error) {
	m, err := s.LockMaterial(ctx, id)
	if err != nil {
		return 0, err
	}

	next, err := l.Preview(*m, quantity, kind, reverse)
	if err != nil {
		return 0, err
	}

	if err := s.UpdateStock(ctx, id, next); err != nil {
		return 0, fmt.Errorf("update stock for %s: %w", id, err)
	}
	return next, nil
}
