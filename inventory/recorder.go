/*
recorder.go - Movement Recorder

PURPOSE:
  Persists withdrawals and returns against an open access session and
  corrects them afterwards. Every quantity change goes through the
  StockLedger inside one transaction.

RECORD:
  keyed lock material:<id>
  tx: lock session (must be open) -> lock material -> pre-check
      -> insert movement -> ledger apply

EDIT (replace, never overwrite):
  keyed lock movement:<id>, then material:<old> and material:<new> sorted
  tx: lock movement -> lock materials in ID order
      -> reverse old (qty, kind) on the OLD material
      -> pre-check the new withdrawal on the NEW material
      -> persist new values -> apply new (qty, kind) on the NEW material

  A failure at any step rolls back the whole transaction: the movement and
  both materials are left exactly as before the call.

LOCK ORDER:
  movement key < material keys (sorted). Record takes only material keys,
  so the two paths can't wait on each other.
*/
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/stockroom/idgen"
)

// RecordMovement is the input to Recorder.Record.
type RecordMovement struct {
	SessionID  SessionID
	MaterialID MaterialID
	Quantity   int64
	Kind       MovementKind
}

// EditMovement is the input to Recorder.Edit. An empty MaterialID keeps
// the movement on its current material.
type EditMovement struct {
	Quantity   int64
	Kind       MovementKind
	MaterialID MaterialID
}

// MovementResult is what a successful record or edit leaves behind.
type MovementResult struct {
	Movement Movement
	Previous *Movement // set by Edit only
	Stock    int64     // stock of Movement.MaterialID after the change
	LowStock bool
}

// Recorder records and edits movements.
type Recorder struct {
	deps   Deps
	ledger *StockLedger
}

func NewRecorder(deps Deps) *Recorder {
	return &Recorder{deps: deps.withDefaults(), ledger: NewStockLedger()}
}

func validateMovement(quantity int64, kind MovementKind) error {
	if quantity <= 0 {
		return invalid("quantity", "must be positive, got %d", quantity)
	}
	if !kind.Valid() {
		return invalid("kind", "must be %q or %q, got %q", KindWithdrawal, KindReturn, kind)
	}
	return nil
}

// Record persists a new movement against an open session and applies it
// to the material's stock.
func (r *Recorder) Record(ctx context.Context, in RecordMovement) (*MovementResult, error) {
	if in.SessionID == "" {
		return nil, invalid("session_id", "is required")
	}
	if in.MaterialID == "" {
		return nil, invalid("material_id", "is required")
	}
	if err := validateMovement(in.Quantity, in.Kind); err != nil {
		return nil, err
	}

	unlock, err := LockAll(ctx, r.deps.Locker, materialKey(in.MaterialID))
	if err != nil {
		return nil, fmt.Errorf("lock material %s: %w", in.MaterialID, err)
	}
	defer unlock()

	id, err := idgen.New(idgen.PrefixMovement)
	if err != nil {
		return nil, err
	}
	now := r.deps.Clock.Now()

	var result MovementResult
	err = r.deps.Store.WithTx(ctx, func(s Store) error {
		session, err := s.LockSession(ctx, in.SessionID)
		if err != nil {
			return err
		}
		if !session.IsOpen() {
			return fmt.Errorf("record on session %s: %w", session.ID, ErrSessionNotOpen)
		}

		material, err := s.LockMaterial(ctx, in.MaterialID)
		if err != nil {
			return err
		}
		if _, err := r.ledger.Preview(*material, in.Quantity, in.Kind, false); err != nil {
			return err
		}

		mv := Movement{
			ID:         MovementID(id),
			SessionID:  session.ID,
			MaterialID: material.ID,
			Quantity:   in.Quantity,
			Kind:       in.Kind,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.InsertMovement(ctx, mv); err != nil {
			return fmt.Errorf("insert movement: %w", err)
		}

		stock, err := r.ledger.Apply(ctx, s, material.ID, mv.Quantity, mv.Kind, false)
		if err != nil {
			return err
		}
		result = MovementResult{Movement: mv, Stock: stock}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.LowStock = r.deps.isLow(result.Stock)
	r.deps.Logger.Info("movement recorded",
		"movement", result.Movement.ID,
		"session", result.Movement.SessionID,
		"material", result.Movement.MaterialID,
		"kind", result.Movement.Kind,
		"quantity", result.Movement.Quantity,
		"stock", result.Stock)

	publish(ctx, r.deps.Publisher, r.deps.Logger, TopicMovementRecorded, MovementRecorded{
		MovementID: result.Movement.ID,
		SessionID:  result.Movement.SessionID,
		MaterialID: result.Movement.MaterialID,
		Quantity:   result.Movement.Quantity,
		Kind:       result.Movement.Kind,
		Stock:      result.Stock,
	})
	r.signalLowStock(ctx, &result)
	return &result, nil
}

// Edit replaces a movement's quantity and kind, and optionally its
// material, as one atomic undo-then-apply.
func (r *Recorder) Edit(ctx context.Context, id MovementID, in EditMovement) (*MovementResult, error) {
	if err := validateMovement(in.Quantity, in.Kind); err != nil {
		return nil, err
	}

	unlockMovement, err := r.deps.Locker.Lock(ctx, movementKey(id))
	if err != nil {
		return nil, fmt.Errorf("lock movement %s: %w", id, err)
	}
	defer unlockMovement()

	// The movement key is held, so its material can't change under us.
	current, err := r.deps.Store.GetMovement(ctx, id)
	if err != nil {
		return nil, err
	}
	target := current.MaterialID
	if in.MaterialID != "" {
		target = in.MaterialID
	}

	unlock, err := LockAll(ctx, r.deps.Locker, materialKey(current.MaterialID), materialKey(target))
	if err != nil {
		return nil, fmt.Errorf("lock materials: %w", err)
	}
	defer unlock()

	now := r.deps.Clock.Now()

	var result MovementResult
	err = r.deps.Store.WithTx(ctx, func(s Store) error {
		old, err := s.LockMovement(ctx, id)
		if err != nil {
			return err
		}

		ids := []MaterialID{old.MaterialID}
		if target != old.MaterialID {
			ids = append(ids, target)
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		}
		for _, mid := range ids {
			if _, err := s.LockMaterial(ctx, mid); err != nil {
				return err
			}
		}

		if _, err := r.ledger.Apply(ctx, s, old.MaterialID, old.Quantity, old.Kind, true); err != nil {
			return fmt.Errorf("reverse movement %s: %w", old.ID, err)
		}

		material, err := s.LockMaterial(ctx, target)
		if err != nil {
			return err
		}
		if _, err := r.ledger.Preview(*material, in.Quantity, in.Kind, false); err != nil {
			return err
		}

		updated := *old
		updated.MaterialID = target
		updated.Quantity = in.Quantity
		updated.Kind = in.Kind
		updated.UpdatedAt = now
		if err := s.UpdateMovement(ctx, updated); err != nil {
			return fmt.Errorf("update movement: %w", err)
		}

		stock, err := r.ledger.Apply(ctx, s, target, updated.Quantity, updated.Kind, false)
		if err != nil {
			return err
		}
		previous := *old
		result = MovementResult{Movement: updated, Previous: &previous, Stock: stock}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.LowStock = r.deps.isLow(result.Stock)
	prev := result.Previous
	r.deps.Logger.Info("movement edited",
		"movement", id,
		"material", result.Movement.MaterialID,
		"previous_material", prev.MaterialID,
		"quantity", result.Movement.Quantity,
		"previous_quantity", prev.Quantity,
		"kind", result.Movement.Kind,
		"stock", result.Stock)

	publish(ctx, r.deps.Publisher, r.deps.Logger, TopicMovementEdited, MovementEdited{
		MovementID:       id,
		SessionID:        result.Movement.SessionID,
		MaterialID:       result.Movement.MaterialID,
		Quantity:         result.Movement.Quantity,
		Kind:             result.Movement.Kind,
		PreviousMaterial: prev.MaterialID,
		PreviousQuantity: prev.Quantity,
		PreviousKind:     prev.Kind,
		Stock:            result.Stock,
	})
	r.signalLowStock(ctx, &result)
	return &result, nil
}

func (r *Recorder) signalLowStock(ctx context.Context, res *MovementResult) {
	if !res.LowStock {
		return
	}
	r.deps.Logger.Warn("low stock",
		"material", res.Movement.MaterialID,
		"stock", res.Stock,
		"threshold", r.deps.LowStockThreshold)
	publish(ctx, r.deps.Publisher, r.deps.Logger, TopicStockLow, StockLow{
		MaterialID: res.Movement.MaterialID,
		Stock:      res.Stock,
		Threshold:  r.deps.LowStockThreshold,
	})
}
