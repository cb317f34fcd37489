package reporting

import (
	"context"

	"github.com/warp/stockroom/inventory"
)

// Source is the read surface reporting needs. Every inventory.Store
// satisfies it.
type Source interface {
	ListMaterials(ctx context.Context) ([]inventory.Material, error)
	ListSessions(ctx context.Context, filter inventory.SessionFilter) ([]inventory.Session, error)
	ListMovementRecords(ctx context.Context, filter inventory.MovementFilter) ([]inventory.MovementRecord, error)
}

// Reporter loads snapshots from a Source and runs the pure rollups.
type Reporter struct {
	src Source
}

func NewReporter(src Source) *Reporter {
	return &Reporter{src: src}
}

// snapshot runs every query of fn against one consistent state: a
// snapshot read when the source offers one, otherwise a transaction of a
// store that serializes transactions (memory, SQLite).
func (r *Reporter) snapshot(ctx context.Context, fn func(Source) error) error {
	if ss, ok := r.src.(inventory.SnapshotStore); ok {
		return ss.ReadSnapshot(ctx, func(s inventory.Store) error { return fn(s) })
	}
	if tx, ok := r.src.(inventory.TxStore); ok {
		return tx.WithTx(ctx, func(s inventory.Store) error { return fn(s) })
	}
	return fn(r.src)
}

func (r *Reporter) Monthly(ctx context.Context, q MonthlyQuery) (*MonthlyReport, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	from, to := q.Range()
	records, err := r.src.ListMovementRecords(ctx, inventory.MovementFilter{
		FacilityID: q.FacilityID,
		EmployeeID: q.EmployeeID,
		OpenedFrom: &from,
		OpenedTo:   &to,
	})
	if err != nil {
		return nil, err
	}
	report := Monthly(records, q)
	return &report, nil
}

// Overview lists sessions matching filter with their balances.
func (r *Reporter) Overview(ctx context.Context, filter inventory.SessionFilter) ([]SessionSummary, error) {
	var out []SessionSummary
	err := r.snapshot(ctx, func(src Source) error {
		sessions, err := src.ListSessions(ctx, filter)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			out = []SessionSummary{}
			return nil
		}
		ids := make([]inventory.SessionID, len(sessions))
		for i, s := range sessions {
			ids[i] = s.ID
		}
		records, err := src.ListMovementRecords(ctx, inventory.MovementFilter{SessionIDs: ids})
		if err != nil {
			return err
		}
		out = Overview(sessions, records)
		return nil
	})
	return out, err
}

func (r *Reporter) Audit(ctx context.Context) (*AuditReport, error) {
	var report AuditReport
	err := r.snapshot(ctx, func(src Source) error {
		materials, err := src.ListMaterials(ctx)
		if err != nil {
			return err
		}
		records, err := src.ListMovementRecords(ctx, inventory.MovementFilter{})
		if err != nil {
			return err
		}
		report = Audit(materials, records)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}
