/*
Package reporting computes read-only rollups over movement history.

PURPOSE:
  Everything here is derived from a snapshot of inventory.MovementRecord
  values and never touches stock. Audit compares the rebuilt figures with
  the live counters.

FUNCTIONS:
  SessionBalances: per session, per material: returns - withdrawals
  Overview:        per session totals plus material balances
  Monthly:         closed entry sessions in one calendar month
  Audit:           opening + returns - withdrawals vs live stock

All functions are pure. Reporter loads the snapshot from a store.
*/
package reporting

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/stockroom/inventory"
)

// =============================================================================
// BALANCES
// =============================================================================

// MaterialBalance is the net movement of one material within some scope.
// Balance = Returns - Withdrawals.
type MaterialBalance struct {
	MaterialID   inventory.MaterialID `json:"material_id"`
	MaterialName string               `json:"material_name"`
	Withdrawals  int64                `json:"withdrawals"`
	Returns      int64                `json:"returns"`
	Balance      int64                `json:"balance"`
	CurrentStock int64                `json:"current_stock"`
}

func (b *MaterialBalance) add(r inventory.MovementRecord) {
	switch r.Kind {
	case inventory.KindWithdrawal:
		b.Withdrawals += r.Quantity
	case inventory.KindReturn:
		b.Returns += r.Quantity
	}
	b.Balance = b.Returns - b.Withdrawals
}

// byMaterial groups records per material, ordered by material name.
func byMaterial(records []inventory.MovementRecord) []MaterialBalance {
	index := make(map[inventory.MaterialID]int)
	var out []MaterialBalance
	for _, r := range records {
		i, ok := index[r.MaterialID]
		if !ok {
			i = len(out)
			index[r.MaterialID] = i
			out = append(out, MaterialBalance{
				MaterialID:   r.MaterialID,
				MaterialName: r.MaterialName,
				CurrentStock: r.CurrentStock,
			})
		}
		out[i].add(r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MaterialName != out[j].MaterialName {
			return out[i].MaterialName < out[j].MaterialName
		}
		return out[i].MaterialID < out[j].MaterialID
	})
	return out
}

// SessionBalances returns, for every session present in records, the net
// balance of each material moved during it.
func SessionBalances(records []inventory.MovementRecord) map[inventory.SessionID][]MaterialBalance {
	grouped := make(map[inventory.SessionID][]inventory.MovementRecord)
	for _, r := range records {
		grouped[r.SessionID] = append(grouped[r.SessionID], r)
	}
	out := make(map[inventory.SessionID][]MaterialBalance, len(grouped))
	for id, rs := range grouped {
		out[id] = byMaterial(rs)
	}
	return out
}

// =============================================================================
// OVERVIEW
// =============================================================================

// SessionSummary is one row of the session history.
type SessionSummary struct {
	Session      inventory.Session `json:"session"`
	EmployeeName string            `json:"employee_name,omitempty"`
	Withdrawals  int64             `json:"total_withdrawals"`
	Returns      int64             `json:"total_returns"`
	Balance      int64             `json:"balance"`
	Materials    []MaterialBalance `json:"materials"`
}

// Overview summarizes each session in the given order. Sessions without
// movements get zero totals and an empty material list.
func Overview(sessions []inventory.Session, records []inventory.MovementRecord) []SessionSummary {
	balances := SessionBalances(records)
	names := make(map[inventory.SessionID]string)
	for _, r := range records {
		names[r.SessionID] = r.EmployeeName
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		sum := SessionSummary{
			Session:      s,
			EmployeeName: names[s.ID],
			Materials:    balances[s.ID],
		}
		if sum.Materials == nil {
			sum.Materials = []MaterialBalance{}
		}
		for _, m := range sum.Materials {
			sum.Withdrawals += m.Withdrawals
			sum.Returns += m.Returns
		}
		sum.Balance = sum.Returns - sum.Withdrawals
		out = append(out, sum)
	}
	return out
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditLine compares one material's live stock with its replayed history.
type AuditLine struct {
	MaterialID   inventory.MaterialID `json:"material_id"`
	MaterialName string               `json:"material_name"`
	Opening      int64                `json:"opening_stock"`
	Returns      int64                `json:"returns"`
	Withdrawals  int64                `json:"withdrawals"`
	Expected     int64                `json:"expected"`
	Actual       int64                `json:"actual"`
	Difference   int64                `json:"difference"` // Actual - Expected
}

type AuditReport struct {
	Lines         []AuditLine `json:"lines"`
	Discrepancies int         `json:"discrepancies"`
}

func (r AuditReport) OK() bool { return r.Discrepancies == 0 }

// Audit replays every stored movement, whatever its session's state,
// against each material's opening stock.
func Audit(materials []inventory.Material, records []inventory.MovementRecord) AuditReport {
	totals := make(map[inventory.MaterialID]*MaterialBalance)
	for _, r := range records {
		b, ok := totals[r.MaterialID]
		if !ok {
			b = &MaterialBalance{}
			totals[r.MaterialID] = b
		}
		b.add(r)
	}

	report := AuditReport{Lines: make([]AuditLine, 0, len(materials))}
	for _, m := range materials {
		line := AuditLine{
			MaterialID:   m.ID,
			MaterialName: m.Name,
			Opening:      m.OpeningStock,
			Actual:       m.StockQuantity,
		}
		if b, ok := totals[m.ID]; ok {
			line.Returns = b.Returns
			line.Withdrawals = b.Withdrawals
		}
		line.Expected = line.Opening + line.Returns - line.Withdrawals
		line.Difference = line.Actual - line.Expected
		if line.Difference != 0 {
			report.Discrepancies++
		}
		report.Lines = append(report.Lines, line)
	}
	sort.Slice(report.Lines, func(i, j int) bool {
		return report.Lines[i].MaterialName < report.Lines[j].MaterialName
	})
	return report
}

// returnRate is returns / withdrawals to 4 places, zero when nothing was
// withdrawn.
func returnRate(returns, withdrawals int64) decimal.Decimal {
	if withdrawals == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(returns).Div(decimal.NewFromInt(withdrawals)).Round(4)
}
