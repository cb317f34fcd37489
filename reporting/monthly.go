package reporting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/stockroom/inventory"
)

// MonthlyQuery selects one calendar month (UTC) with optional filters.
type MonthlyQuery struct {
	Year       int
	Month      time.Month
	FacilityID inventory.FacilityID
	EmployeeID inventory.EmployeeID
}

func (q MonthlyQuery) Validate() error {
	if q.Year < 1 || q.Year > 9999 {
		return &inventory.ValidationError{Field: "year", Message: fmt.Sprintf("out of range: %d", q.Year)}
	}
	if q.Month < time.January || q.Month > time.December {
		return &inventory.ValidationError{Field: "month", Message: fmt.Sprintf("must be 1-12, got %d", q.Month)}
	}
	return nil
}

// Range returns [first instant of the month, first instant of the next).
func (q MonthlyQuery) Range() (time.Time, time.Time) {
	from := time.Date(q.Year, q.Month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func (q MonthlyQuery) matches(r inventory.MovementRecord) bool {
	opened := r.OpenedAt.UTC()
	if opened.Year() != q.Year || opened.Month() != q.Month {
		return false
	}
	if q.FacilityID != "" && r.FacilityID != q.FacilityID {
		return false
	}
	if q.EmployeeID != "" && r.EmployeeID != q.EmployeeID {
		return false
	}
	return true
}

// Totals aggregates one set of movements.
type Totals struct {
	Movements   int             `json:"movements"`
	Withdrawals int64           `json:"total_withdrawals"`
	Returns     int64           `json:"total_returns"`
	Balance     int64           `json:"balance"`
	ReturnRate  decimal.Decimal `json:"return_rate"`
}

func (t *Totals) add(r inventory.MovementRecord) {
	t.Movements++
	switch r.Kind {
	case inventory.KindWithdrawal:
		t.Withdrawals += r.Quantity
	case inventory.KindReturn:
		t.Returns += r.Quantity
	}
	t.Balance = t.Returns - t.Withdrawals
	t.ReturnRate = returnRate(t.Returns, t.Withdrawals)
}

// KindSummary is the totals block for one session kind.
type KindSummary struct {
	Kind inventory.SessionKind `json:"kind"`
	Totals
}

type MonthlyReport struct {
	Year       int                  `json:"year"`
	Month      time.Month           `json:"month"`
	FacilityID inventory.FacilityID `json:"facility_id,omitempty"`
	EmployeeID inventory.EmployeeID `json:"employee_id,omitempty"`

	// Totals and Materials cover closed entry sessions only.
	Totals    Totals            `json:"totals"`
	Materials []MaterialBalance `json:"materials"`
	// Entry is the per-kind block for entry sessions.
	Entry KindSummary `json:"entry"`

	Movements []inventory.MovementRecord `json:"-"`
}

// Monthly aggregates movements of closed entry sessions opened in the
// queried month. Movements of open sessions are excluded even though they
// already affected stock.
func Monthly(records []inventory.MovementRecord, q MonthlyQuery) MonthlyReport {
	report := MonthlyReport{
		Year:       q.Year,
		Month:      q.Month,
		FacilityID: q.FacilityID,
		EmployeeID: q.EmployeeID,
		Entry:      KindSummary{Kind: inventory.SessionEntry},
		Totals:     Totals{ReturnRate: decimal.Zero},
	}
	report.Entry.ReturnRate = decimal.Zero

	var included []inventory.MovementRecord
	for _, r := range records {
		if r.SessionStatus != inventory.StatusClosed || r.SessionKind != inventory.SessionEntry {
			continue
		}
		if !q.matches(r) {
			continue
		}
		included = append(included, r)
		report.Totals.add(r)
		report.Entry.add(r)
	}

	report.Movements = included
	report.Materials = byMaterial(included)
	if report.Materials == nil {
		report.Materials = []MaterialBalance{}
	}
	return report
}
