/*
Package inventory provides the warehouse stock ledger and access-session core.

PURPOSE:
  Records when an employee enters a storage facility (an access session),
  which materials are withdrawn or returned during that visit (movements),
  and keeps each material's running stock consistent with every stored
  movement, including movements edited after the fact.

KEY CONCEPTS IN THIS FILE (types.go):
  - Material: a stocked item with a non-negative integer quantity
  - Session: one employee's open-to-close visit to one facility
  - Movement: one withdrawal or return of a quantity of one material
  - MovementRecord: read-only join used by reporting

DESIGN PRINCIPLES:
  1. Single writer: stock changes only through StockLedger.Apply
  2. Replace, never overwrite: an edit is undo(old) then apply(new)
  3. Atomicity: every ledger mutation runs inside TxStore.WithTx
  4. Typed IDs: a MaterialID can't be passed where a SessionID is expected

SEE ALSO:
  - ledger.go: Stock Ledger
  - recorder.go: Movement Recorder
  - session.go: Access Session state machine
  - store.go: persistence contracts
*/
package inventory

import (
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MaterialID string
type EmployeeID string
type AuthorizerID string
type FacilityID string
type SessionID string
type MovementID string

// =============================================================================
// REFERENCE DATA
// =============================================================================

type Employee struct {
	ID   EmployeeID
	Name string
}

type Authorizer struct {
	ID   AuthorizerID
	Name string
}

type Facility struct {
	ID       FacilityID
	Name     string
	Location string
}

// Material is a stocked item.
//
// StockQuantity is never set directly after creation; it changes only
// through StockLedger.Apply. OpeningStock is the quantity the material was
// registered with and is the baseline for audits.
type Material struct {
	ID            MaterialID
	Name          string
	StockQuantity int64
	OpeningStock  int64
}

// =============================================================================
// MOVEMENT
// =============================================================================

type MovementKind string

const (
	KindWithdrawal MovementKind = "withdrawal"
	KindReturn     MovementKind = "return"
)

func (k MovementKind) Valid() bool {
	return k == KindWithdrawal || k == KindReturn
}

// Delta is the signed stock effect of moving quantity units of this kind.
func (k MovementKind) Delta(quantity int64) int64 {
	if k == KindReturn {
		return quantity
	}
	return -quantity
}

type Movement struct {
	ID         MovementID
	SessionID  SessionID
	MaterialID MaterialID
	Quantity   int64
	Kind       MovementKind
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// ACCESS SESSION
// =============================================================================

type SessionKind string

const (
	SessionEntry SessionKind = "entry"
	SessionExit  SessionKind = "exit" // reserved, not creatable
)

type SessionStatus string

const (
	StatusOpen   SessionStatus = "open"
	StatusClosed SessionStatus = "closed"
)

func (s SessionStatus) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Justification is the standard reason code for a visit.
type Justification string

const (
	JustificationFieldWithdrawal Justification = "field_withdrawal"
	JustificationStockReturn     Justification = "stock_return"
	JustificationStockCheck      Justification = "stock_check"
	JustificationMaintenance     Justification = "maintenance"
	JustificationInspection      Justification = "inspection"
	JustificationOther           Justification = "other" // requires a note
)

var justifications = map[Justification]bool{
	JustificationFieldWithdrawal: true,
	JustificationStockReturn:     true,
	JustificationStockCheck:      true,
	JustificationMaintenance:     true,
	JustificationInspection:      true,
	JustificationOther:           true,
}

func (j Justification) Valid() bool { return justifications[j] }

type Session struct {
	ID            SessionID
	EmployeeID    EmployeeID
	AuthorizerID  AuthorizerID
	FacilityID    FacilityID
	Kind          SessionKind
	Justification Justification
	Note          string
	OpenedAt      time.Time
	ClosedAt      *time.Time
	ClosedBy      string
	Status        SessionStatus
	Active        bool
}

func (s *Session) IsOpen() bool { return s.Status == StatusOpen }

// SessionFilter narrows session listings. Zero values mean "any".
// From and To compare against the calendar date of OpenedAt, inclusive.
type SessionFilter struct {
	Status       SessionStatus
	EmployeeName string // case-insensitive substring
	From         *time.Time
	To           *time.Time
}

func (f SessionFilter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return invalid("status", "must be %q or %q, got %q", StatusOpen, StatusClosed, f.Status)
	}
	if f.From != nil && f.To != nil && DateOf(*f.To).Before(DateOf(*f.From)) {
		return invalid("to", "is before from")
	}
	return nil
}

// Matches applies the filter in memory. employeeName is the session's
// employee name, resolved by the caller.
func (f SessionFilter) Matches(s Session, employeeName string) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.EmployeeName != "" &&
		!strings.Contains(strings.ToLower(employeeName), strings.ToLower(f.EmployeeName)) {
		return false
	}
	day := DateOf(s.OpenedAt)
	if f.From != nil && day.Before(DateOf(*f.From)) {
		return false
	}
	if f.To != nil && day.After(DateOf(*f.To)) {
		return false
	}
	return true
}

// =============================================================================
// MOVEMENT RECORD - read model for reporting
// =============================================================================

// MovementRecord joins a movement with the session and material facts that
// reporting needs. It is a snapshot; nothing writes through it.
type MovementRecord struct {
	MovementID    MovementID
	SessionID     SessionID
	MaterialID    MaterialID
	MaterialName  string
	CurrentStock  int64
	Quantity      int64
	Kind          MovementKind
	EmployeeID    EmployeeID
	EmployeeName  string
	FacilityID    FacilityID
	SessionKind   SessionKind
	SessionStatus SessionStatus
	OpenedAt      time.Time
}

// MovementFilter narrows the records a store returns. Zero values mean "any".
type MovementFilter struct {
	SessionIDs []SessionID
	FacilityID FacilityID
	EmployeeID EmployeeID
	OpenedFrom *time.Time // inclusive
	OpenedTo   *time.Time // exclusive
}

func (f MovementFilter) Matches(r MovementRecord) bool {
	if len(f.SessionIDs) > 0 {
		found := false
		for _, id := range f.SessionIDs {
			if id == r.SessionID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.FacilityID != "" && r.FacilityID != f.FacilityID {
		return false
	}
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.OpenedFrom != nil && r.OpenedAt.Before(*f.OpenedFrom) {
		return false
	}
	if f.OpenedTo != nil && !r.OpenedAt.Before(*f.OpenedTo) {
		return false
	}
	return true
}

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
