/*
session.go - Access Session state machine

STATES:
  open (initial) --Close--> closed (terminal). There is no reopen.

OPEN:
  - only entry sessions can be opened; exit is reserved
  - justification "other" requires a non-blank note
  - at most one open session per employee, enforced by:
      1. keyed lock employee:<id> around check + insert
      2. FindOpenSession inside the transaction
      3. the store's uniqueness constraint (CreateSession)

CLOSE:
  - ErrAlreadyClosed if already closed (no state change)
  - ErrNoMovements if the session has no movements
  - sets status, closed-at, active=false; closed-by only if unset
*/
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/stockroom/idgen"
)

// OpenSession is the input to Sessions.Open. An empty Kind means entry.
type OpenSession struct {
	EmployeeID    EmployeeID
	AuthorizerID  AuthorizerID
	FacilityID    FacilityID
	Kind          SessionKind
	Justification Justification
	Note          string
}

func (in OpenSession) validate() error {
	if in.EmployeeID == "" {
		return invalid("employee_id", "is required")
	}
	if in.AuthorizerID == "" {
		return invalid("authorizer_id", "is required")
	}
	if in.FacilityID == "" {
		return invalid("facility_id", "is required")
	}
	if in.Kind != SessionEntry {
		return invalid("kind", "only %q sessions can be opened, got %q", SessionEntry, in.Kind)
	}
	if !in.Justification.Valid() {
		return invalid("justification", "unknown justification %q", in.Justification)
	}
	if in.Justification == JustificationOther && strings.TrimSpace(in.Note) == "" {
		return invalid("note", "is required when justification is %q", JustificationOther)
	}
	return nil
}

// Sessions drives the access session lifecycle.
type Sessions struct {
	deps Deps
}

func NewSessions(deps Deps) *Sessions {
	return &Sessions{deps: deps.withDefaults()}
}

// Open starts a visit for an employee who has no open session.
func (m *Sessions) Open(ctx context.Context, in OpenSession) (*Session, error) {
	if in.Kind == "" {
		in.Kind = SessionEntry
	}
	in.Note = strings.TrimSpace(in.Note)
	if err := in.validate(); err != nil {
		return nil, err
	}

	store := m.deps.Store
	if _, err := store.GetEmployee(ctx, in.EmployeeID); err != nil {
		return nil, err
	}
	if _, err := store.GetAuthorizer(ctx, in.AuthorizerID); err != nil {
		return nil, err
	}
	if _, err := store.GetFacility(ctx, in.FacilityID); err != nil {
		return nil, err
	}

	unlock, err := m.deps.Locker.Lock(ctx, employeeKey(in.EmployeeID))
	if err != nil {
		return nil, fmt.Errorf("lock employee %s: %w", in.EmployeeID, err)
	}
	defer unlock()

	id, err := idgen.New(idgen.PrefixSession)
	if err != nil {
		return nil, err
	}

	session := Session{
		ID:            SessionID(id),
		EmployeeID:    in.EmployeeID,
		AuthorizerID:  in.AuthorizerID,
		FacilityID:    in.FacilityID,
		Kind:          in.Kind,
		Justification: in.Justification,
		Note:          in.Note,
		OpenedAt:      m.deps.Clock.Now(),
		Status:        StatusOpen,
		Active:        true,
	}

	err = store.WithTx(ctx, func(s Store) error {
		existing, err := s.FindOpenSession(ctx, in.EmployeeID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &DuplicateOpenSessionError{EmployeeID: in.EmployeeID, ExistingSessionID: existing.ID}
		}
		return s.CreateSession(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	m.deps.Logger.Info("session opened",
		"session", session.ID,
		"employee", session.EmployeeID,
		"facility", session.FacilityID,
		"justification", session.Justification)
	publish(ctx, m.deps.Publisher, m.deps.Logger, TopicSessionOpened, SessionOpened{
		SessionID:     session.ID,
		EmployeeID:    session.EmployeeID,
		FacilityID:    session.FacilityID,
		Justification: session.Justification,
		OpenedAt:      session.OpenedAt,
	})
	return &session, nil
}

// Close ends an open session that has at least one movement. A nil when
// means now. closer is recorded only if the session has no closer yet.
func (m *Sessions) Close(ctx context.Context, id SessionID, closer string, when *time.Time) (*Session, error) {
	var closed Session
	err := m.deps.Store.WithTx(ctx, func(s Store) error {
		session, err := s.LockSession(ctx, id)
		if err != nil {
			return err
		}
		if !session.IsOpen() {
			return fmt.Errorf("close session %s: %w", id, ErrAlreadyClosed)
		}

		n, err := s.CountMovements(ctx, id)
		if err != nil {
			return fmt.Errorf("count movements: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("close session %s: %w", id, ErrNoMovements)
		}

		closedAt := m.deps.Clock.Now()
		if when != nil {
			closedAt = *when
		}
		session.Status = StatusClosed
		session.ClosedAt = &closedAt
		session.Active = false
		if session.ClosedBy == "" {
			session.ClosedBy = closer
		}
		if err := s.UpdateSession(ctx, *session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		closed = *session
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.deps.Logger.Info("session closed", "session", closed.ID, "closed_by", closed.ClosedBy)
	publish(ctx, m.deps.Publisher, m.deps.Logger, TopicSessionClosed, SessionClosed{
		SessionID:  closed.ID,
		EmployeeID: closed.EmployeeID,
		ClosedAt:   *closed.ClosedAt,
		ClosedBy:   closed.ClosedBy,
	})
	return &closed, nil
}

func (m *Sessions) Get(ctx context.Context, id SessionID) (*Session, error) {
	return m.deps.Store.GetSession(ctx, id)
}

// List returns sessions matching filter, newest first.
func (m *Sessions) List(ctx context.Context, filter SessionFilter) ([]Session, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return m.deps.Store.ListSessions(ctx, filter)
}
