package sqlstore

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stockroom/inventory"
)

var recordColumns = []string{"id", "session_id", "material_id", "name", "stock_quantity", "quantity", "kind",
	"employee_id", "name", "facility_id", "kind", "status", "opened_at"}

func TestListMovementRecords_ChunksSessionIDs(t *testing.T) {
	// GIVEN: three session ids and a limit of two per query
	prev := maxSessionIDs
	maxSessionIDs = 2
	t.Cleanup(func() { maxSessionIDs = prev })

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	early := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE m.session_id IN (?, ?) ORDER BY`)).
		WithArgs("ses-1", "ses-2").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(
			"mov-2", "ses-2", "mat-1", "Cable", 6, 4, "withdrawal",
			"emp-1", "Ana", "fac-1", "entry", "closed", late))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE m.session_id IN (?) ORDER BY`)).
		WithArgs("ses-3").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(
			"mov-3", "ses-3", "mat-1", "Cable", 6, 1, "return",
			"emp-2", "Bruno", "fac-1", "entry", "open", early))

	// WHEN: listing their records
	records, err := New(db, Dialect{}).ListMovementRecords(context.Background(), inventory.MovementFilter{
		SessionIDs: []inventory.SessionID{"ses-1", "ses-2", "ses-3"},
	})

	// THEN: one query per chunk, merged in opened-at order
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, inventory.SessionID("ses-3"), records[0].SessionID)
	assert.Equal(t, inventory.SessionID("ses-2"), records[1].SessionID)
}

func TestListMovementRecords_ShortListIsOneQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE m.session_id IN (?, ?) ORDER BY`)).
		WithArgs("ses-1", "ses-2").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	records, err := New(db, Dialect{}).ListMovementRecords(context.Background(), inventory.MovementFilter{
		SessionIDs: []inventory.SessionID{"ses-1", "ses-2"},
	})
	require.NoError(t, err)
	assert.Empty(t, records)
}
