package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tmaritz/claimkeeper/internal/model"
	"github.com/tmaritz/claimkeeper/internal/snapshot"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func sampleState() *snapshot.State {
	return &snapshot.State{
		UserCounter: 3,
		Users:       []model.User{{ID: 3, Username: "alex", Role: model.RoleLecturer}},
	}
}

func TestStore_Save_Upsert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db, zap.NewNop())

	st := sampleState()
	data, err := json.Marshal(st)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO snapshots \(id, state, updated_at\)`).
		WithArgs(data).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), st))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Load_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db, zap.NewNop())

	want := sampleState()
	data, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT state FROM snapshots WHERE id = 1`).
		WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow(data))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Load_NoRow(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db, zap.NewNop())

	mock.ExpectQuery(`SELECT state FROM snapshots WHERE id = 1`).
		WillReturnError(pgx.ErrNoRows)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStore_Load_CorruptStateStartsEmpty(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db, zap.NewNop())

	mock.ExpectQuery(`SELECT state FROM snapshots WHERE id = 1`).
		WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow([]byte("{broken")))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, got)
}
