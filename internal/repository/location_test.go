package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (LocationStore, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	return NewLocationStore(db), mock
}

func TestDeviceByCodeNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "devices"`).
		WithArgs("NO-SUCH", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}))
	mock.ExpectRollback()

	err := store.Transaction(context.Background(), func(tx LocationTx) error {
		_, err := tx.DeviceByCode("NO-SUCH")
		return err
	})
	require.ErrorIs(t, err, ErrDeviceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomByCodeNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "rooms"`).
		WithArgs("NO-SUCH", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}))
	mock.ExpectRollback()

	err := store.Transaction(context.Background(), func(tx LocationTx) error {
		_, err := tx.RoomByCode("NO-SUCH")
		return err
	})
	require.ErrorIs(t, err, ErrRoomNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("boom")
	err := store.Transaction(context.Background(), func(tx LocationTx) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsSerializationFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlstate tag", errors.New("ERROR: canceling statement (SQLSTATE 40001)"), true},
		{"text form", errors.New("pq: could not serialize access due to concurrent update"), true},
		{"unrelated", errors.New("connection refused"), false},
		{"unique violation", errors.New("duplicate key value (SQLSTATE 23505)"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSerializationFailure(tt.err))
		})
	}
}
