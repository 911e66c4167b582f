package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockSpaceService(t *testing.T) (*SpaceService, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	return NewSpaceService(db), mock
}

func TestSeedDemoRoomsReturnsIDs(t *testing.T) {
	// The upsert must carry real primary keys back whether the room was
	// inserted or already existed and got its corners reset.
	svc, mock := newMockSpaceService(t)

	mock.ExpectBegin()
	for i := range demoRooms {
		mock.ExpectQuery(`INSERT INTO "rooms" .* ON CONFLICT .* RETURNING`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint(100 + i)))
	}
	mock.ExpectCommit()

	rooms, err := svc.SeedDemoRooms(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rooms, len(demoRooms))

	for i, room := range rooms {
		assert.Equal(t, uint(100+i), room.ID, "room %s", room.Code)
		assert.Equal(t, uint(1), room.SpaceID)
		assert.Equal(t, demoRooms[i].Code, room.Code)
		assert.NotEmpty(t, room.Corners)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDemoRoomsRollsBackOnError(t *testing.T) {
	svc, mock := newMockSpaceService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "rooms"`).
		WillReturnError(gorm.ErrInvalidDB)
	mock.ExpectRollback()

	_, err := svc.SeedDemoRooms(context.Background(), 1)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
