package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"ladder-league/internal/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockRepo(t *testing.T) (*Gorm, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return NewGorm(conn), mock
}

func TestGormMarkRoundsScoredReportsRowsAffected(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "rounds" SET .* WHERE id IN \(\$\d+,\$\d+\) AND scored_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var affected int64
	err := repo.Tx(context.Background(), func(tx Tx) error {
		var err error
		affected, err = tx.MarkRoundsScored([]uint{1, 2}, time.Now())
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTxRollsBackOnCallbackError(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "rooms" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.Tx(context.Background(), func(tx Tx) error {
		if err := tx.SaveRoom(&db.Room{ID: 7, Name: "Renamed"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSaveMissingRowIsNotFound(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "teams" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Tx(context.Background(), func(tx Tx) error {
		return tx.SaveTeam(&db.Team{ID: 99, Name: "Ghosts"})
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRoomLookupMissing(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectQuery(`SELECT \* FROM "rooms" WHERE code = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name"}))

	err := repo.View(context.Background(), func(tx Tx) error {
		_, err := tx.RoomByCode("NOPE22")
		return err
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUniqueViolationIsConflict(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "participants"`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Tx(context.Background(), func(tx Tx) error {
		return tx.CreateParticipant(&db.Participant{RoomID: 1, Name: "Ada", SessionToken: "token"})
	})
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLastRoundNumber(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(round_number\), 0\) FROM "round_results" WHERE room_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4))

	var last int
	err := repo.View(context.Background(), func(tx Tx) error {
		var err error
		last, err = tx.LastRoundNumber(3)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 4, last)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOpenRoundsFiltersPlaceholders(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectQuery(`SELECT \* FROM "rounds" WHERE room_id = \$1 AND puzzle_ref <> '' AND scored_at IS NULL ORDER BY id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "puzzle_ref", "revealed"}).
			AddRow(11, 5, "easy/a.json", []byte(`[0,4]`)))

	var rounds []db.Round
	err := repo.View(context.Background(), func(tx Tx) error {
		var err error
		rounds, err = tx.OpenRounds(5)
		return err
	})
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	steps, err := rounds[0].RevealedSteps()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4}, steps)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRenameTeamWritesOnlyName(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "teams" SET "name"=\$1,"updated_at"=\$2 WHERE id = \$3`).
		WithArgs("Rungs", sqlmock.AnyArg(), 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Tx(context.Background(), func(tx Tx) error {
		return tx.RenameTeam(4, "Rungs")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSetReadyWritesOnlyReady(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "participants" SET "ready"=\$1,"updated_at"=\$2 WHERE id = \$3`).
		WithArgs(true, sqlmock.AnyArg(), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Tx(context.Background(), func(tx Tx) error {
		return tx.SetReady(9, true)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
