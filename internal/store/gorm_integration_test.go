package store

import (
	"context"
	"testing"
	"time"

	"ladder-league/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ladder"),
		postgres.WithUsername("ladder"),
		postgres.WithPassword("ladder"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("skipping test; postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn, nil))
	return conn
}

func TestGormRoundLifecycleAgainstPostgres(t *testing.T) {
	repo := NewGorm(startPostgres(t))
	ctx := context.Background()
	room, team, round := seedRoom(t, repo)

	require.NoError(t, repo.Tx(ctx, func(tx Tx) error {
		p := db.Participant{RoomID: room.ID, TeamID: &team.ID, Name: "Ada", SessionToken: "session-ada", Ready: true}
		if err := tx.CreateParticipant(&p); err != nil {
			return err
		}
		return tx.CreateGuess(&db.Guess{TeamID: team.ID, ParticipantID: &p.ID, RoundID: round.ID, StepIndex: 1, Text: "CORD"})
	}))

	err := repo.Tx(ctx, func(tx Tx) error {
		return tx.CreateParticipant(&db.Participant{RoomID: room.ID, Name: "Ada", SessionToken: "session-other"})
	})
	require.ErrorIs(t, err, ErrConflict)

	var first, second int64
	require.NoError(t, repo.Tx(ctx, func(tx Tx) error {
		var err error
		first, err = tx.MarkRoundsScored([]uint{round.ID}, time.Now())
		return err
	}))
	require.NoError(t, repo.Tx(ctx, func(tx Tx) error {
		var err error
		second, err = tx.MarkRoundsScored([]uint{round.ID}, time.Now())
		return err
	}))
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(0), second)

	require.NoError(t, repo.Tx(ctx, func(tx Tx) error {
		if err := tx.ResetReady(room.ID); err != nil {
			return err
		}
		return tx.DeleteRoom(room.ID)
	}))
	require.NoError(t, repo.View(ctx, func(tx Tx) error {
		_, err := tx.Room(room.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		count, err := tx.CountGuesses(team.ID, round.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
		return nil
	}))
}
