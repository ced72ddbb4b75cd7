package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sharetube/party/internal/service/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls int
	res   room.SweepResult
	err   error
}

func (f *fakeSweeper) Sweep(context.Context) (room.SweepResult, error) {
	f.calls++
	return f.res, f.err
}

func newTestWorker(sweeper iSweeper) *Worker {
	return New(sweeper, &Config{
		Redis:         asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		SweepInterval: time.Minute,
	}, slog.Default())
}

func TestRoomSweepTask(t *testing.T) {
	sweeper := &fakeSweeper{res: room.SweepResult{Pruned: 2, Closed: 1}}
	w := newTestWorker(sweeper)

	err := w.mux().ProcessTask(context.Background(), NewRoomSweepTask())
	require.NoError(t, err)
	assert.Equal(t, 1, sweeper.calls)
}

func TestRoomSweepTaskError(t *testing.T) {
	boom := errors.New("boom")
	sweeper := &fakeSweeper{err: boom}
	w := newTestWorker(sweeper)

	err := w.mux().ProcessTask(context.Background(), NewRoomSweepTask())
	assert.ErrorIs(t, err, boom)
}

func TestUnknownTask(t *testing.T) {
	w := newTestWorker(&fakeSweeper{})

	err := w.mux().ProcessTask(context.Background(), asynq.NewTask("room:unknown", nil))
	assert.Error(t, err)
}
