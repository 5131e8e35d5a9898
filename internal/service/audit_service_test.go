package service

import (
	"context"
	"errors"
	"testing"

	"cucumber_hub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMoveStore struct {
	created   []*domain.MoveLog
	lastLimit int
	err       error
}

func (f *fakeMoveStore) Create(ctx context.Context, entry *domain.MoveLog) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	f.created = append(f.created, entry)
	return nil
}

func (f *fakeMoveStore) GetByRoom(_ context.Context, roomID string, limit int) ([]*domain.MoveLog, error) {
	f.lastLimit = limit
	var out []*domain.MoveLog
	for _, e := range f.created {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestAuditService_LogMove(t *testing.T) {
	repo := &fakeMoveStore{}
	svc := &AuditService{repo: repo}

	svc.LogMove(context.Background(), &domain.MoveLog{RoomID: "r1", Version: 1, Kind: domain.MoveKindMove})
	svc.LogMove(context.Background(), &domain.MoveLog{RoomID: "r2", Version: 0, Kind: domain.MoveKindStart})

	moves, err := svc.RoomMoves(context.Background(), "r1", 0)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.EqualValues(t, 1, moves[0].Version)
	assert.Equal(t, 100, repo.lastLimit)

	_, err = svc.RoomMoves(context.Background(), "r1", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, repo.lastLimit)
}

func TestAuditService_LogMoveSwallowsErrors(t *testing.T) {
	svc := &AuditService{repo: &fakeMoveStore{err: errors.New("db down")}}
	assert.NotPanics(t, func() {
		svc.LogMove(context.Background(), &domain.MoveLog{RoomID: "r1"})
	})
}
