package store

import (
	"context"
	"sync"
	"time"

	"cucumber_hub/internal/domain"
)

// MemoryStore хранилище в памяти процесса: годится для одного инстанса и тестов
type MemoryStore struct {
	mu         sync.Mutex
	rooms      map[string]*Record
	archiveTTL time.Duration
	now        func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore archiveTTL как у RedisStore: закрытая комната исчезает
// через этот срок после последней записи, 0 = без срока
func NewMemoryStore(archiveTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		rooms:      make(map[string]*Record),
		archiveTTL: archiveTTL,
		now:        time.Now,
	}
}

// lookup вызывается под s.mu; просроченный архив удаляется на месте
func (s *MemoryStore) lookup(roomID string) (*Record, bool) {
	rec, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	if rec.Status == domain.RoomClosed && s.archiveTTL > 0 && !s.now().Before(rec.UpdatedAt.Add(s.archiveTTL)) {
		delete(s.rooms, roomID)
		return nil, false
	}
	return rec, true
}

func (s *MemoryStore) Get(ctx context.Context, roomID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(roomID)
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(rec.RoomID); ok {
		return ErrExists
	}
	stored := rec.Clone()
	stored.UpdatedAt = s.now()
	s.rooms[rec.RoomID] = stored
	return nil
}

func (s *MemoryStore) CompareAndSet(ctx context.Context, rec *Record, expected int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.lookup(rec.RoomID)
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expected {
		return ErrVersionMismatch
	}
	stored := rec.Clone()
	stored.UpdatedAt = s.now()
	s.rooms[rec.RoomID] = stored
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
