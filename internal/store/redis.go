package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cucumber_hub/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	fieldGameID    = "game_id"
	fieldGameType  = "game_type"
	fieldStatus    = "status"
	fieldSeats     = "seats"
	fieldVersion   = "version"
	fieldState     = "state"
	fieldUpdatedAt = "updated_at"
)

// RoomKey ключ хеша комнаты в Redis
func RoomKey(roomID string) string {
	return "room:" + roomID
}

// RedisStore хранит каждую комнату в хеше room:{id}.
// CompareAndSet сделан на WATCH + MULTI/EXEC: если ключ изменился между чтением
// версии и EXEC, транзакция не применяется и возвращается ErrVersionMismatch.
type RedisStore struct {
	rdb        redis.UniversalClient
	archiveTTL time.Duration
	now        func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore archiveTTL - сколько живет закрытая комната, 0 = без срока
func NewRedisStore(rdb redis.UniversalClient, archiveTTL time.Duration) *RedisStore {
	return &RedisStore{
		rdb:        rdb,
		archiveTTL: archiveTTL,
		now:        time.Now,
	}
}

func (s *RedisStore) Get(ctx context.Context, roomID string) (*Record, error) {
	vals, err := s.rdb.HGetAll(ctx, RoomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	return decodeRecord(roomID, vals)
}

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	key := RoomKey(rec.RoomID)
	fields, err := s.encodeRecord(rec)
	if err != nil {
		return err
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrExists
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, fields)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		// комнату создали параллельно
		return ErrExists
	}
	return err
}

func (s *RedisStore) CompareAndSet(ctx context.Context, rec *Record, expected int64) error {
	key := RoomKey(rec.RoomID)
	fields, err := s.encodeRecord(rec)
	if err != nil {
		return err
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if cur != expected {
			return ErrVersionMismatch
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, fields)
			if rec.Status == domain.RoomClosed && s.archiveTTL > 0 {
				p.Expire(ctx, key, s.archiveTTL)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionMismatch
	}
	return err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) encodeRecord(rec *Record) (map[string]interface{}, error) {
	seats, err := json.Marshal(rec.Seats)
	if err != nil {
		return nil, fmt.Errorf("encode seats: %w", err)
	}
	return map[string]interface{}{
		fieldGameID:    rec.GameID,
		fieldGameType:  rec.GameType,
		fieldStatus:    string(rec.Status),
		fieldSeats:     string(seats),
		fieldVersion:   rec.Version,
		fieldState:     string(rec.State),
		fieldUpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	}, nil
}

func decodeRecord(roomID string, vals map[string]string) (*Record, error) {
	version, err := strconv.ParseInt(vals[fieldVersion], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode room %s version: %w", roomID, err)
	}
	var seats []string
	if err := json.Unmarshal([]byte(vals[fieldSeats]), &seats); err != nil {
		return nil, fmt.Errorf("decode room %s seats: %w", roomID, err)
	}
	status := domain.RoomStatus(vals[fieldStatus])
	if !status.Valid() {
		return nil, fmt.Errorf("decode room %s: unknown status %q", roomID, status)
	}
	updatedAt, _ := time.Parse(time.RFC3339Nano, vals[fieldUpdatedAt])

	return &Record{
		RoomID:    roomID,
		GameID:    vals[fieldGameID],
		GameType:  vals[fieldGameType],
		Status:    status,
		Seats:     seats,
		Version:   version,
		State:     json.RawMessage(vals[fieldState]),
		UpdatedAt: updatedAt,
	}, nil
}
