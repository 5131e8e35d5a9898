package repository

import (
	"context"

	"cucumber_hub/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MoveSchema таблица журнала ходов, применяется при старте
const MoveSchema = `
CREATE TABLE IF NOT EXISTS move_log (
	id         BIGSERIAL PRIMARY KEY,
	room_id    TEXT        NOT NULL,
	game_id    TEXT        NOT NULL,
	actor_id   TEXT        NOT NULL DEFAULT '',
	version    BIGINT      NOT NULL,
	kind       TEXT        NOT NULL,
	action     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS move_log_room_idx ON move_log (room_id, version DESC);
`

// отвечает за операции с журналом ходов
type MoveRepository struct {
	db *pgxpool.Pool
}

func NewMoveRepository(db *pgxpool.Pool) *MoveRepository {
	return &MoveRepository{db: db}
}

// Migrate создает таблицу, если ее нет
func (r *MoveRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, MoveSchema)
	return err
}

// создает новую запись журнала
func (r *MoveRepository) Create(ctx context.Context, entry *domain.MoveLog) error {
	var action any
	if len(entry.Action) > 0 {
		action = string(entry.Action)
	}

	return r.db.QueryRow(ctx, `
		INSERT INTO move_log (room_id, game_id, actor_id, version, kind, action)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, entry.RoomID, entry.GameID, entry.ActorID, entry.Version, entry.Kind, action).Scan(&entry.ID, &entry.CreatedAt)
}

// возвращает последние записи журнала комнаты, новые первыми
func (r *MoveRepository) GetByRoom(ctx context.Context, roomID string, limit int) ([]*domain.MoveLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, room_id, game_id, actor_id, version, kind, action, created_at
		FROM move_log
		WHERE room_id = $1
		ORDER BY version DESC, id DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMoveLogs(rows)
}

// преобразует строки из БД в структуры MoveLog
func scanMoveLogs(rows pgx.Rows) ([]*domain.MoveLog, error) {
	var logs []*domain.MoveLog
	for rows.Next() {
		var entry domain.MoveLog
		var action []byte
		if err := rows.Scan(&entry.ID, &entry.RoomID, &entry.GameID, &entry.ActorID, &entry.Version, &entry.Kind, &action, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = action
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
