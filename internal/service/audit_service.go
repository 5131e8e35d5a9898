package service

import (
	"context"
	"time"

	"cucumber_hub/internal/domain"
	"cucumber_hub/internal/logger"
	"cucumber_hub/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

const auditTimeout = 3 * time.Second

type moveStore interface {
	Create(ctx context.Context, entry *domain.MoveLog) error
	GetByRoom(ctx context.Context, roomID string, limit int) ([]*domain.MoveLog, error)
}

// AuditService пишет журнал примененных ходов в Postgres
type AuditService struct {
	repo moveStore
}

var _ MoveLogger = (*AuditService)(nil)

// создает новый сервис аудита
func NewAuditService(db *pgxpool.Pool) *AuditService {
	return &AuditService{
		repo: repository.NewMoveRepository(db),
	}
}

// LogMove ошибки записи только логируются: коммит хода уже состоялся
func (s *AuditService) LogMove(ctx context.Context, entry *domain.MoveLog) {
	ctx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()

	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("не удалось записать ход в журнал", "error", err,
			"room_id", entry.RoomID, "version", entry.Version, "kind", entry.Kind)
	}
}

// RoomMoves последние записи журнала по комнате
func (s *AuditService) RoomMoves(ctx context.Context, roomID string, limit int) ([]*domain.MoveLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.GetByRoom(ctx, roomID, limit)
}
