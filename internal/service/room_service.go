package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cucumber_hub/internal/domain"
	"cucumber_hub/internal/game"
	"cucumber_hub/internal/logger"
	"cucumber_hub/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	defaultStoreTimeout   = 2 * time.Second
	defaultPublishTimeout = time.Second

	MessageTypeState = "state"
)

// Publisher доставляет сообщение в канал конкретного места. Доставка best-effort.
type Publisher interface {
	Publish(ctx context.Context, roomID, seatID string, payload []byte) error
}

// MoveLogger журнал примененных действий, ошибки не возвращает
type MoveLogger interface {
	LogMove(ctx context.Context, entry *domain.MoveLog)
}

// StateMessage то, что получает каждое место после коммита
type StateMessage struct {
	Type        string            `json:"type"`
	RoomID      string            `json:"room_id"`
	GameID      string            `json:"game_id"`
	Status      domain.RoomStatus `json:"status"`
	Version     int64             `json:"version"`
	View        game.View         `json:"view"`
	Fingerprint string            `json:"fingerprint"`
}

type RoomServiceOptions struct {
	GameType       game.GameType
	StoreTimeout   time.Duration
	PublishTimeout time.Duration
	Audit          MoveLogger
	Metrics        *Metrics
}

// RoomService координатор сессии комнаты: загрузка, проверка версии, валидация,
// применение, CAS-запись и рассылка видов по местам.
//
// Состояние процесса не хранит: единственный общий изменяемый ресурс -
// пара (state, version) в Store, и меняется она только через CompareAndSet.
type RoomService struct {
	store          store.Store
	pub            Publisher
	audit          MoveLogger
	metrics        *Metrics
	gameType       game.GameType
	storeTimeout   time.Duration
	publishTimeout time.Duration
	newID          func() string
	snapshots      singleflight.Group
}

func NewRoomService(st store.Store, pub Publisher, opts RoomServiceOptions) *RoomService {
	s := &RoomService{
		store:          st,
		pub:            pub,
		audit:          opts.Audit,
		metrics:        opts.Metrics,
		gameType:       opts.GameType,
		storeTimeout:   opts.StoreTimeout,
		publishTimeout: opts.PublishTimeout,
		newID:          func() string { return uuid.New().String() },
	}
	if s.gameType == "" {
		s.gameType = game.TypeFiveCucumbers
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = defaultStoreTimeout
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = defaultPublishTimeout
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

type StartResult struct {
	RoomID  string `json:"room_id"`
	GameID  string `json:"game_id"`
	Version int64  `json:"version"`
}

// StartGame UNINITIALIZED -> ACTIVE. Места копируются и дальше не меняются.
// Пустой seed заменяется случайным.
func (s *RoomService) StartGame(ctx context.Context, roomID string, seats []string, seed string) (*StartResult, error) {
	log := logger.ForRoom(roomID)

	rules, err := game.Lookup(s.gameType)
	if err != nil {
		return nil, err
	}
	if seed == "" {
		seed = s.newID()
	}
	state, err := rules.Init(seats, seed)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	rec := &store.Record{
		RoomID:   roomID,
		GameID:   s.newID(),
		GameType: string(rules.Type()),
		Status:   domain.RoomActive,
		Seats:    append([]string{}, state.Seats...),
		Version:  0,
		State:    raw,
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err = s.store.Create(sctx, rec)
	cancel()
	if errors.Is(err, store.ErrExists) {
		return nil, ErrRoomExists
	}
	if err != nil {
		log.Error("start game: persist failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	log.Info("game started", "game_id", rec.GameID, "seats", len(rec.Seats))
	s.fanOut(ctx, rec, state, rules)
	s.logMove(ctx, rec, "", domain.MoveKindStart, nil)

	return &StartResult{RoomID: roomID, GameID: rec.GameID, Version: rec.Version}, nil
}

type MoveRequest struct {
	RoomID      string
	GameID      string
	ActorID     string
	BaseVersion int64
	Action      game.Action
}

type MoveResult struct {
	Version     int64             `json:"version"`
	Status      domain.RoomStatus `json:"status"`
	View        game.View         `json:"view"`
	Fingerprint string            `json:"fingerprint"`
}

// ProposeMove ACTIVE -> ACTIVE (или CLOSED, если игра закончилась).
// Все отказы до коммита ничего не меняют. Проигранный CAS - тот же ErrVersionConflict.
func (s *RoomService) ProposeMove(ctx context.Context, req MoveRequest) (*MoveResult, error) {
	started := time.Now()
	log := logger.ForRoom(req.RoomID).With("actor", req.ActorID, "base_version", req.BaseVersion)

	res, err := s.proposeMove(ctx, req, log)
	s.metrics.Moves.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		if errors.Is(err, ErrPersistenceUnavailable) {
			log.Error("move aborted", "error", err)
		} else {
			log.Debug("move rejected", "error", err)
		}
		return nil, err
	}
	s.metrics.CommitSeconds.Observe(time.Since(started).Seconds())
	return res, nil
}

func (s *RoomService) proposeMove(ctx context.Context, req MoveRequest, log *slog.Logger) (*MoveResult, error) {
	rec, err := s.load(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if rec.Status == domain.RoomClosed {
		return nil, ErrRoomClosed
	}
	if req.GameID != "" && req.GameID != rec.GameID {
		return nil, fmt.Errorf("%w: game %s is not current", ErrVersionConflict, req.GameID)
	}
	if rec.Version != req.BaseVersion {
		return nil, fmt.Errorf("%w: stored %d, base %d", ErrVersionConflict, rec.Version, req.BaseVersion)
	}

	rules, state, err := s.decode(rec)
	if err != nil {
		return nil, err
	}
	seat := state.SeatOf(req.ActorID)
	if seat < 0 {
		return nil, ErrNotAParticipant
	}
	if !rules.Validate(state, req.Action, seat) {
		return nil, fmt.Errorf("%w: %s by seat %d", ErrIllegalAction, req.Action.Type, seat)
	}

	next := rules.Apply(state, req.Action)
	raw, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	updated := rec.Clone()
	updated.Version = rec.Version + 1
	updated.State = raw
	if next.Finished {
		updated.Status = domain.RoomClosed
	}

	// вид инициатора считается до коммита: после записи отказывать уже нельзя
	own, err := buildMessage(updated, rules.Project(next, req.ActorID))
	if err != nil {
		return nil, fmt.Errorf("build view: %w", err)
	}

	if err := s.commit(ctx, updated, rec.Version); err != nil {
		return nil, err
	}
	log.Info("move committed", "version", updated.Version, "seat", seat, "action", req.Action.Type, "status", updated.Status)

	s.fanOut(ctx, updated, next, rules)

	actionJSON, err := json.Marshal(req.Action)
	if err != nil {
		log.Warn("encode action for move log", "error", err)
	}
	s.logMove(ctx, updated, req.ActorID, domain.MoveKindMove, actionJSON)

	return &MoveResult{
		Version:     updated.Version,
		Status:      updated.Status,
		View:        own.View,
		Fingerprint: own.Fingerprint,
	}, nil
}

type CloseResult struct {
	Version int64 `json:"version"`
}

// CloseRoom ACTIVE -> CLOSED по запросу участника. Версия тоже растет на 1.
func (s *RoomService) CloseRoom(ctx context.Context, roomID, actorID string) (*CloseResult, error) {
	log := logger.ForRoom(roomID)

	rec, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rec.Status == domain.RoomClosed {
		return nil, ErrRoomClosed
	}
	rules, state, err := s.decode(rec)
	if err != nil {
		return nil, err
	}
	if state.SeatOf(actorID) < 0 {
		return nil, ErrNotAParticipant
	}

	updated := rec.Clone()
	updated.Version = rec.Version + 1
	updated.Status = domain.RoomClosed
	if err := s.commit(ctx, updated, rec.Version); err != nil {
		return nil, err
	}
	log.Info("room closed", "version", updated.Version, "by", actorID)

	s.fanOut(ctx, updated, state, rules)
	s.logMove(ctx, updated, actorID, domain.MoveKindClose, nil)
	return &CloseResult{Version: updated.Version}, nil
}

// Snapshot путь догоняния для переподключившегося места: текущие версия, вид и отпечаток.
// Параллельные запросы по одной комнате делят одно чтение из Store.
func (s *RoomService) Snapshot(ctx context.Context, roomID, viewerID string) (*StateMessage, error) {
	// общее чтение не зависит от отмены первого из ждущих; load ограничен storeTimeout
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.snapshots.Do(roomID, func() (interface{}, error) {
		return s.load(shared, roomID)
	})
	if err != nil {
		return nil, err
	}
	rec := v.(*store.Record)

	rules, state, err := s.decode(rec)
	if err != nil {
		return nil, err
	}
	if state.SeatOf(viewerID) < 0 {
		return nil, ErrNotAParticipant
	}
	msg, err := buildMessage(rec, rules.Project(state, viewerID))
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *RoomService) load(ctx context.Context, roomID string) (*store.Record, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, err := s.store.Get(sctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return rec, nil
}

// commit CAS по версии. Таймаут или обрыв - не успех: публиковать нечего.
func (s *RoomService) commit(ctx context.Context, rec *store.Record, expected int64) error {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	err := s.store.CompareAndSet(sctx, rec, expected)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrVersionMismatch):
		return fmt.Errorf("%w: lost compare-and-set at %d", ErrVersionConflict, expected)
	case errors.Is(err, store.ErrNotFound):
		return ErrRoomNotFound
	default:
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
}

func (s *RoomService) decode(rec *store.Record) (game.Rules, *game.State, error) {
	rules, err := game.Lookup(game.GameType(rec.GameType))
	if err != nil {
		return nil, nil, err
	}
	var state game.State
	if err := json.Unmarshal(rec.State, &state); err != nil {
		return nil, nil, fmt.Errorf("decode room %s state: %w", rec.RoomID, err)
	}
	return rules, &state, nil
}

// fanOut по задаче на место: проекция и отпечаток считаются сразу,
// доставка параллельно, каждая со своим таймаутом. Ошибка одного места не
// мешает остальным и не отменяет уже закоммиченный переход.
func (s *RoomService) fanOut(ctx context.Context, rec *store.Record, state *game.State, rules game.Rules) {
	log := logger.ForRoom(rec.RoomID)

	// отмена запроса клиентом не должна обрывать рассылку закоммиченного состояния
	base := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for _, seatID := range rec.Seats {
		msg, err := buildMessage(rec, rules.Project(state, seatID))
		if err != nil {
			log.Error("build view failed", "seat", seatID, "error", err)
			continue
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			log.Error("encode view failed", "seat", seatID, "error", err)
			continue
		}

		wg.Add(1)
		go func(seatID string, payload []byte) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(base, s.publishTimeout)
			defer cancel()
			if err := s.pub.Publish(pctx, rec.RoomID, seatID, payload); err != nil {
				s.metrics.PublishFailures.Inc()
				log.Warn("publish view", "seat", seatID, "version", rec.Version,
					"error", fmt.Errorf("%w: %v", ErrPublishFailed, err))
			}
		}(seatID, payload)
	}
	wg.Wait()
}

func (s *RoomService) logMove(ctx context.Context, rec *store.Record, actorID, kind string, action json.RawMessage) {
	if s.audit == nil {
		return
	}
	s.audit.LogMove(context.WithoutCancel(ctx), &domain.MoveLog{
		RoomID:  rec.RoomID,
		GameID:  rec.GameID,
		ActorID: actorID,
		Version: rec.Version,
		Kind:    kind,
		Action:  action,
	})
}

func buildMessage(rec *store.Record, view game.View) (*StateMessage, error) {
	fp, err := game.Fingerprint(view)
	if err != nil {
		return nil, err
	}
	return &StateMessage{
		Type:        MessageTypeState,
		RoomID:      rec.RoomID,
		GameID:      rec.GameID,
		Status:      rec.Status,
		Version:     rec.Version,
		View:        view,
		Fingerprint: fp,
	}, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultCommitted
	case errors.Is(err, ErrVersionConflict):
		return resultConflict
	case errors.Is(err, ErrIllegalAction):
		return resultIllegal
	case errors.Is(err, ErrNotAParticipant):
		return resultNotSeated
	case errors.Is(err, ErrRoomClosed):
		return resultClosed
	case errors.Is(err, ErrRoomNotFound):
		return resultNotFound
	case errors.Is(err, ErrPersistenceUnavailable):
		return resultUnavailable
	default:
		return resultError
	}
}
