package service

import (
	"errors"

	"cucumber_hub/internal/game"
)

// Ошибки координатора. Проверять через errors.Is.
var (
	ErrInvalidSeatCount = game.ErrInvalidSeatCount
	ErrIllegalAction    = game.ErrIllegalAction

	ErrNotAParticipant        = errors.New("not a participant")
	ErrVersionConflict        = errors.New("version conflict")
	ErrRoomClosed             = errors.New("room closed")
	ErrRoomNotFound           = errors.New("room not found")
	ErrRoomExists             = errors.New("room already exists")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// не возвращается вызывающему: только логируется и считается в метриках
	ErrPublishFailed = errors.New("publish failed")
)

// Retryable можно ли повторить запрос (после перечитывания состояния)
func Retryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrPersistenceUnavailable)
}
