package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

type GameType string

const (
	TypeFiveCucumbers GameType = "five_cucumbers"
)

var (
	ErrInvalidSeatCount = errors.New("invalid seat count")
	ErrIllegalAction    = errors.New("illegal action")
	ErrUnknownGame      = errors.New("unknown game type")
)

// Rules - подключаемая функция переходов состояния.
// Все методы чистые: не трогают входной State и не зависят от глобального состояния.
type Rules interface {
	Type() GameType
	MinSeats() int
	MaxSeats() int

	// Init детерминирован по (seats, seed): ход 0, начальная раздача
	Init(seats []string, seed string) (*State, error)

	// Validate true только если тип действия известен, ход легален и actorSeat == s.Turn
	Validate(s *State, a Action, actorSeat int) bool

	// Apply вызывается только после успешного Validate, возвращает новое состояние
	Apply(s *State, a Action) *State

	// Project проекция состояния для конкретного зрителя
	Project(s *State, viewerID string) View
}

// Lookup возвращает правила по типу игры
func Lookup(t GameType) (Rules, error) {
	switch t {
	case TypeFiveCucumbers, "":
		return NewFiveCucumbers(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, t)
	}
}

type ActionType string

const (
	ActionPlay    ActionType = "play"
	ActionForfeit ActionType = "forfeit"
)

// Action - размеченное объединение: Type определяет, какой payload заполнен.
// forfeit payload не имеет.
type Action struct {
	Type ActionType   `json:"type"`
	Play *PlayPayload `json:"play,omitempty"`
}

type PlayPayload struct {
	Card Card `json:"card"`
}

func PlayCard(c Card) Action {
	return Action{Type: ActionPlay, Play: &PlayPayload{Card: c}}
}

func Forfeit() Action {
	return Action{Type: ActionForfeit}
}

// DecodeAction разбирает действие клиента. Неизвестный тип не ошибка разбора:
// такое действие отклонит Validate.
func DecodeAction(raw json.RawMessage) (Action, error) {
	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	return a, nil
}

// State - авторитетное состояние комнаты. Мутирует только Apply (через копию).
type State struct {
	Seats []string `json:"seats"`
	Turn  int      `json:"turn"`
	Seed  string   `json:"seed"`

	HandNo  int `json:"hand_no"`
	TrickNo int `json:"trick_no"`
	Leader  int `json:"leader"`

	Hands     [][]Card     `json:"hands"`
	Table     []PlayedCard `json:"table"`
	LastTrick []PlayedCard `json:"last_trick"`
	Graveyard []Card       `json:"graveyard"`
	Cucumbers []int        `json:"cucumbers"`
	Out       []bool       `json:"out"`

	// штраф последней законченной раздачи, nil до первой
	LastPenalty *Penalty `json:"last_penalty,omitempty"`

	Finished bool   `json:"finished"`
	Winner   string `json:"winner,omitempty"`
}

type PlayedCard struct {
	Seat int  `json:"seat"`
	Card Card `json:"card"`
}

type Penalty struct {
	HandNo    int  `json:"hand_no"`
	Seat      int  `json:"seat"`
	Card      Card `json:"card"`
	Cucumbers int  `json:"cucumbers"`
}

// SeatOf индекс места участника или -1
func (s *State) SeatOf(participantID string) int {
	for i, id := range s.Seats {
		if id == participantID {
			return i
		}
	}
	return -1
}

// Clone глубокая копия
func (s *State) Clone() *State {
	out := *s
	out.Seats = append([]string{}, s.Seats...)
	out.Hands = make([][]Card, len(s.Hands))
	for i, h := range s.Hands {
		out.Hands[i] = append([]Card{}, h...)
	}
	out.Table = append([]PlayedCard{}, s.Table...)
	out.LastTrick = append([]PlayedCard{}, s.LastTrick...)
	out.Graveyard = append([]Card{}, s.Graveyard...)
	out.Cucumbers = append([]int{}, s.Cucumbers...)
	out.Out = append([]bool{}, s.Out...)
	if s.LastPenalty != nil {
		p := *s.LastPenalty
		out.LastPenalty = &p
	}
	return &out
}

func (s *State) activeCount() int {
	n := 0
	for _, out := range s.Out {
		if !out {
			n++
		}
	}
	return n
}

// nextActive следующее по кругу место, которое еще в игре
func (s *State) nextActive(from int) int {
	n := len(s.Seats)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if !s.Out[idx] {
			return idx
		}
	}
	return from
}
