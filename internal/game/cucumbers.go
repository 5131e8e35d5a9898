package game

import (
	"fmt"
)

const (
	defaultHandSize       = 7
	defaultCucumberLimit  = 5
	fiveCucumbersMinSeats = 2
	fiveCucumbersMaxSeats = 6
)

// FiveCucumbers правила "Пять огурцов".
//
// Ведущий взятки кладет любую карту. Следующие игроки обязаны положить карту не
// меньше старшей на столе, а если такой нет - свою самую младшую. Взятку берет
// старшая карта (при равенстве - сыгранная позже), ее хозяин ходит первым дальше.
// Взявший последнюю взятку раздачи получает огурцы с победной карты; набравший
// CucumberLimit выбывает. Игра заканчивается, когда в игре остается один игрок.
type FiveCucumbers struct {
	HandSize      int
	CucumberLimit int
}

var _ Rules = (*FiveCucumbers)(nil)

func NewFiveCucumbers() *FiveCucumbers {
	return &FiveCucumbers{
		HandSize:      defaultHandSize,
		CucumberLimit: defaultCucumberLimit,
	}
}

func (r *FiveCucumbers) Type() GameType { return TypeFiveCucumbers }
func (r *FiveCucumbers) MinSeats() int  { return fiveCucumbersMinSeats }
func (r *FiveCucumbers) MaxSeats() int  { return fiveCucumbersMaxSeats }

func (r *FiveCucumbers) Init(seats []string, seed string) (*State, error) {
	if len(seats) < r.MinSeats() || len(seats) > r.MaxSeats() {
		return nil, fmt.Errorf("%w: got %d, want %d..%d", ErrInvalidSeatCount, len(seats), r.MinSeats(), r.MaxSeats())
	}
	seen := make(map[string]struct{}, len(seats))
	for _, id := range seats {
		if id == "" {
			return nil, fmt.Errorf("%w: empty participant id", ErrInvalidSeatCount)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate participant %q", ErrInvalidSeatCount, id)
		}
		seen[id] = struct{}{}
	}

	s := &State{
		Seats:     append([]string{}, seats...),
		Seed:      seed,
		Table:     []PlayedCard{},
		LastTrick: []PlayedCard{},
		Graveyard: []Card{},
		Cucumbers: make([]int, len(seats)),
		Out:       make([]bool, len(seats)),
	}
	r.deal(s, 1, 0)
	return s, nil
}

// deal раздает новую руку активным местам, leader ходит первым
func (r *FiveCucumbers) deal(s *State, handNo, leader int) {
	deck := ShuffledDeck(s.Seed, handNo)
	s.HandNo = handNo
	s.TrickNo = 1
	s.Leader = leader
	s.Turn = leader
	s.Table = []PlayedCard{}
	s.Graveyard = []Card{}
	s.Hands = make([][]Card, len(s.Seats))

	pos := 0
	for i := range s.Seats {
		if s.Out[i] {
			s.Hands[i] = []Card{}
			continue
		}
		hand := append([]Card{}, deck[pos:pos+r.HandSize]...)
		pos += r.HandSize
		sortCards(hand)
		s.Hands[i] = hand
	}
}

func (r *FiveCucumbers) Validate(s *State, a Action, actorSeat int) bool {
	if s == nil || s.Finished {
		return false
	}
	if actorSeat < 0 || actorSeat >= len(s.Seats) || actorSeat != s.Turn || s.Out[actorSeat] {
		return false
	}

	switch a.Type {
	case ActionPlay:
		if a.Play == nil || !a.Play.Card.Valid() {
			return false
		}
		return r.playable(s, actorSeat, a.Play.Card)
	case ActionForfeit:
		return a.Play == nil
	default:
		return false
	}
}

// playable карта есть на руке и не нарушает правило "не меньше старшей или самая младшая"
func (r *FiveCucumbers) playable(s *State, seat int, c Card) bool {
	hand := s.Hands[seat]
	if indexOf(hand, c) < 0 {
		return false
	}
	if len(s.Table) == 0 {
		return true
	}
	high := highestOnTable(s.Table)
	if c >= high {
		return true
	}
	// рука отсортирована: последняя карта - старшая
	if hand[len(hand)-1] >= high {
		return false
	}
	return c == hand[0]
}

func (r *FiveCucumbers) Apply(s *State, a Action) *State {
	next := s.Clone()

	switch a.Type {
	case ActionPlay:
		seat := next.Turn
		next.Hands[seat] = removeCard(next.Hands[seat], a.Play.Card)
		next.Table = append(next.Table, PlayedCard{Seat: seat, Card: a.Play.Card})
		r.advance(next, seat)
	case ActionForfeit:
		seat := next.Turn
		next.Graveyard = append(next.Graveyard, next.Hands[seat]...)
		next.Hands[seat] = []Card{}
		next.Out[seat] = true
		if r.finishIfLastStanding(next) {
			return next
		}
		r.advance(next, seat)
	default:
		panic(fmt.Sprintf("game: apply called with unvalidated action %q", a.Type))
	}
	return next
}

// advance передает ход дальше или закрывает взятку/раздачу
func (r *FiveCucumbers) advance(s *State, from int) {
	if len(s.Table) < s.activeCount() || len(s.Table) == 0 {
		nxt := s.nextActive(from)
		if len(s.Table) == 0 {
			s.Leader = nxt
		}
		s.Turn = nxt
		return
	}
	r.closeTrick(s)
}

func (r *FiveCucumbers) closeTrick(s *State) {
	win := trickWinner(s.Table)
	s.LastTrick = s.Table
	for _, p := range s.Table {
		s.Graveyard = append(s.Graveyard, p.Card)
	}
	s.Table = []PlayedCard{}

	if !r.handExhausted(s) {
		s.TrickNo++
		s.Leader = win.Seat
		s.Turn = win.Seat
		return
	}

	penalty := win.Card.Cucumbers()
	s.Cucumbers[win.Seat] += penalty
	s.LastPenalty = &Penalty{HandNo: s.HandNo, Seat: win.Seat, Card: win.Card, Cucumbers: penalty}
	if s.Cucumbers[win.Seat] >= r.CucumberLimit {
		s.Out[win.Seat] = true
	}
	if r.finishIfLastStanding(s) {
		return
	}

	leader := win.Seat
	if s.Out[leader] {
		leader = s.nextActive(leader)
	}
	r.deal(s, s.HandNo+1, leader)
}

func (r *FiveCucumbers) handExhausted(s *State) bool {
	for i, hand := range s.Hands {
		if !s.Out[i] && len(hand) > 0 {
			return false
		}
	}
	return true
}

// finishIfLastStanding переводит состояние в терминальное, если в игре <= 1 места
func (r *FiveCucumbers) finishIfLastStanding(s *State) bool {
	if s.activeCount() > 1 {
		return false
	}
	s.Finished = true
	for i, out := range s.Out {
		if !out {
			s.Winner = s.Seats[i]
			s.Turn = i
			s.Leader = i
		}
	}
	return true
}

func highestOnTable(table []PlayedCard) Card {
	var high Card
	for _, p := range table {
		if p.Card > high {
			high = p.Card
		}
	}
	return high
}

// trickWinner старшая карта, при равенстве выигрывает сыгранная позже
func trickWinner(table []PlayedCard) PlayedCard {
	win := table[0]
	for _, p := range table[1:] {
		if p.Card >= win.Card {
			win = p
		}
	}
	return win
}
