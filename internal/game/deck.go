package game

import (
	"math/rand/v2"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Card - достоинство карты 1..15
type Card int

const (
	MinCard       Card = 1
	MaxCard       Card = 15
	copiesPerCard      = 4
)

// Cucumbers сколько огурцов нарисовано на карте (штраф за последнюю взятку)
func (c Card) Cucumbers() int {
	switch {
	case c <= 1:
		return 0
	case c <= 5:
		return 1
	case c <= 8:
		return 2
	case c <= 11:
		return 3
	case c <= 14:
		return 4
	default:
		return 5
	}
}

func (c Card) Valid() bool {
	return c >= MinCard && c <= MaxCard
}

// NewDeck полная колода: 15 достоинств по 4 копии
func NewDeck() []Card {
	deck := make([]Card, 0, int(MaxCard)*copiesPerCard)
	for c := MinCard; c <= MaxCard; c++ {
		for i := 0; i < copiesPerCard; i++ {
			deck = append(deck, c)
		}
	}
	return deck
}

// ShuffledDeck детерминированно перемешивает колоду для (seed, handNo):
// одинаковые входы всегда дают одинаковый порядок.
func ShuffledDeck(seed string, handNo int) []Card {
	deck := NewDeck()
	rng := rand.New(rand.NewPCG(xxhash.Sum64String(seed), uint64(handNo)))
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

func sortCards(cards []Card) {
	sort.Slice(cards, func(i, j int) bool { return cards[i] < cards[j] })
}

func indexOf(cards []Card, c Card) int {
	for i, x := range cards {
		if x == c {
			return i
		}
	}
	return -1
}

func removeCard(cards []Card, c Card) []Card {
	i := indexOf(cards, c)
	if i < 0 {
		return cards
	}
	out := make([]Card, 0, len(cards)-1)
	out = append(out, cards[:i]...)
	return append(out, cards[i+1:]...)
}
