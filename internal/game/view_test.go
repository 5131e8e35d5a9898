package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFingerprint(t *testing.T, v any) string {
	t.Helper()
	fp, err := Fingerprint(v)
	require.NoError(t, err)
	return fp
}

func TestProject_HidesOtherHands(t *testing.T) {
	r := NewFiveCucumbers()
	s, err := r.Init([]string{"A", "B", "C"}, "seed1")
	require.NoError(t, err)

	v := r.Project(s, "B")
	assert.Equal(t, 1, v.Seat)
	assert.Equal(t, s.Hands[1], v.Hand)
	assert.Equal(t, []int{7, 7, 7}, v.HandSizes)

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "seed1")
	assert.NotContains(t, string(raw), `"hands"`)
}

func TestProject_Spectator(t *testing.T) {
	r := NewFiveCucumbers()
	s, err := r.Init([]string{"A", "B"}, "seed1")
	require.NoError(t, err)

	v := r.Project(s, "nobody")
	assert.Equal(t, -1, v.Seat)
	assert.NotNil(t, v.Hand)
	assert.Empty(t, v.Hand)
}

// набор ключей JSON одинаков для игрока, зрителя и до/после первого штрафа
func TestProject_FieldPresenceDoesNotDependOnViewer(t *testing.T) {
	r := NewFiveCucumbers()
	s, err := r.Init([]string{"A", "B"}, "seed1")
	require.NoError(t, err)

	keys := func(v View) []string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		out := make([]string, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		return out
	}

	player := keys(r.Project(s, "A"))
	assert.ElementsMatch(t, player, keys(r.Project(s, "ghost")))

	penalized := handState([]Card{3}, []Card{9})
	penalized = r.Apply(penalized, PlayCard(3))
	penalized = r.Apply(penalized, PlayCard(9))
	assert.ElementsMatch(t, player, keys(r.Project(penalized, "A")))
}

func TestProject_DeterministicAndPure(t *testing.T) {
	r := NewFiveCucumbers()
	s, err := r.Init([]string{"A", "B"}, "seed1")
	require.NoError(t, err)
	before := s.Clone()

	v1 := r.Project(s, "A")
	v2 := r.Project(s, "A")
	assert.Equal(t, v1, v2)

	v1.Hand[0] = 99
	assert.Equal(t, before, s, "mutating a view must not touch the state")
}

func TestFingerprint_EqualViews(t *testing.T) {
	r := NewFiveCucumbers()
	s, err := r.Init([]string{"A", "B"}, "seed1")
	require.NoError(t, err)

	fp1, err := Fingerprint(r.Project(s, "A"))
	require.NoError(t, err)
	fp2, err := Fingerprint(r.Project(s.Clone(), "A"))
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 16)
}

func TestFingerprint_DiffersAcrossSeatsAndMoves(t *testing.T) {
	r := NewFiveCucumbers()
	s, err := r.Init([]string{"A", "B"}, "seed1")
	require.NoError(t, err)

	a := mustFingerprint(t, r.Project(s, "A"))
	b := mustFingerprint(t, r.Project(s, "B"))
	assert.NotEqual(t, a, b)

	next := r.Apply(s, PlayCard(s.Hands[0][0]))
	assert.NotEqual(t, a, mustFingerprint(t, r.Project(next, "A")))
}

func TestFingerprint_IgnoresKeyOrder(t *testing.T) {
	m1 := map[string]any{"turn": 1, "seats": []string{"A", "B"}, "nested": map[string]any{"x": 1, "y": 2.0}}
	m2 := map[string]any{"nested": map[string]any{"y": 2, "x": 1.0}, "seats": []string{"A", "B"}, "turn": 1}

	assert.Equal(t, mustFingerprint(t, m1), mustFingerprint(t, m2))

	raw1 := json.RawMessage(`{"b":1,"a":[1,2]}`)
	raw2 := json.RawMessage(`{"a":[1,2],"b":1}`)
	assert.Equal(t, mustFingerprint(t, raw1), mustFingerprint(t, raw2))
	assert.NotEqual(t, mustFingerprint(t, raw1), mustFingerprint(t, json.RawMessage(`{"a":[2,1],"b":1}`)))
}

func TestFingerprint_Unserializable(t *testing.T) {
	_, err := Fingerprint(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestDecodeAction(t *testing.T) {
	a, err := DecodeAction(json.RawMessage(`{"type":"play","play":{"card":7}}`))
	require.NoError(t, err)
	assert.Equal(t, PlayCard(7), a)

	a, err = DecodeAction(json.RawMessage(`{"type":"forfeit"}`))
	require.NoError(t, err)
	assert.Equal(t, Forfeit(), a)

	_, err = DecodeAction(json.RawMessage(`{"type":`))
	assert.Error(t, err)
}

func TestShuffledDeck(t *testing.T) {
	d1 := ShuffledDeck("seed1", 1)
	assert.Equal(t, d1, ShuffledDeck("seed1", 1))
	assert.NotEqual(t, d1, ShuffledDeck("seed1", 2))
	assert.ElementsMatch(t, NewDeck(), d1)
	assert.Len(t, d1, 60)
}

func TestCardCucumbers(t *testing.T) {
	cases := map[Card]int{1: 0, 2: 1, 5: 1, 6: 2, 8: 2, 9: 3, 11: 3, 12: 4, 14: 4, 15: 5}
	for c, want := range cases {
		assert.Equal(t, want, c.Cucumbers(), "card %d", c)
	}
}

func TestLookup(t *testing.T) {
	r, err := Lookup(TypeFiveCucumbers)
	require.NoError(t, err)
	assert.Equal(t, TypeFiveCucumbers, r.Type())

	_, err = Lookup("poker")
	assert.ErrorIs(t, err, ErrUnknownGame)
}
