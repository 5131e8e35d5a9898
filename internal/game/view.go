package game

// View - то, что видит конкретный участник. Чужие руки сведены к количеству карт,
// seed не отдается никому. Все срезы всегда не nil, чтобы набор полей в JSON не
// зависел от того, кто смотрит.
type View struct {
	Seat      int          `json:"seat"`
	Seats     []string     `json:"seats"`
	Turn      int          `json:"turn"`
	HandNo    int          `json:"hand_no"`
	TrickNo   int          `json:"trick_no"`
	Leader    int          `json:"leader"`
	Hand      []Card       `json:"hand"`
	HandSizes []int        `json:"hand_sizes"`
	Table     []PlayedCard `json:"table"`
	LastTrick []PlayedCard `json:"last_trick"`
	Graveyard []Card       `json:"graveyard"`
	Cucumbers []int        `json:"cucumbers"`
	Out       []bool       `json:"out"`
	Penalty   *Penalty     `json:"last_penalty"`
	Finished  bool         `json:"finished"`
	Winner    string       `json:"winner"`
}

// Project для зрителя вне списка мест возвращает Seat = -1 и пустую руку
func (r *FiveCucumbers) Project(s *State, viewerID string) View {
	return ProjectState(s, viewerID)
}

// ProjectState общая проекция для игр с закрытыми руками
func ProjectState(s *State, viewerID string) View {
	seat := s.SeatOf(viewerID)

	v := View{
		Seat:      seat,
		Seats:     append([]string{}, s.Seats...),
		Turn:      s.Turn,
		HandNo:    s.HandNo,
		TrickNo:   s.TrickNo,
		Leader:    s.Leader,
		Hand:      []Card{},
		HandSizes: make([]int, len(s.Seats)),
		Table:     append([]PlayedCard{}, s.Table...),
		LastTrick: append([]PlayedCard{}, s.LastTrick...),
		Graveyard: append([]Card{}, s.Graveyard...),
		Cucumbers: append([]int{}, s.Cucumbers...),
		Out:       append([]bool{}, s.Out...),
		Finished:  s.Finished,
		Winner:    s.Winner,
	}
	for i, h := range s.Hands {
		v.HandSizes[i] = len(h)
	}
	if seat >= 0 && seat < len(s.Hands) {
		v.Hand = append(v.Hand, s.Hands[seat]...)
	}
	if s.LastPenalty != nil {
		p := *s.LastPenalty
		v.Penalty = &p
	}
	return v
}
