package langdetect

// State counts the languages confidently detected during a session. The
// dominant language is the strict maximum; on a tie the language seen first wins.
type State struct {
	counts   map[string]int
	order    []string
	dominant string
}

// NewState returns an empty State.
func NewState() *State {
	return &State{counts: make(map[string]int)}
}

// Record counts one more sighting of lang and refreshes the dominant language.
func (s *State) Record(lang string) {
	if lang == "" {
		return
	}
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	if _, seen := s.counts[lang]; !seen {
		s.order = append(s.order, lang)
	}
	s.counts[lang]++

	best, top := "", 0
	for _, l := range s.order {
		if c := s.counts[l]; c > top {
			best, top = l, c
		}
	}
	s.dominant = best
}

// Dominant returns the current leader. ok is false when nothing was recorded.
func (s *State) Dominant() (string, bool) {
	if s == nil || s.dominant == "" {
		return "", false
	}
	return s.dominant, true
}

// Counts returns a copy of the per-language tallies.
func (s *State) Counts() map[string]int {
	if s == nil {
		return nil
	}
	out := make(map[string]int, len(s.counts))
	for l, c := range s.counts {
		out[l] = c
	}
	return out
}
