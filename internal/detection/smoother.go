package detection

import "zenfocus/internal/types"

// smoothingRule is one entry of the override chain. Rules are tried in order.
type smoothingRule struct {
	name   string
	match  func(t tally) bool
	result func(t tally) types.StateKind
}

// tally counts state kinds in a window
type tally struct {
	total  int
	counts map[types.StateKind]int
}

func newTally(window []types.StateKind) tally {
	t := tally{total: len(window), counts: make(map[types.StateKind]int, len(types.StateKinds))}
	for _, kind := range window {
		t.counts[kind]++
	}
	return t
}

func (t tally) fraction(kind types.StateKind) float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.counts[kind]) / float64(t.total)
}

func fixed(kind types.StateKind) func(tally) types.StateKind {
	return func(tally) types.StateKind { return kind }
}

var smoothingRules = []smoothingRule{
	{
		name:   "empty",
		match:  func(t tally) bool { return t.total == 0 },
		result: fixed(types.StateIdle),
	},
	{
		name:   "sleeping",
		match:  func(t tally) bool { return t.fraction(types.StateSleeping) > 0.6 },
		result: fixed(types.StateSleeping),
	},
	{
		name:   "away",
		match:  func(t tally) bool { return t.fraction(types.StateAway) > 0.4 },
		result: fixed(types.StateAway),
	},
	{
		name:   "distracted",
		match:  func(t tally) bool { return t.fraction(types.StateDistracted) > 0.5 },
		result: fixed(types.StateDistracted),
	},
	{
		name: "focused",
		match: func(t tally) bool {
			focused := t.counts[types.StateFocused]
			return focused >= 1 && focused >= t.counts[types.StateDistracted]
		},
		result: fixed(types.StateFocused),
	},
	{
		name:   "majority",
		match:  func(tally) bool { return true },
		result: majority,
	},
}

// majority returns the most frequent kind, ties broken by enumeration order
func majority(t tally) types.StateKind {
	best := types.StateKinds[0]
	bestCount := -1
	for _, kind := range types.StateKinds {
		if t.counts[kind] > bestCount {
			best = kind
			bestCount = t.counts[kind]
		}
	}
	return best
}

// Smooth computes the debounced state of a window of instant kinds
func Smooth(window []types.StateKind) types.StateKind {
	kind, _ := smoothWithRule(window)
	return kind
}

func smoothWithRule(window []types.StateKind) (types.StateKind, string) {
	t := newTally(window)
	for _, rule := range smoothingRules {
		if rule.match(t) {
			return rule.result(t), rule.name
		}
	}
	return types.StateIdle, ""
}

// Smoother keeps a fixed-capacity ring of recent instant kinds
type Smoother struct {
	buf  []types.StateKind
	next int
	size int
}

// NewSmoother creates a smoother holding at most capacity kinds
func NewSmoother(capacity int) *Smoother {
	if capacity <= 0 {
		capacity = DefaultConfig().SmoothingWindow
	}
	return &Smoother{buf: make([]types.StateKind, capacity)}
}

// Push adds a kind, dropping the oldest once full, and returns the smoothed state
func (s *Smoother) Push(kind types.StateKind) types.StateKind {
	s.buf[s.next] = kind
	s.next = (s.next + 1) % len(s.buf)
	if s.size < len(s.buf) {
		s.size++
	}
	return s.Current()
}

// Current returns the smoothed state of the buffered window
func (s *Smoother) Current() types.StateKind {
	return Smooth(s.Window())
}

// Window returns the buffered kinds, oldest first
func (s *Smoother) Window() []types.StateKind {
	out := make([]types.StateKind, 0, s.size)
	start := (s.next - s.size + len(s.buf)) % len(s.buf)
	for i := 0; i < s.size; i++ {
		out = append(out, s.buf[(start+i)%len(s.buf)])
	}
	return out
}

// Len returns the number of buffered kinds
func (s *Smoother) Len() int {
	return s.size
}

// Reset empties the buffer
func (s *Smoother) Reset() {
	s.next = 0
	s.size = 0
}
