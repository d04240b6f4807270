package worldstate

// Default caps for the bounded parts of the document.
const (
	DefaultNewsFeedSize    = 10
	DefaultFactCap         = 40
	DefaultThreadCap       = 12
	DefaultConstraintCap   = 12
	DefaultIntroductionCap = 50
)

// Limits bounds the growing collections of the document.
type Limits struct {
	NewsFeed      int `yaml:"news_feed"`
	Facts         int `yaml:"facts"`
	Threads       int `yaml:"threads"`
	Constraints   int `yaml:"constraints"`
	Introductions int `yaml:"introductions"`
}

// DefaultLimits returns the stock caps.
func DefaultLimits() Limits {
	return Limits{
		NewsFeed:      DefaultNewsFeedSize,
		Facts:         DefaultFactCap,
		Threads:       DefaultThreadCap,
		Constraints:   DefaultConstraintCap,
		Introductions: DefaultIntroductionCap,
	}
}

// WithDefaults fills zero caps with the stock values.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.NewsFeed <= 0 {
		l.NewsFeed = d.NewsFeed
	}
	if l.Facts <= 0 {
		l.Facts = d.Facts
	}
	if l.Threads <= 0 {
		l.Threads = d.Threads
	}
	if l.Constraints <= 0 {
		l.Constraints = d.Constraints
	}
	if l.Introductions <= 0 {
		l.Introductions = d.Introductions
	}
	return l
}

// Ledger is the bounded narrative memory: established facts, open threads
// and constraints the story must respect.
type Ledger struct {
	Facts       []string `json:"facts"`
	OpenThreads []string `json:"open_threads"`
	Constraints []string `json:"constraints"`
}

func (l *Ledger) ensure() {
	if l.Facts == nil {
		l.Facts = []string{}
	}
	if l.OpenThreads == nil {
		l.OpenThreads = []string{}
	}
	if l.Constraints == nil {
		l.Constraints = []string{}
	}
}

// Entries is the total number of ledger entries.
func (l Ledger) Entries() int {
	return len(l.Facts) + len(l.OpenThreads) + len(l.Constraints)
}

// AddFact appends a fact, dropping the oldest past max.
func (l *Ledger) AddFact(fact string, max int) {
	l.Facts = appendCapped(l.Facts, fact, max)
}

// OpenThread records an unresolved thread once.
func (l *Ledger) OpenThread(thread string, max int) {
	if contains(l.OpenThreads, thread) {
		return
	}
	l.OpenThreads = appendCapped(l.OpenThreads, thread, max)
}

// CloseThread removes a resolved thread.
func (l *Ledger) CloseThread(thread string) {
	out := l.OpenThreads[:0]
	for _, t := range l.OpenThreads {
		if t != thread {
			out = append(out, t)
		}
	}
	l.OpenThreads = out
}

// AddConstraint records a constraint once.
func (l *Ledger) AddConstraint(c string, max int) {
	if contains(l.Constraints, c) {
		return
	}
	l.Constraints = appendCapped(l.Constraints, c, max)
}

func appendCapped(list []string, v string, max int) []string {
	list = append(list, v)
	if max > 0 && len(list) > max {
		list = append([]string(nil), list[len(list)-max:]...)
	}
	return list
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
