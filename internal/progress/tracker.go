// Package progress keeps short-lived, polled progress records for uploads.
package progress

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ErrNotFound is returned by Read for tokens that were never written or have expired.
var ErrNotFound = errors.New("progress token not found")

const (
	DefaultTTL    = 30 * time.Minute
	DefaultLogCap = 300
)

// LogEntry is one progress message.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// DoneInfo identifies the text an upload produced. Library marks an id of
// the shared library rather than of a user text.
type DoneInfo struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Library bool   `json:"library,omitempty"`
}

// Record is the state of one token.
type Record struct {
	Token     string     `json:"token"`
	Percent   int        `json:"percent"`
	Logs      []LogEntry `json:"logs"`
	Done      bool       `json:"done"`
	Error     string     `json:"error,omitempty"`
	Result    *DoneInfo  `json:"result,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Terminal reports whether the record is done or failed.
func (r *Record) Terminal() bool {
	return r.Done || r.Error != ""
}

// Tracker stores records keyed by token and drops them after a TTL of inactivity.
type Tracker struct {
	mu     sync.Mutex
	items  *cache.Cache
	ttl    time.Duration
	logCap int
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTTL sets how long a record survives without writes.
func WithTTL(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.ttl = d
		}
	}
}

// WithLogCap sets the maximum number of log entries kept per token.
func WithLogCap(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.logCap = n
		}
	}
}

// NewTracker creates a Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{ttl: DefaultTTL, logCap: DefaultLogCap, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.items = cache.New(t.ttl, t.ttl/2)
	return t
}

// NewToken returns a fresh random token.
func NewToken() string {
	return uuid.NewString()
}

// update applies fn to the record for token, creating it if needed, and
// refreshes its expiry.
func (t *Tracker) update(token string, fn func(r *Record)) {
	if token == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var r *Record
	if v, ok := t.items.Get(token); ok {
		r = v.(*Record)
	} else {
		r = &Record{Token: token}
	}
	fn(r)
	r.UpdatedAt = t.now()
	t.items.Set(token, r, cache.DefaultExpiration)
}

// Init resets token to an empty active record.
func (t *Tracker) Init(token string) {
	if token == "" {
		return
	}
	t.mu.Lock()
	t.items.Set(token, &Record{Token: token, UpdatedAt: t.now()}, cache.DefaultExpiration)
	t.mu.Unlock()
}

// Log appends a message, dropping the oldest entries beyond the cap.
func (t *Tracker) Log(token, message string) {
	t.update(token, func(r *Record) {
		r.Logs = append(r.Logs, LogEntry{Time: t.now(), Message: message})
		if over := len(r.Logs) - t.logCap; over > 0 {
			r.Logs = append(r.Logs[:0:0], r.Logs[over:]...)
		}
	})
}

// SetPercent records value clamped to [0,100]. Values below the current
// percent and writes after a terminal state are ignored.
func (t *Tracker) SetPercent(token string, value int) {
	t.update(token, func(r *Record) {
		if r.Terminal() {
			return
		}
		value = max(0, min(100, value))
		if value > r.Percent {
			r.Percent = value
		}
	})
}

// SetDone marks token finished at 100%.
func (t *Tracker) SetDone(token string, info DoneInfo) {
	t.update(token, func(r *Record) {
		if r.Terminal() {
			return
		}
		r.Done = true
		r.Percent = 100
		r.Result = &info
	})
}

// SetError marks token failed with err's message.
func (t *Tracker) SetError(token string, err error) {
	t.update(token, func(r *Record) {
		if r.Terminal() {
			return
		}
		msg := "unknown error"
		if err != nil && err.Error() != "" {
			msg = err.Error()
		}
		r.Error = msg
	})
}

// Read returns a copy of the record for token.
func (t *Tracker) Read(token string) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items.Get(token)
	if !ok {
		return Record{}, ErrNotFound
	}
	r := *v.(*Record)
	r.Logs = append([]LogEntry(nil), r.Logs...)
	if r.Result != nil {
		info := *r.Result
		r.Result = &info
	}
	return r, nil
}

// Len returns the number of live records.
func (t *Tracker) Len() int {
	return t.items.ItemCount()
}
