// Package dedup provides the date-scoped seen-set that makes repeated polling
// idempotent. Each alert engine filters its candidates through its own
// namespace; a key admitted once is suppressed for the rest of the calendar
// day, and every namespace starts empty when the date rolls over.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// SeenState is the persisted seen-set for one namespace.
type SeenState struct {
	Date string   `json:"date"`
	Seen []string `json:"seen"`
}

// Store persists per-namespace seen state. Implementations return a zero
// SeenState (not an error) for namespaces that have never been saved.
type Store interface {
	Load(namespace string) (SeenState, error)
	Save(namespace string, state SeenState) error
}

// Key hashes the parts that define an alert's identity into a stable key.
func Key(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Filter runs candidates through a Store.
type Filter struct {
	store Store
	now   func() time.Time
}

// New creates a Filter backed by the given store.
func New(store Store) *Filter {
	return &Filter{store: store, now: time.Now}
}

func (f *Filter) today() string {
	return f.now().Format("2006-01-02")
}

// FilterNew returns the candidates whose key has not been seen today and
// persists the updated seen set for the namespace. A seen set dated before
// today counts as empty. The state is saved even when nothing is new, so the
// daily reset itself is recorded. Delivery is at most once per key per day:
// keys are never removed within a day.
func FilterNew[T any](f *Filter, candidates []T, namespace string, keyFn func(T) string) ([]T, error) {
	fresh, commit, err := Stage(f, candidates, namespace, keyFn)
	if err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Stage filters candidates like FilterNew but defers persisting the seen set
// to the returned commit func. A caller that fails partway through working on
// the fresh candidates can skip the commit, leaving the batch eligible again
// on the next poll.
func Stage[T any](f *Filter, candidates []T, namespace string, keyFn func(T) string) ([]T, func() error, error) {
	today := f.today()

	state, err := f.store.Load(namespace)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool, len(state.Seen))
	if state.Date == today {
		for _, k := range state.Seen {
			seen[k] = true
		}
	}

	var fresh []T
	for _, c := range candidates {
		key := keyFn(c)
		if !seen[key] {
			fresh = append(fresh, c)
			seen[key] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	commit := func() error {
		return f.store.Save(namespace, SeenState{Date: today, Seen: keys})
	}
	return fresh, commit, nil
}

// LoadValue reads a single remembered value for a namespace, such as the last
// observed signal cell. Missing or stale-dated namespaces yield "".
func (f *Filter) LoadValue(namespace string) (string, error) {
	state, err := f.store.Load(namespace)
	if err != nil {
		return "", err
	}
	if len(state.Seen) == 0 {
		return "", nil
	}
	return state.Seen[0], nil
}

// SaveValue stores a single remembered value for a namespace.
func (f *Filter) SaveValue(namespace, value string) error {
	return f.store.Save(namespace, SeenState{Date: f.today(), Seen: []string{value}})
}
