package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/metrics"
)

type accountEntry struct {
	acc model.Account
	seq uint64
}

func (e *accountEntry) key() rankKey {
	return rankKey{points: e.acc.TotalPoints, seq: e.seq, id: e.acc.UserID}
}

// MemoryStore keeps both ledgers in process memory. Account updates of one
// user are serialized by a striped lock; different users proceed in parallel
// and only meet briefly on the rank index.
type MemoryStore struct {
	now     func() time.Time
	stripes int
	locks   []sync.Mutex

	mu       sync.RWMutex
	accounts map[string]*accountEntry
	emails   map[string]string
	index    *rankIndex
	nextSeq  uint64

	actMu      sync.RWMutex
	activities map[string][]model.ActivityRecord
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:        time.Now,
		stripes:    defaultLockStripes,
		accounts:   make(map[string]*accountEntry),
		emails:     make(map[string]string),
		index:      newRankIndex(),
		activities: make(map[string][]model.ActivityRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locks = make([]sync.Mutex, s.stripes)
	return s
}

func (s *MemoryStore) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

// UpdateAccount implements AccountStore.
func (s *MemoryStore) UpdateAccount(ctx context.Context, userID string, fn UpdateFunc) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	start := time.Now()
	defer func() {
		metrics.RecordLedgerUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	l := s.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	now := s.now().UTC()
	s.mu.RLock()
	entry, exists := s.accounts[userID]
	var cur model.Account
	if exists {
		cur = entry.acc
	} else {
		cur = model.Account{UserID: userID, CreatedAt: now, UpdatedAt: now}
	}
	s.mu.RUnlock()

	next := cur
	if err := fn(&next); err != nil {
		return model.Account{}, err
	}
	next.UserID, next.Username, next.Email, next.CreatedAt = cur.UserID, cur.Username, cur.Email, cur.CreatedAt
	next.UpdatedAt = now
	if !next.NotDecreasedFrom(cur) {
		return model.Account{}, ErrCounterDecrease
	}

	s.mu.Lock()
	created := false
	if e, ok := s.accounts[userID]; ok {
		s.index.remove(e.key())
		e.acc = next
		s.index.put(e.key())
	} else {
		// first event for the user, or the account was bulk-deleted meanwhile
		s.nextSeq++
		e = &accountEntry{acc: next, seq: s.nextSeq}
		s.accounts[userID] = e
		s.index.put(e.key())
		created = true
	}
	count := len(s.accounts)
	s.mu.Unlock()

	if created {
		metrics.UpdateTotalAccounts(count)
	}
	return next, nil
}

// CreateAccount implements AccountStore.
func (s *MemoryStore) CreateAccount(ctx context.Context, acc model.Account) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	l := s.lockFor(acc.UserID)
	l.Lock()
	defer l.Unlock()

	now := s.now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	email := strings.ToLower(acc.Email)

	s.mu.Lock()
	if _, ok := s.accounts[acc.UserID]; ok {
		s.mu.Unlock()
		return model.Account{}, fmt.Errorf("%w: user id %q", ErrAlreadyExists, acc.UserID)
	}
	if email != "" {
		if _, ok := s.emails[email]; ok {
			s.mu.Unlock()
			return model.Account{}, fmt.Errorf("%w: email %q", ErrAlreadyExists, acc.Email)
		}
		s.emails[email] = acc.UserID
	}
	s.nextSeq++
	e := &accountEntry{acc: acc, seq: s.nextSeq}
	s.accounts[acc.UserID] = e
	s.index.put(e.key())
	count := len(s.accounts)
	s.mu.Unlock()

	metrics.UpdateTotalAccounts(count)
	return acc, nil
}

// GetAccount implements AccountStore.
func (s *MemoryStore) GetAccount(ctx context.Context, userID string) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.accounts[userID]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return e.acc, nil
}

// CountAbove implements AccountStore in O(log n).
func (s *MemoryStore) CountAbove(ctx context.Context, points int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	start := time.Now()
	defer observeQuery("count_above", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.countAbove(points), nil
}

// TopAccounts implements AccountStore.
func (s *MemoryStore) TopAccounts(ctx context.Context, n int) ([]model.Account, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer observeQuery("top_accounts", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.index.top(n)
	out := make([]model.Account, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.accounts[k.id].acc)
	}
	return out, nil
}

// SumAccounts implements AccountStore.
func (s *MemoryStore) SumAccounts(ctx context.Context, f AccountFilter) (AccountTotals, error) {
	if err := ctx.Err(); err != nil {
		return AccountTotals{}, err
	}
	start := time.Now()
	defer observeQuery("sum_accounts", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var t AccountTotals
	for _, e := range s.accounts {
		if f.CreatedFrom != nil && e.acc.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && e.acc.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		t.Accounts++
		t.TotalPoints += e.acc.TotalPoints
		t.TasksCompleted += e.acc.TasksCompleted
		t.HighPriorityTasksCompleted += e.acc.HighPriorityTasksCompleted
		t.ActivitiesCompleted += e.acc.ActivitiesCompleted
	}
	return t, nil
}

// CountAccounts implements AccountStore.
func (s *MemoryStore) CountAccounts(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

// AppendActivity implements ActivityStore.
func (s *MemoryStore) AppendActivity(ctx context.Context, rec model.ActivityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.Metadata = maps.Clone(rec.Metadata)
	s.actMu.Lock()
	s.activities[rec.UserID] = append(s.activities[rec.UserID], rec)
	s.actMu.Unlock()
	return nil
}

// FindActivities implements ActivityStore.
func (s *MemoryStore) FindActivities(ctx context.Context, q ActivityQuery) ([]model.ActivityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer observeQuery("find_activities", start)

	matched := s.match(q)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []model.ActivityRecord{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// CountActivities implements ActivityStore.
func (s *MemoryStore) CountActivities(ctx context.Context, q ActivityQuery) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.match(q)), nil
}

// GroupActivities implements ActivityStore.
func (s *MemoryStore) GroupActivities(ctx context.Context, q ActivityQuery) ([]ActivityGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type groupKey struct {
		t model.ActivityType
		d model.Difficulty
	}
	groups := make(map[groupKey]*ActivityGroup)
	for _, rec := range s.match(q) {
		k := groupKey{t: rec.ActivityType, d: rec.DifficultyLevel}
		g, ok := groups[k]
		if !ok {
			g = &ActivityGroup{ActivityType: k.t, DifficultyLevel: k.d}
			groups[k] = g
		}
		g.Count++
		g.Points += rec.Points
	}
	out := make([]ActivityGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActivityType != out[j].ActivityType {
			return out[i].ActivityType < out[j].ActivityType
		}
		return out[i].DifficultyLevel < out[j].DifficultyLevel
	})
	return out, nil
}

// match copies the records selected by q, ignoring ordering and paging.
func (s *MemoryStore) match(q ActivityQuery) []model.ActivityRecord {
	s.actMu.RLock()
	defer s.actMu.RUnlock()

	var out []model.ActivityRecord
	add := func(recs []model.ActivityRecord) {
		for i := range recs {
			if matchesActivity(q, &recs[i]) {
				out = append(out, recs[i])
			}
		}
	}
	if q.UserID != "" {
		add(s.activities[q.UserID])
	} else {
		for _, recs := range s.activities {
			add(recs)
		}
	}
	return out
}

func matchesActivity(q ActivityQuery, rec *model.ActivityRecord) bool {
	if q.ActivityType != "" && rec.ActivityType != q.ActivityType {
		return false
	}
	if q.DifficultyLevel != "" && rec.DifficultyLevel != q.DifficultyLevel {
		return false
	}
	if q.From != nil && rec.Timestamp.Before(*q.From) {
		return false
	}
	if q.To != nil && rec.Timestamp.After(*q.To) {
		return false
	}
	return true
}

// DeleteAll implements Store.
func (s *MemoryStore) DeleteAll(ctx context.Context) (DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return DeleteResult{}, err
	}
	s.mu.Lock()
	res := DeleteResult{Accounts: int64(len(s.accounts))}
	s.accounts = make(map[string]*accountEntry)
	s.emails = make(map[string]string)
	s.index.reset()
	s.mu.Unlock()

	s.actMu.Lock()
	for _, recs := range s.activities {
		res.Activities += int64(len(recs))
	}
	s.activities = make(map[string][]model.ActivityRecord)
	s.actMu.Unlock()

	metrics.UpdateTotalAccounts(0)
	return res, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func observeQuery(op string, start time.Time) {
	metrics.RecordStoreQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
