package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// memStore is a stateful in-memory AppointmentStore + CalendarSource used by
// the unit tests. Writes go through the same conditional-version semantics
// as the Postgres implementation.
type memStore struct {
	mu     sync.Mutex
	appts  map[uuid.UUID]*Appointment
	hours  map[uuid.UUID]WorkingHours
	blocks []Block
}

func newMemStore() *memStore {
	return &memStore{
		appts: make(map[uuid.UUID]*Appointment),
		hours: make(map[uuid.UUID]WorkingHours),
	}
}

func (m *memStore) put(a Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Version == 0 {
		a.Version = 1
	}
	cp := a
	m.appts[a.ID] = &cp
}

func (m *memStore) setHours(professionalID uuid.UUID, windows ...WorkingWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hours[professionalID] = WorkingHours{ProfessionalID: professionalID, Windows: windows}
}

func (m *memStore) addBlock(b Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	m.blocks = append(m.blocks, b)
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	cp.History = append([]HistoryEntry(nil), a.History...)
	return &cp, nil
}

func (m *memStore) ListByProfessionalAndRange(ctx context.Context, professionalID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.ProfessionalID == professionalID && a.Start.Before(end) && a.End.After(start) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memStore) ListByResourceAndRange(ctx context.Context, resource string, start, end time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.Resource != nil && *a.Resource == resource && a.Start.Before(end) && a.End.After(start) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memStore) Create(ctx context.Context, appt *Appointment, entry HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *appt
	cp.Version = 1
	cp.History = []HistoryEntry{entry}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.appts[cp.ID] = &cp
	*appt = cp
	return nil
}

func (m *memStore) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, change IntervalChange, entry HistoryEntry) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	a.Start = change.Start
	a.End = change.End
	a.ProfessionalID = change.ProfessionalID
	a.Resource = change.Resource
	a.Version++
	a.UpdatedAt = time.Now()
	a.History = append(a.History, entry)

	cp := *a
	cp.History = append([]HistoryEntry(nil), a.History...)
	return &cp, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, entry HistoryEntry) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrVersionConflict
	}
	a.Status = to
	a.Version++
	a.UpdatedAt = time.Now()
	a.History = append(a.History, entry)

	cp := *a
	cp.History = append([]HistoryEntry(nil), a.History...)
	return &cp, nil
}

func (m *memStore) GetWorkingHours(ctx context.Context, professionalID uuid.UUID) (WorkingHours, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wh, ok := m.hours[professionalID]
	if !ok {
		return WorkingHours{}, ErrProfessionalNotFound
	}
	return wh, nil
}

func (m *memStore) ListBlocks(ctx context.Context, professionalID uuid.UUID, start, end time.Time) ([]Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Block
	for _, b := range m.blocks {
		if b.ProfessionalID == professionalID && b.Start.Before(end) && b.End.After(start) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) ListBlocksByResource(ctx context.Context, resource string, start, end time.Time) ([]Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Block
	for _, b := range m.blocks {
		if b.Resource != nil && *b.Resource == resource && b.Start.Before(end) && b.End.After(start) {
			out = append(out, b)
		}
	}
	return out, nil
}

// memLocker serializes critical sections with in-process mutexes, one per
// key, acquired in sorted order like the Redis locker.
type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memLocker) lockFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

func (l *memLocker) WithCalendarLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	var held []*sync.Mutex
	for _, key := range sorted {
		m := l.lockFor(key)
		m.Lock()
		held = append(held, m)
	}
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}()

	return fn(ctx)
}

// captureNotifier records intents for assertions.
type captureNotifier struct {
	mu    sync.Mutex
	moved []MoveNotification
}

func (n *captureNotifier) AppointmentMoved(ctx context.Context, m MoveNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.moved = append(n.moved, m)
}

func (n *captureNotifier) all() []MoveNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]MoveNotification(nil), n.moved...)
}

func newTestScheduler(store *memStore) *Scheduler {
	return NewScheduler(store, NewConflictValidator(store, store), newMemLocker(), zerolog.Nop())
}
