package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRange    = errors.New("range start must be before range end")
	ErrInvalidDuration = errors.New("duration must be positive")
)

// DefaultGranularity is the alignment step for generated slot starts.
const DefaultGranularity = 15 * time.Minute

// Availability computes free bookable slots for a professional. It holds no
// state between calls: every query is a pure function of the current store
// contents.
type Availability struct {
	store       AppointmentStore
	calendar    CalendarSource
	granularity time.Duration
}

func NewAvailability(store AppointmentStore, calendar CalendarSource, granularity time.Duration) *Availability {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	return &Availability{store: store, calendar: calendar, granularity: granularity}
}

// ComputeSlots returns every free window of exactly durationMinutes within
// [rangeStart, rangeEnd), aligned to the configured granularity, in
// chronological order. A slot is free when it lies inside a working-hours
// window for that weekday and overlaps no scheduled/confirmed appointment
// and no block.
func (a *Availability) ComputeSlots(ctx context.Context, professionalID uuid.UUID, rangeStart, rangeEnd time.Time, durationMinutes int) ([]Slot, error) {
	if !rangeStart.Before(rangeEnd) {
		return nil, ErrInvalidRange
	}
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	duration := time.Duration(durationMinutes) * time.Minute

	hours, err := a.calendar.GetWorkingHours(ctx, professionalID)
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}

	appts, err := a.store.ListByProfessionalAndRange(ctx, professionalID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	blocks, err := a.calendar.ListBlocks(ctx, professionalID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	busy := make([]interval, 0, len(appts)+len(blocks))
	for _, ap := range appts {
		if ap.Status.Occupies() {
			busy = append(busy, interval{ap.Start, ap.End})
		}
	}
	for _, b := range blocks {
		busy = append(busy, interval{b.Start, b.End})
	}
	busy = mergeIntervals(busy)

	var slots []Slot
	for day := startOfDay(rangeStart); day.Before(rangeEnd); day = day.AddDate(0, 0, 1) {
		for _, w := range hours.WindowsFor(day.Weekday()) {
			window := interval{
				start: day.Add(time.Duration(w.StartMinute) * time.Minute),
				end:   day.Add(time.Duration(w.EndMinute) * time.Minute),
			}
			window = window.clip(rangeStart, rangeEnd)
			if !window.valid() {
				continue
			}
			for _, free := range subtract(window, busy) {
				slots = append(slots, a.walk(free, day, duration)...)
			}
		}
	}
	return slots, nil
}

// walk emits every duration-sized slot inside the free interval whose start
// is aligned to the granularity grid anchored at the day's midnight.
func (a *Availability) walk(free interval, midnight time.Time, duration time.Duration) []Slot {
	start := alignUp(free.start, midnight, a.granularity)
	var out []Slot
	for ; !start.Add(duration).After(free.end); start = start.Add(a.granularity) {
		out = append(out, Slot{Start: start, End: start.Add(duration)})
	}
	return out
}

type interval struct {
	start time.Time
	end   time.Time
}

func (iv interval) valid() bool {
	return iv.start.Before(iv.end)
}

func (iv interval) clip(lo, hi time.Time) interval {
	if iv.start.Before(lo) {
		iv.start = lo
	}
	if iv.end.After(hi) {
		iv.end = hi
	}
	return iv
}

// mergeIntervals sorts and coalesces overlapping or touching intervals so
// that subtraction never yields phantom free time between adjacent busy
// ranges.
func mergeIntervals(ivs []interval) []interval {
	if len(ivs) < 2 {
		return ivs
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].start.Before(ivs[j].start) })

	out := ivs[:1]
	for _, iv := range ivs[1:] {
		last := &out[len(out)-1]
		if !iv.start.After(last.end) {
			if iv.end.After(last.end) {
				last.end = iv.end
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtract returns the parts of window not covered by busy. busy must be
// merged and sorted.
func subtract(window interval, busy []interval) []interval {
	var free []interval
	cursor := window.start
	for _, b := range busy {
		if !b.end.After(cursor) {
			continue
		}
		if !b.start.Before(window.end) {
			break
		}
		if b.start.After(cursor) {
			free = append(free, interval{cursor, minTime(b.start, window.end)})
		}
		if b.end.After(cursor) {
			cursor = b.end
		}
	}
	if cursor.Before(window.end) {
		free = append(free, interval{cursor, window.end})
	}
	return free
}

// alignUp rounds t up to the next grid point at `step` offsets from anchor.
func alignUp(t, anchor time.Time, step time.Duration) time.Time {
	offset := t.Sub(anchor)
	if rem := offset % step; rem != 0 {
		offset += step - rem
	}
	return anchor.Add(offset)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
