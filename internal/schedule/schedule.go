// Package schedule computes dose timestamps for a medication. A schedule is
// fully described by its start time, a positive frequency in hours, and an
// optional end time; the k-th dose is start + k*frequency. Nothing here is
// persisted and nothing reads the wall clock: callers pass "now" explicitly.
package schedule

import (
	"errors"
	"iter"
	"time"
)

// MaxDoses caps any materialized slice of doses (Window, Between).
const MaxDoses = 2000

// MaxFrequencyHours is the longest accepted dosing interval (one year).
const MaxFrequencyHours = 24 * 365

var (
	// ErrInvalidFrequency is returned for a frequency that is not a positive
	// number of hours no larger than MaxFrequencyHours.
	ErrInvalidFrequency = errors.New("frequency_hours must be a positive integer of at most 8760")

	// ErrEndBeforeStart is returned when the end time precedes the start time.
	ErrEndBeforeStart = errors.New("end_time must not be before start_time")
)

// Dose is a single scheduled administration: its ordinal and its timestamp.
type Dose struct {
	Index int       `json:"index"`
	At    time.Time `json:"at"`
}

// Schedule is an immutable dosing plan. Build it with New.
type Schedule struct {
	Start time.Time
	Every time.Duration
	End   *time.Time
}

// New validates the inputs and returns a Schedule.
func New(start time.Time, frequencyHours int, end *time.Time) (Schedule, error) {
	if frequencyHours <= 0 || frequencyHours > MaxFrequencyHours {
		return Schedule{}, ErrInvalidFrequency
	}
	if end != nil && end.Before(start) {
		return Schedule{}, ErrEndBeforeStart
	}
	s := Schedule{Start: start, Every: time.Duration(frequencyHours) * time.Hour}
	if end != nil {
		e := *end
		s.End = &e
	}
	return s, nil
}

// At returns start + k*frequency. It ignores the end time.
func (s Schedule) At(k int) time.Time {
	return s.Start.Add(time.Duration(k) * s.Every)
}

// Active reports whether the schedule has not ended at now. A schedule
// whose end time equals now is still active.
func (s Schedule) Active(now time.Time) bool {
	return s.End == nil || !now.After(*s.End)
}

// Doses lazily yields (k, timestamp) pairs in order, stopping after the end
// time. Without an end time the sequence is unbounded; the consumer decides
// when to stop.
func (s Schedule) Doses() iter.Seq2[int, time.Time] {
	return func(yield func(int, time.Time) bool) {
		for k := 0; ; k++ {
			t := s.At(k)
			if !s.within(t) {
				return
			}
			if !yield(k, t) {
				return
			}
		}
	}
}

// IsScheduled reports whether t is exactly one of the schedule's doses and
// returns its index.
func (s Schedule) IsScheduled(t time.Time) (int, bool) {
	if t.Before(s.Start) || !s.within(t) {
		return 0, false
	}
	d := t.Sub(s.Start)
	if d%s.Every != 0 {
		return 0, false
	}
	return int(d / s.Every), true
}

// LastAtOrBefore returns the most recent dose scheduled at or before now.
// It is false when the schedule has not started yet.
func (s Schedule) LastAtOrBefore(now time.Time) (Dose, bool) {
	if now.Before(s.Start) {
		return Dose{}, false
	}
	ref := now
	if s.End != nil && ref.After(*s.End) {
		ref = *s.End
	}
	k := s.floorIndex(ref)
	return Dose{Index: k, At: s.At(k)}, true
}

// NextAfter returns the first dose strictly after now. It is false once the
// schedule has ended.
func (s Schedule) NextAfter(now time.Time) (Dose, bool) {
	k := 0
	if !now.Before(s.Start) {
		k = s.floorIndex(now) + 1
	}
	t := s.At(k)
	if !s.within(t) {
		return Dose{}, false
	}
	return Dose{Index: k, At: t}, true
}

// Window returns up to past doses at or before now followed by up to
// upcoming doses after now, in chronological order. An ended schedule
// contributes no upcoming doses but keeps its history.
func (s Schedule) Window(now time.Time, past, upcoming int) []Dose {
	past = clamp(past)
	upcoming = clamp(upcoming)
	out := make([]Dose, 0, past+upcoming)

	if last, ok := s.LastAtOrBefore(now); ok && past > 0 {
		first := last.Index - past + 1
		if first < 0 {
			first = 0
		}
		for k := first; k <= last.Index; k++ {
			out = append(out, Dose{Index: k, At: s.At(k)})
		}
	}

	if next, ok := s.NextAfter(now); ok {
		for k := next.Index; k < next.Index+upcoming; k++ {
			t := s.At(k)
			if !s.within(t) {
				break
			}
			out = append(out, Dose{Index: k, At: t})
		}
	}
	return out
}

// Between returns the doses in [from, to), at most MaxDoses of them.
func (s Schedule) Between(from, to time.Time) []Dose {
	if !from.Before(to) {
		return nil
	}
	k := 0
	if from.After(s.Start) {
		d := from.Sub(s.Start)
		k = int(d / s.Every)
		if d%s.Every != 0 {
			k++
		}
	}
	var out []Dose
	for ; len(out) < MaxDoses; k++ {
		t := s.At(k)
		if !t.Before(to) || !s.within(t) {
			break
		}
		out = append(out, Dose{Index: k, At: t})
	}
	return out
}

func (s Schedule) within(t time.Time) bool {
	return s.End == nil || !t.After(*s.End)
}

// floorIndex assumes t >= Start.
func (s Schedule) floorIndex(t time.Time) int {
	return int(t.Sub(s.Start) / s.Every)
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxDoses {
		return MaxDoses
	}
	return n
}
