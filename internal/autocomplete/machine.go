// Package autocomplete models the medication-name suggestion widget as a
// pure state machine. The machine owns no timers and performs no I/O: each
// event returns the effects the host must carry out (arm a debounce timer,
// issue a lookup, redraw the list) and later feeds back as events.
//
//	Idle --InputChanged(len>=min)--> Pending --DebounceElapsed--> Pending (fetching)
//	Pending --ResponseReceived(items)--> ShowingSuggestions
//	ShowingSuggestions --SelectionMade--> Closed
//	any --Blur--> Closed
//
// The browser widget in internal/web/static/autocomplete.js follows the same
// transitions.
package autocomplete

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tbourn/healthline/internal/domain"
)

// Defaults for the widget.
const (
	DefaultMinRunes = 3
	DefaultDebounce = 300 * time.Millisecond
)

// State is the widget state.
type State int

const (
	Idle State = iota
	Pending
	ShowingSuggestions
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case ShowingSuggestions:
		return "showing_suggestions"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Event is an input to the machine.
type Event interface{ event() }

// InputChanged carries the text after a keystroke or paste.
type InputChanged struct{ Text string }

// DebounceElapsed fires when the timer armed by StartDebounce expires.
type DebounceElapsed struct{ Gen uint64 }

// ResponseReceived delivers the result of a Fetch. Err is treated as an
// empty result.
type ResponseReceived struct {
	Seq   uint64
	Items []domain.Suggestion
	Err   error
}

// SelectionMade picks the item at Index from the rendered list.
type SelectionMade struct{ Index int }

// Blur means the input lost focus.
type Blur struct{}

func (InputChanged) event()     {}
func (DebounceElapsed) event()  {}
func (ResponseReceived) event() {}
func (SelectionMade) event()    {}
func (Blur) event()             {}

// Effect is an instruction for the host.
type Effect interface{ effect() }

// StartDebounce asks the host to deliver DebounceElapsed{Gen} after Delay.
// Arming a new timer supersedes earlier ones.
type StartDebounce struct {
	Delay time.Duration
	Gen   uint64
}

// Fetch asks the host to look Query up and answer with ResponseReceived{Seq}.
type Fetch struct {
	Query string
	Seq   uint64
}

// Render redraws the suggestion list; an empty Items hides it.
type Render struct{ Items []domain.Suggestion }

func (StartDebounce) effect() {}
func (Fetch) effect()         {}
func (Render) effect()        {}

// Option configures a Machine.
type Option func(*Machine)

// WithMinRunes sets the shortest query that triggers a lookup.
func WithMinRunes(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.minRunes = n
		}
	}
}

// WithDebounce sets the idle delay before a lookup.
func WithDebounce(d time.Duration) Option {
	return func(m *Machine) {
		if d >= 0 {
			m.debounce = d
		}
	}
}

// Machine is the widget state. The zero value is not usable; call New.
// A Machine is not safe for concurrent use.
type Machine struct {
	minRunes int
	debounce time.Duration

	state State
	text  string
	items []domain.Suggestion

	// Bound fields filled by a selection.
	name, code string

	gen uint64 // debounce generation
	seq uint64 // lookup sequence
}

// New returns a Machine in the Idle state.
func New(opts ...Option) *Machine {
	m := &Machine{minRunes: DefaultMinRunes, debounce: DefaultDebounce}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Text returns the input text.
func (m *Machine) Text() string { return m.text }

// Selected returns the bound name and code, both empty unless the current
// text came from a selection.
func (m *Machine) Selected() (name, code string) { return m.name, m.code }

// Items returns the suggestions on display.
func (m *Machine) Items() []domain.Suggestion { return m.items }

// Handle applies ev and returns the effects to perform, in order.
func (m *Machine) Handle(ev Event) []Effect {
	switch e := ev.(type) {
	case InputChanged:
		return m.onInput(e.Text)
	case DebounceElapsed:
		if m.state != Pending || e.Gen != m.gen {
			return nil
		}
		m.seq++
		return []Effect{Fetch{Query: m.query(), Seq: m.seq}}
	case ResponseReceived:
		if m.state != Pending || e.Seq != m.seq {
			return nil
		}
		m.items = nil
		if e.Err == nil && len(e.Items) > 0 {
			m.items = e.Items
		}
		if len(m.items) == 0 {
			m.state = Idle
			return []Effect{Render{}}
		}
		m.state = ShowingSuggestions
		return []Effect{Render{Items: m.items}}
	case SelectionMade:
		if m.state != ShowingSuggestions || e.Index < 0 || e.Index >= len(m.items) {
			return nil
		}
		pick := m.items[e.Index]
		m.name, m.code, m.text = pick.Name, pick.Code, pick.Name
		return m.close()
	case Blur:
		return m.close()
	}
	return nil
}

func (m *Machine) onInput(text string) []Effect {
	if text == m.text && m.state != Closed {
		return nil
	}
	m.text = text
	if m.name != "" && text != m.name {
		m.name, m.code = "", ""
	}
	// Any edit invalidates the armed timer and the request in flight.
	m.gen++
	m.seq++

	if utf8.RuneCountInString(m.query()) < m.minRunes {
		hadList := len(m.items) > 0
		m.state, m.items = Idle, nil
		if hadList {
			return []Effect{Render{}}
		}
		return nil
	}
	m.state = Pending
	return []Effect{StartDebounce{Delay: m.debounce, Gen: m.gen}}
}

func (m *Machine) close() []Effect {
	m.state, m.items = Closed, nil
	m.gen++
	m.seq++
	return []Effect{Render{}}
}

func (m *Machine) query() string {
	return strings.ToLower(strings.TrimSpace(m.text))
}
