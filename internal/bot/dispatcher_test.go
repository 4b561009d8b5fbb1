package bot

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"
)

var errTest = errors.New("handler failed")

// stubContext implements just enough of tele.Context for dispatch and
// handler tests. Sent messages are recorded as plain strings.
type stubContext struct {
	tele.Context
	upd       tele.Update
	store     map[string]any
	sent      []string
	responded bool
}

func newStubContext(upd tele.Update) *stubContext {
	return &stubContext{upd: upd, store: make(map[string]any)}
}

func (s *stubContext) Update() tele.Update { return s.upd }

func (s *stubContext) Get(key string) any { return s.store[key] }

func (s *stubContext) Set(key string, val any) { s.store[key] = val }

func (s *stubContext) Sender() *tele.User {
	if s.upd.Callback != nil {
		return s.upd.Callback.Sender
	}
	if s.upd.Message != nil {
		return s.upd.Message.Sender
	}
	return nil
}

func (s *stubContext) Chat() *tele.Chat {
	if s.upd.Callback != nil && s.upd.Callback.Message != nil {
		return s.upd.Callback.Message.Chat
	}
	if s.upd.Message != nil {
		return s.upd.Message.Chat
	}
	return nil
}

func (s *stubContext) Text() string {
	if s.upd.Message != nil {
		return s.upd.Message.Text
	}
	return ""
}

func (s *stubContext) Message() *tele.Message { return s.upd.Message }

func (s *stubContext) Callback() *tele.Callback { return s.upd.Callback }

func (s *stubContext) Respond(resp ...*tele.CallbackResponse) error {
	s.responded = true
	return nil
}

func (s *stubContext) Send(what interface{}, opts ...interface{}) error {
	s.sent = append(s.sent, fmt.Sprint(what))
	return nil
}

func (s *stubContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return s.Send(what, opts...)
}

func textUpdate(text string) tele.Update {
	return tele.Update{
		ID: 1,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: 42},
			Chat:   &tele.Chat{ID: 100},
		},
	}
}

func TestDispatchFirstMatchWins(t *testing.T) {
	var h1Handled, h2Matched, h2Handled, h3Matched bool

	d := NewDispatcher(
		Binding{
			Name:   "h1",
			Match:  func(tele.Update) bool { return true },
			Handle: func(tele.Context) error { h1Handled = true; return nil },
		},
		Binding{
			Name:   "h2",
			Match:  func(tele.Update) bool { h2Matched = true; return true },
			Handle: func(tele.Context) error { h2Handled = true; return nil },
		},
		Binding{
			Name:   "h3",
			Match:  func(tele.Update) bool { h3Matched = true; return false },
			Handle: func(tele.Context) error { return nil },
		},
	)

	if err := d.Dispatch(newStubContext(textUpdate("hello"))); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if !h1Handled {
		t.Fatal("first matching handler must run")
	}
	if h2Matched || h2Handled {
		t.Fatal("later bindings must not even be evaluated after a match")
	}
	if h3Matched {
		t.Fatal("later bindings must not even be evaluated after a match")
	}
}

func TestDispatchRegistrationOrder(t *testing.T) {
	var ran []string
	mk := func(name string, match bool) Binding {
		return Binding{
			Name:   name,
			Match:  func(tele.Update) bool { return match },
			Handle: func(tele.Context) error { ran = append(ran, name); return nil },
		}
	}

	d := NewDispatcher(mk("skip", false), mk("first", true), mk("second", true))
	if err := d.Dispatch(newStubContext(textUpdate("x"))); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(ran) != 1 || ran[0] != "first" {
		t.Fatalf("ran = %v, want exactly [first]", ran)
	}
}

func TestDispatchDropsUnmatched(t *testing.T) {
	var handled bool
	d := NewDispatcher(Binding{
		Name:   "never",
		Match:  func(tele.Update) bool { return false },
		Handle: func(tele.Context) error { handled = true; return nil },
	})

	if err := d.Dispatch(newStubContext(textUpdate("x"))); err != nil {
		t.Fatalf("unmatched update must be dropped without error, got %v", err)
	}
	if handled {
		t.Fatal("no handler may run for an unmatched update")
	}
}

func TestDispatchContainsPanic(t *testing.T) {
	calls := 0
	d := NewDispatcher(Binding{
		Name:  "explosive",
		Match: func(tele.Update) bool { return true },
		Handle: func(tele.Context) error {
			calls++
			panic("boom")
		},
	})

	if err := d.Dispatch(newStubContext(textUpdate("x"))); err != nil {
		t.Fatalf("panic must be contained, got %v", err)
	}

	// The dispatcher stays usable after a contained panic.
	if err := d.Dispatch(newStubContext(textUpdate("y"))); err != nil {
		t.Fatalf("Dispatch after panic: %v", err)
	}
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
}

func TestDispatchHandlerErrorIsSwallowed(t *testing.T) {
	d := NewDispatcher(Binding{
		Name:   "failing",
		Match:  func(tele.Update) bool { return true },
		Handle: func(tele.Context) error { return errTest },
	})

	// Handler errors are logged at the boundary, never propagated to the
	// transport.
	if err := d.Dispatch(newStubContext(textUpdate("x"))); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}

func TestNewDispatcherSkipsInvalidBindings(t *testing.T) {
	d := NewDispatcher(
		Binding{Name: "no match"},
		Binding{Name: "ok", Match: func(tele.Update) bool { return true }, Handle: func(tele.Context) error { return nil }},
	)
	if len(d.bindings) != 1 {
		t.Fatalf("bindings = %d, want 1", len(d.bindings))
	}
}
