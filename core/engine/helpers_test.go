package engine

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/flowbot/core/flow"
	"github.com/m3rciful/flowbot/core/state"
	"github.com/m3rciful/flowbot/core/store"
)

const testFlows = `
flows:
  onboarding:
    steps:
      - id: welcome
        type: message
        text: Welcome!
        keyboard: yes_no
        next_step: ask_email
      - id: ask_email
        type: wait_input
        text: Your email?
        save_to: profile.email
        validation:
          type: email
          error_message: Bad email
        next_step: step2
      - id: step2
        type: message
        text: Thanks
  chain:
    steps:
      - type: message
        text: one
        next_step: two
      - id: two
        type: message
        text: two
  branch:
    steps:
      - type: condition
        condition: data.age >= 18
        true_step: adult
        false_flow: minors
      - id: adult
        type: message
        text: adult
  minors:
    steps:
      - type: message
        text: minor
  broken_cond:
    steps:
      - type: condition
        condition: data.x.y.z == 1
        true_step: yes
        false_step: no
      - id: "yes"
        type: message
        text: "yes"
      - id: "no"
        type: message
        text: "no"
  loop:
    steps:
      - id: spin
        type: condition
        condition: "true"
        true_step: spin
  failing_handler:
    steps:
      - type: handler
        handler: boom
        next_step: after
      - id: after
        type: message
        text: after
  mover:
    steps:
      - type: handler
        handler: jump
        next_step: skipped
      - id: skipped
        type: message
        text: skipped
      - id: target
        type: wait_input
        text: target
        save_to: t
  missing_handler:
    steps:
      - type: handler
        handler: nope
        next_step: after
      - id: after
        type: message
        text: after
  pick:
    steps:
      - id: select
        type: dynamic_callback
        handler: options
        save_to: choice
        next_step: done
      - id: done
        type: message
        text: picked
  pick_flow:
    steps:
      - id: select2
        type: dynamic_callback
        handler: options
        save_to: choice
        next_flow: chain
        next_step: done
      - id: done
        type: message
        text: picked
  delayed:
    steps:
      - type: delay
        duration: 5s
        next_step: after
      - id: after
        type: message
        text: later
  fwd:
    steps:
      - type: forwarding_control
        action: enable
        next_step: hold
      - id: hold
        type: wait_input
        text: hold
        save_to: held
  dyn:
    steps:
      - type: dynamic
        handler: greeting
  menu:
    steps:
      - type: callback
        buttons:
          - text: A
            value: a
            save_to: answer
            next_step: done
      - id: done
        type: message
        text: ok
  transfer:
    steps:
      - type: flow
        flow: chain
  survey:
    steps:
      - type: wait_input
        text: Rate?
        save_to: rating
        validation:
          type: number
        next_step: thanks
      - id: thanks
        type: message
        text: thx
  topic_transfer:
    steps:
      - type: flow
        flow: survey
  empty:
    steps: []
keyboards:
  yes_no:
    - - text: "Yes"
        payload: "yes"
      - text: "No"
        payload: "no"
callbacks:
  restart:
    action: start_flow
    flow: chain
  set_lang:
    action: set_variable
    variable: lang
    value: en
  run_boom:
    action: handler
    handler: boom
`

type sent struct {
	Dest Destination
	Text string
	KB   flow.Keyboard
}

type recorder struct {
	mu    sync.Mutex
	msgs  []sent
	err   error
	panic bool
}

func (r *recorder) record(d Destination, text string, kb flow.Keyboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panic {
		panic("transport exploded")
	}
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, sent{Dest: d, Text: text, KB: kb})
	return nil
}

func (r *recorder) SendMessage(_ context.Context, actorID int64, text string) error {
	return r.record(Direct(actorID), text, nil)
}

func (r *recorder) SendMessageWithKeyboard(_ context.Context, actorID int64, text string, kb flow.Keyboard) error {
	return r.record(Direct(actorID), text, kb)
}

func (r *recorder) SendMessageToTopic(_ context.Context, chatID, topicID int64, text string) error {
	return r.record(Topic(chatID, topicID), text, nil)
}

func (r *recorder) SendMessageWithKeyboardToTopic(_ context.Context, chatID, topicID int64, text string, kb flow.Keyboard) error {
	return r.record(Topic(chatID, topicID), text, kb)
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Text)
	}
	return out
}

func (r *recorder) last() sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[len(r.msgs)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

type manualScheduler struct {
	mu    sync.Mutex
	fns   []func()
	delay []time.Duration
}

func (s *manualScheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
	s.delay = append(s.delay, d)
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type harness struct {
	eng   *Engine
	out   *recorder
	mgr   *state.Manager
	mem   *store.Memory
	sched *manualScheduler
}

const (
	actor = int64(42)
	admin = int64(7)
)

func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()
	reg, err := flow.Parse([]byte(testFlows))
	require.NoError(t, err)

	ctx := context.Background()
	mem := store.NewMemory(store.MemoryOptions{})
	for _, id := range []int64{actor, admin} {
		_, err := mem.EnsureUser(ctx, id, "")
		require.NoError(t, err)
	}
	mgr := state.NewManager(mem, mem, state.Options{})

	handlers := NewHandlers()
	handlers.Handle("boom", func(context.Context, Call) error {
		return errors.New("boom")
	})
	handlers.Handle("jump", func(ctx context.Context, c Call) error {
		c.Engine.GoToStep(ctx, c.ActorID, "target")
		return nil
	})
	handlers.Content("greeting", func(_ context.Context, c Call) (string, error) {
		return "Hello " + strconv.FormatInt(c.ActorID, 10), nil
	})
	handlers.Menu("options", func(context.Context, Call) (Menu, error) {
		return Menu{Message: "Pick one", Buttons: []MenuButton{{Text: "One", Value: "1"}, {Text: "Two", Value: "2"}}}, nil
	})

	h := &harness{out: &recorder{}, mgr: mgr, mem: mem, sched: &manualScheduler{}}
	o := Options{
		Registry:  reg,
		Contexts:  mgr,
		Transport: h.out,
		Handlers:  handlers,
		Scheduler: h.sched,
	}
	for _, fn := range opts {
		fn(&o)
	}
	h.eng, err = New(o)
	require.NoError(t, err)
	return h
}

func (h *harness) ctx(t *testing.T, id int64) *state.UserContext {
	t.Helper()
	uc, ok := h.mgr.GetContext(context.Background(), id)
	require.True(t, ok)
	return uc
}

func (h *harness) blob(t *testing.T, id int64) []byte {
	t.Helper()
	b, _, err := h.mem.LoadContext(context.Background(), id)
	require.NoError(t, err)
	return b
}

func ptr(v int64) *int64 {
	return &v
}
