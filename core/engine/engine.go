// Package engine interprets flows against per-actor contexts. Every public entry
// point is guarded: failures are logged and reported through Result, never
// returned as errors or panics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/flowbot/core/flow"
	"github.com/m3rciful/flowbot/core/flow/condition"
	"github.com/m3rciful/flowbot/core/logger"
	"github.com/m3rciful/flowbot/core/state"
)

const component = "engine"

// DefaultMaxHops bounds the steps executed for one inbound event.
const DefaultMaxHops = 64

// Options wires an Engine.
type Options struct {
	Registry  *flow.Registry
	Contexts  *state.Manager
	Transport Transport
	Handlers  *Handlers
	// Conditions defaults to an evaluator with a 30 minute program cache.
	Conditions *condition.Evaluator
	// Scheduler defaults to TimerScheduler.
	Scheduler Scheduler
	// DefaultAdminChatID is used by StartTopicFlow when no chat id is given.
	DefaultAdminChatID int64
	MaxHops            int
}

// Engine is the flow interpreter.
type Engine struct {
	registry   *flow.Registry
	contexts   *state.Manager
	transport  Transport
	handlers   *Handlers
	conditions *condition.Evaluator
	scheduler  Scheduler
	adminChat  int64
	maxHops    int
}

// New validates opts and builds an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Registry == nil || opts.Contexts == nil || opts.Transport == nil {
		return nil, errors.New("engine: registry, contexts and transport are required")
	}
	if opts.Handlers == nil {
		opts.Handlers = NewHandlers()
	}
	if opts.Conditions == nil {
		opts.Conditions = condition.NewEvaluator(0)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler{}
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}
	return &Engine{
		registry:   opts.Registry,
		contexts:   opts.Contexts,
		transport:  opts.Transport,
		handlers:   opts.Handlers,
		conditions: opts.Conditions,
		scheduler:  opts.Scheduler,
		adminChat:  opts.DefaultAdminChatID,
		maxHops:    opts.MaxHops,
	}, nil
}

// Registry returns the flow registry the engine reads.
func (e *Engine) Registry() *flow.Registry {
	return e.registry
}

// Contexts returns the context manager.
func (e *Engine) Contexts() *state.Manager {
	return e.contexts
}

// Handlers returns the custom handler registry.
func (e *Engine) Handlers() *Handlers {
	return e.handlers
}

type runKey struct{}

// run counts step executions of one inbound event, across nested entry points.
type run struct {
	hops int
}

func (e *Engine) begin(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger.RIDFrom(ctx) == "" {
		ctx = logger.WithRID(ctx, uuid.NewString())
	}
	if _, ok := ctx.Value(runKey{}).(*run); !ok {
		ctx = context.WithValue(ctx, runKey{}, &run{})
	}
	return ctx
}

func (e *Engine) guard(ctx context.Context, op string, actor int64, res *Result) {
	r := recover()
	if r == nil {
		return
	}
	logger.Error(ctx, component, "engine.panic",
		slog.String("op", op),
		slog.Int64("user_id", actor),
		slog.String("err", fmt.Sprint(r)),
		slog.String("stack", logger.SanitizeLimit(string(debug.Stack()), 2048)),
	)
	*res = failed(ReasonPanic, fmt.Errorf("panic in %s: %v", op, r))
}

func (e *Engine) hop(ctx context.Context) bool {
	rn, ok := ctx.Value(runKey{}).(*run)
	if !ok {
		return true
	}
	rn.hops++
	return rn.hops <= e.maxHops
}

// StartFlow starts flow name for actor in direct mode and executes its first step.
func (e *Engine) StartFlow(ctx context.Context, actor int64, name string) (res Result) {
	ctx = e.begin(ctx)
	defer e.guard(ctx, "start_flow", actor, &res)
	return e.startFlow(ctx, actor, name, nil)
}

// TopicOptions are the optional parameters of StartTopicFlow.
type TopicOptions struct {
	TargetUserID *int64
	AdminChatID  *int64
}

// StartTopicFlow starts flow name for an admin whose messages go into a forum topic.
// The admin context must exist. The chat id is taken from opts, then the engine
// default, then the admin context.
func (e *Engine) StartTopicFlow(ctx context.Context, admin, topicID int64, name string, opts TopicOptions) (res Result) {
	ctx = e.begin(ctx)
	defer e.guard(ctx, "start_topic_flow", admin, &res)

	uc, ok := e.contexts.GetContext(ctx, admin)
	if !ok {
		logger.Error(ctx, component, "topic_flow.no_admin_context",
			slog.Int64("user_id", admin),
			slog.String("flow", name),
		)
		return ignored(ReasonUnknownActor)
	}

	var chatID int64
	switch {
	case opts.AdminChatID != nil:
		chatID = *opts.AdminChatID
	case e.adminChat != 0:
		chatID = e.adminChat
	case uc.AdminChatID != nil:
		chatID = *uc.AdminChatID
	default:
		logger.Error(ctx, component, "topic_flow.no_admin_chat",
			slog.Int64("user_id", admin),
			slog.Int64("topic_id", topicID),
			slog.String("flow", name),
		)
		return failed(ReasonNoAdminChat, errors.New("no admin chat id"))
	}

	return e.startFlow(ctx, admin, name, &topicBinding{
		topicID: topicID,
		chatID:  chatID,
		target:  opts.TargetUserID,
	})
}

// GoToStep moves actor to the step with the given id, or to a literal index, and executes it.
func (e *Engine) GoToStep(ctx context.Context, actor int64, ref string) (res Result) {
	ctx = e.begin(ctx)
	defer e.guard(ctx, "go_to_step", actor, &res)
	return e.goToRef(ctx, actor, ref)
}

// GoToIndex moves actor to step index and executes it.
func (e *Engine) GoToIndex(ctx context.Context, actor int64, index int) (res Result) {
	ctx = e.begin(ctx)
	defer e.guard(ctx, "go_to_step", actor, &res)
	return e.goTo(ctx, actor, index)
}

// CompleteFlow returns actor to idle. Completing an idle context changes nothing.
func (e *Engine) CompleteFlow(ctx context.Context, actor int64) (res Result) {
	ctx = e.begin(ctx)
	defer e.guard(ctx, "complete_flow", actor, &res)
	return e.complete(ctx, actor)
}

type topicBinding struct {
	topicID int64
	chatID  int64
	target  *int64
}

func (e *Engine) startFlow(ctx context.Context, actor int64, name string, topic *topicBinding) Result {
	f, ok := e.registry.Flow(name)
	if !ok {
		logger.Warn(ctx, component, "flow.not_found",
			slog.Int64("user_id", actor),
			slog.String("flow", name),
		)
		return failed(ReasonFlowNotFound, fmt.Errorf("flow %q not found", name))
	}

	uc, ok := e.contexts.GetOrCreateContext(ctx, actor)
	if !ok {
		return ignored(ReasonUnknownActor)
	}
	uc.Begin(f.Name)
	clearWaitState(uc)
	if topic != nil {
		uc.SetTopic(topic.topicID, topic.chatID, topic.target)
	}
	if !e.contexts.SaveContext(ctx, actor, uc) {
		return failed(ReasonStore, errors.New("context not saved"))
	}

	attrs := []slog.Attr{
		slog.Int64("user_id", actor),
		slog.String("flow", f.Name),
		slog.String("mode", string(uc.Mode())),
	}
	if topic != nil {
		attrs = append(attrs,
			slog.Int64("topic_id", topic.topicID),
			slog.Int64("chat_id", topic.chatID),
		)
		if topic.target != nil {
			attrs = append(attrs, slog.Int64("target_user_id", *topic.target))
		}
	}
	logger.Info(ctx, component, "flow.start", attrs...)

	if f.Len() == 0 {
		logger.Warn(ctx, component, "flow.empty",
			slog.Int64("user_id", actor),
			slog.String("flow", f.Name),
		)
		return ignored(ReasonEmptyFlow)
	}
	return e.executeStep(ctx, actor)
}

// startFlowFrom starts a flow from within a running one, keeping topic mode.
func (e *Engine) startFlowFrom(ctx context.Context, actor int64, name string) Result {
	uc, ok := e.contexts.GetContext(ctx, actor)
	if ok && uc.FlowInTopic && uc.TopicID != nil && uc.AdminChatID != nil {
		return e.startFlow(ctx, actor, name, &topicBinding{
			topicID: *uc.TopicID,
			chatID:  *uc.AdminChatID,
			target:  uc.TargetUserID,
		})
	}
	return e.startFlow(ctx, actor, name, nil)
}

func (e *Engine) activeFlow(ctx context.Context, actor int64) (*state.UserContext, *flow.Flow, Result, bool) {
	uc, ok := e.contexts.GetContext(ctx, actor)
	if !ok {
		return nil, nil, ignored(ReasonUnknownActor), false
	}
	if uc.CurrentFlow == "" {
		return uc, nil, ignored(ReasonIdle), false
	}
	f, ok := e.registry.Flow(uc.CurrentFlow)
	if !ok {
		logger.Error(ctx, component, "flow.not_found",
			slog.Int64("user_id", actor),
			slog.String("flow", uc.CurrentFlow),
		)
		return uc, nil, failed(ReasonFlowNotFound, fmt.Errorf("active flow %q not found", uc.CurrentFlow)), false
	}
	return uc, f, Result{}, true
}

func (e *Engine) goToRef(ctx context.Context, actor int64, ref string) Result {
	uc, f, res, ok := e.activeFlow(ctx, actor)
	if !ok {
		return res
	}
	idx, found := f.IndexOf(ref)
	if !found {
		n, err := strconv.Atoi(ref)
		if err != nil || n < 0 || n >= f.Len() {
			logger.Error(ctx, component, "step.not_found",
				slog.Int64("user_id", actor),
				slog.String("flow", f.Name),
				slog.String("step_ref", ref),
			)
			return failed(ReasonStepNotFound, fmt.Errorf("step %q not found in flow %q", ref, f.Name))
		}
		idx = n
	}
	return e.moveTo(ctx, actor, uc, f, idx)
}

func (e *Engine) goTo(ctx context.Context, actor int64, index int) Result {
	uc, f, res, ok := e.activeFlow(ctx, actor)
	if !ok {
		return res
	}
	if index < 0 || index >= f.Len() {
		logger.Error(ctx, component, "step.out_of_range",
			slog.Int64("user_id", actor),
			slog.String("flow", f.Name),
			slog.Int("index", index),
		)
		return failed(ReasonStepNotFound, fmt.Errorf("step %d out of range in flow %q", index, f.Name))
	}
	return e.moveTo(ctx, actor, uc, f, index)
}

func (e *Engine) moveTo(ctx context.Context, actor int64, uc *state.UserContext, f *flow.Flow, index int) Result {
	uc.CurrentStep = index
	if !e.contexts.SaveContext(ctx, actor, uc) {
		return failed(ReasonStore, errors.New("context not saved"))
	}
	return e.executeStep(ctx, actor)
}

func (e *Engine) complete(ctx context.Context, actor int64) Result {
	uc, ok := e.contexts.GetContext(ctx, actor)
	if !ok {
		return ignored(ReasonUnknownActor)
	}
	_, waiting := ReadWaitState(uc)
	if uc.IsIdle() && uc.CurrentStep == 0 && !waiting {
		return ignored(ReasonIdle)
	}
	finished := uc.CurrentFlow
	uc.Finish()
	clearWaitState(uc)
	if !e.contexts.SaveContext(ctx, actor, uc) {
		return failed(ReasonStore, errors.New("context not saved"))
	}
	logger.Info(ctx, component, "flow.complete",
		slog.Int64("user_id", actor),
		slog.String("flow", finished),
	)
	return okResult("")
}

// transition follows nextFlow, then nextStepID, and completes the flow when both are empty.
func (e *Engine) transition(ctx context.Context, actor int64, nextFlow, nextStepID string) Result {
	switch {
	case nextFlow != "":
		return e.startFlowFrom(ctx, actor, nextFlow)
	case nextStepID != "":
		return e.goToRef(ctx, actor, nextStepID)
	default:
		return e.complete(ctx, actor)
	}
}

// resume continues a flow after a delay if the actor has not moved on.
func (e *Engine) resume(parent context.Context, actor int64, flowName string, index int, step flow.Step) {
	ctx := context.WithValue(context.WithoutCancel(parent), runKey{}, &run{})
	var res Result
	defer e.guard(ctx, "delay", actor, &res)

	uc, ok := e.contexts.GetContext(ctx, actor)
	if !ok || uc.CurrentFlow != flowName || uc.CurrentStep != index {
		logger.Debug(ctx, component, "delay.stale",
			slog.Int64("user_id", actor),
			slog.String("flow", flowName),
			slog.Int("index", index),
		)
		return
	}
	res = e.transition(ctx, actor, step.NextFlow, step.NextStepID)
	logResult(ctx, "delay.resume", actor, res)
}

func logResult(ctx context.Context, event string, actor int64, res Result) {
	attrs := []slog.Attr{
		slog.Int64("user_id", actor),
		slog.String("outcome", string(res.Outcome)),
		slog.String("reason", res.Reason),
	}
	if res.Err != nil {
		attrs = append(attrs, logger.Err(res.Err))
	}
	level := logger.Debug
	if res.Outcome == OutcomeFailed {
		level = logger.Warn
	}
	level(ctx, component, event, attrs...)
}

func since(start time.Time) slog.Attr {
	return slog.Duration("duration", logger.Took(start))
}
