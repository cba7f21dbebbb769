package engine

// Outcome classifies how an entry point finished.
type Outcome string

const (
	// OutcomeOK means the event was consumed and any transition ran.
	OutcomeOK Outcome = "ok"
	// OutcomeIgnored means the event did not apply to the actor's state.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeFailed means a configuration, store, transport or handler failure stopped processing.
	OutcomeFailed Outcome = "failed"
)

// Reasons attached to results.
const (
	ReasonUnknownActor    = "unknown_actor"
	ReasonIdle            = "idle"
	ReasonFlowNotFound    = "flow_not_found"
	ReasonEmptyFlow       = "empty_flow"
	ReasonStepNotFound    = "step_not_found"
	ReasonNoAdminChat     = "no_admin_chat"
	ReasonNotInTopic      = "not_in_topic"
	ReasonNoWaitState     = "no_wait_state"
	ReasonInvalidInput    = "invalid_input"
	ReasonAwaitingInput   = "awaiting_input"
	ReasonAwaitingChoice  = "awaiting_choice"
	ReasonHandlerNotFound = "handler_not_found"
	ReasonHandlerFailed   = "handler_failed"
	ReasonUnresolved      = "unresolved_callback"
	ReasonUnknownAction   = "unknown_action"
	ReasonStore           = "store_unavailable"
	ReasonTransport       = "transport_failed"
	ReasonHopLimit        = "hop_limit"
	ReasonPanic           = "panic"
	ReasonStale           = "stale"
)

// Result reports the classification of an engine entry point call.
type Result struct {
	Outcome Outcome
	Reason  string
	Err     error
}

// OK reports whether the outcome is OutcomeOK.
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

func okResult(reason string) Result {
	return Result{Outcome: OutcomeOK, Reason: reason}
}

func ignored(reason string) Result {
	return Result{Outcome: OutcomeIgnored, Reason: reason}
}

func failed(reason string, err error) Result {
	return Result{Outcome: OutcomeFailed, Reason: reason, Err: err}
}
