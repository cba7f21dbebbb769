package state

import (
	"context"
	"time"
)

// Mode classifies a context into exactly one conversation mode.
type Mode string

const (
	// ModeIdle indicates no flow is running for the actor.
	ModeIdle Mode = "idle"
	// ModeDirect indicates a flow talks to the actor directly.
	ModeDirect Mode = "direct"
	// ModeTopic indicates a flow driven by the actor is delivered into a forum topic.
	ModeTopic Mode = "topic"
)

// TargetUserIDVar is the variable mirroring UserContext.TargetUserID for flow conditions and handlers.
const TargetUserIDVar = "targetUserId"

// HistoryEntry records one executed step.
type HistoryEntry struct {
	Flow string    `json:"flow"`
	Step int       `json:"step"`
	At   time.Time `json:"timestamp"`
}

// UserContext is the persisted conversation state of one actor.
type UserContext struct {
	HumanID     int64          `json:"humanId"`
	CurrentFlow string         `json:"currentFlow"`
	CurrentStep int            `json:"currentStep"`
	Data        Bag            `json:"data"`
	StepHistory []HistoryEntry `json:"stepHistory"`

	MessageForwardingEnabled bool `json:"messageForwardingEnabled"`
	FlowMode                 bool `json:"flowMode"`

	FlowInTopic  bool   `json:"flowInTopic"`
	TopicID      *int64 `json:"topicId"`
	AdminChatID  *int64 `json:"adminChatId"`
	TargetUserID *int64 `json:"targetUserId"`
}

// NewUserContext builds an idle context with forwarding enabled.
func NewUserContext(humanID int64) *UserContext {
	return &UserContext{
		HumanID:                  humanID,
		Data:                     NewBag(),
		StepHistory:              []HistoryEntry{},
		MessageForwardingEnabled: true,
	}
}

// Mode reports the conversation mode of the context.
func (uc *UserContext) Mode() Mode {
	switch {
	case uc.FlowInTopic && uc.FlowMode:
		return ModeTopic
	case uc.FlowMode || uc.CurrentFlow != "":
		return ModeDirect
	default:
		return ModeIdle
	}
}

// SetFlowMode toggles flow mode; forwarding is always set to the opposite value.
func (uc *UserContext) SetFlowMode(on bool) {
	uc.FlowMode = on
	uc.MessageForwardingEnabled = !on
}

// SetTopic marks the context as running a topic-proxied flow.
func (uc *UserContext) SetTopic(topicID, adminChatID int64, targetUserID *int64) {
	uc.FlowInTopic = true
	uc.TopicID = &topicID
	uc.AdminChatID = &adminChatID
	uc.SetTargetUserID(targetUserID)
}

// SetTargetUserID writes the target actor and its mirrored data variable.
func (uc *UserContext) SetTargetUserID(targetUserID *int64) {
	if targetUserID == nil {
		uc.TargetUserID = nil
		uc.Data.Delete(TargetUserIDVar)
		return
	}
	id := *targetUserID
	uc.TargetUserID = &id
	uc.Data.Set(TargetUserIDVar, id)
}

// ClearTopic removes every topic-proxy field.
func (uc *UserContext) ClearTopic() {
	uc.FlowInTopic = false
	uc.TopicID = nil
	uc.AdminChatID = nil
	uc.TargetUserID = nil
	uc.Data.Delete(TargetUserIDVar)
}

// Begin positions the context at step 0 of flow and enters flow mode.
func (uc *UserContext) Begin(flow string) {
	uc.CurrentFlow = flow
	uc.CurrentStep = 0
	uc.SetFlowMode(true)
	uc.ClearTopic()
}

// Finish returns the context to idle.
func (uc *UserContext) Finish() {
	uc.SetFlowMode(false)
	uc.CurrentFlow = ""
	uc.CurrentStep = 0
	uc.ClearTopic()
}

// IsIdle reports whether no flow is active.
func (uc *UserContext) IsIdle() bool {
	return uc.CurrentFlow == "" && !uc.FlowMode && !uc.FlowInTopic
}

// AppendHistory records a step execution, keeping at most limit entries when limit > 0.
func (uc *UserContext) AppendHistory(flow string, step int, at time.Time, limit int) {
	uc.StepHistory = append(uc.StepHistory, HistoryEntry{Flow: flow, Step: step, At: at.UTC()})
	if limit > 0 && len(uc.StepHistory) > limit {
		uc.StepHistory = append([]HistoryEntry(nil), uc.StepHistory[len(uc.StepHistory)-limit:]...)
	}
}

// Normalize repairs field combinations that break the mode invariants and
// reports whether anything was changed.
func (uc *UserContext) Normalize() bool {
	changed := false
	if uc.Data.root == nil {
		uc.Data = NewBag()
	}
	if uc.CurrentFlow == "" && uc.CurrentStep != 0 {
		uc.CurrentStep = 0
		changed = true
	}
	if uc.FlowInTopic && (!uc.FlowMode || uc.TopicID == nil || uc.AdminChatID == nil) {
		uc.ClearTopic()
		changed = true
	}
	if !uc.FlowInTopic && (uc.TopicID != nil || uc.AdminChatID != nil) {
		uc.TopicID = nil
		uc.AdminChatID = nil
		changed = true
	}
	if uc.CurrentStep < 0 {
		uc.CurrentStep = 0
		changed = true
	}
	if uc.StepHistory == nil {
		uc.StepHistory = []HistoryEntry{}
	}
	return changed
}

// Repository persists context blobs keyed by external actor id.
type Repository interface {
	LoadContext(ctx context.Context, externalID int64) ([]byte, bool, error)
	SaveContext(ctx context.Context, externalID int64, blob []byte) error
}

// IdentityResolver maps an external actor id to its internal identity.
type IdentityResolver interface {
	ResolveInternalID(ctx context.Context, externalID int64) (int64, bool, error)
}
