package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/m3rciful/flowbot/core/logger"
)

const component = "state"

// DefaultHistoryLimit bounds the persisted step history.
const DefaultHistoryLimit = 100

// Options tunes a Manager.
type Options struct {
	HistoryLimit int
	Now          func() time.Time
}

// Manager loads, creates and persists user contexts. Every operation degrades to a
// neutral value when the repository fails; failures are logged, never returned.
type Manager struct {
	repo         Repository
	ids          IdentityResolver
	historyLimit int
	now          func() time.Time
}

// NewManager wires a Manager over the given repository and identity resolver.
func NewManager(repo Repository, ids IdentityResolver, opts Options) *Manager {
	if opts.HistoryLimit == 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		repo:         repo,
		ids:          ids,
		historyLimit: opts.HistoryLimit,
		now:          opts.Now,
	}
}

// HistoryLimit returns the number of history entries kept per context.
func (m *Manager) HistoryLimit() int {
	return m.historyLimit
}

// Now returns the manager clock reading.
func (m *Manager) Now() time.Time {
	return m.now()
}

func (m *Manager) resolve(ctx context.Context, externalID int64) (int64, bool) {
	internalID, ok, err := m.ids.ResolveInternalID(ctx, externalID)
	if err != nil {
		logger.Error(ctx, component, "identity.resolve_failed",
			slog.Int64("user_id", externalID),
			logger.Err(err),
		)
		return 0, false
	}
	if !ok {
		logger.Debug(ctx, component, "identity.unknown",
			slog.Int64("user_id", externalID),
		)
		return 0, false
	}
	return internalID, true
}

func (m *Manager) load(ctx context.Context, externalID, internalID int64) (*UserContext, bool) {
	blob, found, err := m.repo.LoadContext(ctx, externalID)
	if err != nil {
		logger.Error(ctx, component, "context.load_failed",
			slog.Int64("user_id", externalID),
			logger.Err(err),
		)
		return nil, false
	}
	if !found {
		return nil, false
	}

	uc := NewUserContext(internalID)
	if err := json.Unmarshal(blob, uc); err != nil {
		logger.Warn(ctx, component, "context.decode_failed",
			slog.Int64("user_id", externalID),
			logger.Err(err),
		)
		uc = NewUserContext(internalID)
	}
	uc.HumanID = internalID
	if uc.Normalize() {
		logger.Warn(ctx, component, "context.normalized",
			slog.Int64("user_id", externalID),
			slog.String("flow", uc.CurrentFlow),
		)
	}
	return uc, true
}

// GetContext returns the stored context of an actor. An unknown actor or a missing
// context yields false; an undecodable blob yields a default context.
func (m *Manager) GetContext(ctx context.Context, externalID int64) (*UserContext, bool) {
	internalID, ok := m.resolve(ctx, externalID)
	if !ok {
		return nil, false
	}
	return m.load(ctx, externalID, internalID)
}

// CreateContext persists and returns a default context. It returns nil when the
// context could not be saved.
func (m *Manager) CreateContext(ctx context.Context, externalID, internalID int64) *UserContext {
	uc := NewUserContext(internalID)
	if !m.SaveContext(ctx, externalID, uc) {
		return nil
	}
	logger.Debug(ctx, component, "context.created",
		slog.Int64("user_id", externalID),
	)
	return uc
}

// GetOrCreateContext returns the stored context, creating a default one for known actors.
func (m *Manager) GetOrCreateContext(ctx context.Context, externalID int64) (*UserContext, bool) {
	internalID, ok := m.resolve(ctx, externalID)
	if !ok {
		return nil, false
	}
	if uc, ok := m.load(ctx, externalID, internalID); ok {
		return uc, true
	}
	uc := m.CreateContext(ctx, externalID, internalID)
	return uc, uc != nil
}

// SaveContext overwrites the stored context. There is no version check: the last writer wins.
func (m *Manager) SaveContext(ctx context.Context, externalID int64, uc *UserContext) bool {
	if uc == nil {
		return false
	}
	uc.Normalize()
	if m.historyLimit > 0 && len(uc.StepHistory) > m.historyLimit {
		uc.StepHistory = append([]HistoryEntry(nil), uc.StepHistory[len(uc.StepHistory)-m.historyLimit:]...)
	}
	blob, err := json.Marshal(uc)
	if err != nil {
		logger.Error(ctx, component, "context.encode_failed",
			slog.Int64("user_id", externalID),
			logger.Err(err),
		)
		return false
	}
	if err := m.repo.SaveContext(ctx, externalID, blob); err != nil {
		logger.Error(ctx, component, "context.save_failed",
			slog.Int64("user_id", externalID),
			logger.Err(err),
		)
		return false
	}
	return true
}

// UpdateContext applies fn to the stored context and saves it. A missing context is a
// logged no-op.
func (m *Manager) UpdateContext(ctx context.Context, externalID int64, fn func(uc *UserContext)) bool {
	uc, ok := m.GetContext(ctx, externalID)
	if !ok {
		logger.Warn(ctx, component, "context.update_missing",
			slog.Int64("user_id", externalID),
		)
		return false
	}
	fn(uc)
	return m.SaveContext(ctx, externalID, uc)
}

// SetVariable stores value at the dot path and persists the whole context.
func (m *Manager) SetVariable(ctx context.Context, externalID int64, path string, value any) bool {
	ok := true
	updated := m.UpdateContext(ctx, externalID, func(uc *UserContext) {
		ok = uc.Data.Set(path, value)
	})
	if updated && !ok {
		logger.Warn(ctx, component, "variable.invalid_path",
			slog.Int64("user_id", externalID),
			slog.String("path", path),
		)
	}
	return updated && ok
}

// GetVariable reads the value at the dot path.
func (m *Manager) GetVariable(ctx context.Context, externalID int64, path string) (any, bool) {
	uc, ok := m.GetContext(ctx, externalID)
	if !ok {
		return nil, false
	}
	return uc.Data.Get(path)
}

// DeleteVariable removes the value at the dot path.
func (m *Manager) DeleteVariable(ctx context.Context, externalID int64, path string) bool {
	return m.UpdateContext(ctx, externalID, func(uc *UserContext) {
		uc.Data.Delete(path)
	})
}

// EnableMessageForwarding turns relaying of ordinary messages on.
func (m *Manager) EnableMessageForwarding(ctx context.Context, externalID int64) bool {
	return m.UpdateContext(ctx, externalID, func(uc *UserContext) {
		uc.MessageForwardingEnabled = true
	})
}

// DisableMessageForwarding turns relaying of ordinary messages off.
func (m *Manager) DisableMessageForwarding(ctx context.Context, externalID int64) bool {
	return m.UpdateContext(ctx, externalID, func(uc *UserContext) {
		uc.MessageForwardingEnabled = false
	})
}

// IsMessageForwardingEnabled reports the forwarding flag; unknown actors report false.
func (m *Manager) IsMessageForwardingEnabled(ctx context.Context, externalID int64) bool {
	uc, ok := m.GetContext(ctx, externalID)
	return ok && uc.MessageForwardingEnabled
}

// EnterFlowMode sets flow mode and disables forwarding in one write.
func (m *Manager) EnterFlowMode(ctx context.Context, externalID int64) bool {
	return m.UpdateContext(ctx, externalID, func(uc *UserContext) {
		uc.SetFlowMode(true)
	})
}

// ExitFlowMode clears flow mode and restores forwarding in one write.
func (m *Manager) ExitFlowMode(ctx context.Context, externalID int64) bool {
	return m.UpdateContext(ctx, externalID, func(uc *UserContext) {
		uc.SetFlowMode(false)
	})
}

// IsInFlowMode reports whether a flow is active; unknown actors report false.
func (m *Manager) IsInFlowMode(ctx context.Context, externalID int64) bool {
	uc, ok := m.GetContext(ctx, externalID)
	return ok && uc.FlowMode
}
