// Package workflow runs user-initiated changes against the backends: one
// call per submission, a status message for the outcome and a full reload
// of the view on success.
package workflow

import (
	"context"
	"errors"
	"log/slog"

	"irriflow.dev/dashboard/pkg/logger"
	"irriflow.dev/dashboard/pkg/metrics"
)

// Failure messages shared by every view.
const (
	MsgSaveFailed    = "Error while saving"
	MsgRecordFailed  = "Error while recording"
	MsgDeleteFailed  = "Error while deleting"
	MsgUpdateFailed  = "Error while updating"
	MsgUnreachable   = "Could not reach the energy service"
	MsgCommandFailed = "The command was refused"
	MsgCommandDone   = "Command accepted"
)

// Outcome is what a submission ended with.
type Outcome string

const (
	// Succeeded means the call went through and the view was reloaded.
	Succeeded Outcome = "success"
	// Failed means the backend call failed; the form stays open.
	Failed Outcome = "failure"
	// Invalid means required fields were blank and nothing was sent.
	Invalid Outcome = "invalid"
	// Declined means the user did not confirm a destructive action.
	Declined Outcome = "declined"
	// Refused means a command reached the backend and was turned down.
	Refused Outcome = "refused"
)

// Refresher reloads every collection of a view.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

// Refresh calls f.
func (f RefreshFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

// Mutation is one create, update, record or delete call.
type Mutation struct {
	// Operation labels logs and metrics, e.g. "create_pump".
	Operation string
	// Required lists the form fields that must not be blank.
	Required []string
	// Success is shown after the call succeeds.
	Success string
	// Failure is shown after the call fails.
	Failure string
	// Do performs the backend call.
	Do func(ctx context.Context) error
}

// Command is a cross-service action whose verdict comes from the backend.
type Command struct {
	Operation string
	// Do returns the backend verdict and message. A non-nil error means the
	// backend could not be reached.
	Do func(ctx context.Context) (ok bool, message string, err error)
	// Unreachable is shown when Do returns an error. Defaults to MsgUnreachable.
	Unreachable string
	// Success is shown when the backend accepts without a message. Defaults
	// to MsgCommandDone.
	Success string
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger.Component(l, "workflow") }
}

// WithMetrics counts outcomes in m.
func WithMetrics(m *metrics.FrontendMetrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// Workflow reports through one status slot, typically a session's.
type Workflow struct {
	status  *StatusSlot
	logger  *slog.Logger
	metrics *metrics.FrontendMetrics
}

// New returns a workflow writing its messages to status.
func New(status *StatusSlot, opts ...Option) (*Workflow, error) {
	if status == nil {
		return nil, errors.New("status slot cannot be nil")
	}
	w := &Workflow{status: status, logger: logger.Component(nil, "workflow")}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Submit validates form, performs m and, on success, closes the form, shows
// m.Success and reloads the view through r. On failure the form keeps its
// values, m.Failure is shown and nothing is reloaded.
func (w *Workflow) Submit(ctx context.Context, form *Form, m Mutation, r Refresher) Outcome {
	if form != nil && !form.Validate(m.Required...) {
		w.logger.Debug("submission rejected, required fields blank", "operation", m.Operation, "missing", form.Missing)
		return w.done(m.Operation, Invalid)
	}

	if err := m.Do(ctx); err != nil {
		w.logger.Warn("mutation failed", "operation", m.Operation, "error", err)
		w.status.Error(m.Failure)
		return w.done(m.Operation, Failed)
	}

	if form != nil {
		form.Close()
	}
	w.status.Success(m.Success)
	w.reload(ctx, m.Operation, r)
	return w.done(m.Operation, Succeeded)
}

// Delete performs m only when the user confirmed. A declined delete issues
// no call and shows nothing.
func (w *Workflow) Delete(ctx context.Context, confirmed bool, m Mutation, r Refresher) Outcome {
	if !confirmed {
		return w.done(m.Operation, Declined)
	}
	return w.Submit(ctx, nil, m, r)
}

// Run performs a command and shows the backend message. Commands do not
// reload the view.
func (w *Workflow) Run(ctx context.Context, c Command) Outcome {
	ok, message, err := c.Do(ctx)
	if err != nil {
		text := c.Unreachable
		if text == "" {
			text = MsgUnreachable
		}
		w.logger.Warn("command failed", "operation", c.Operation, "error", err)
		w.status.Error(text)
		return w.done(c.Operation, Failed)
	}

	if !ok {
		if message == "" {
			message = MsgCommandFailed
		}
		w.status.Error(message)
		return w.done(c.Operation, Refused)
	}
	if message == "" {
		message = c.Success
	}
	if message == "" {
		message = MsgCommandDone
	}
	w.status.Success(message)
	return w.done(c.Operation, Succeeded)
}

func (w *Workflow) reload(ctx context.Context, operation string, r Refresher) {
	if r == nil {
		return
	}
	if err := r.Refresh(ctx); err != nil {
		w.logger.Warn("reload after mutation failed", "operation", operation, "error", err)
	}
}

func (w *Workflow) done(operation string, outcome Outcome) Outcome {
	w.metrics.ObserveMutation(operation, string(outcome))
	return outcome
}
