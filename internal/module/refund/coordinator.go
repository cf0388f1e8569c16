package refund

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storecraft/refund-server/internal/module/order"
)

// Submitter issues the single remote refund-creation call for a request.
// Implementations report failures as *RemoteError values.
type Submitter interface {
	Submit(ctx context.Context, req *Request) (*Refund, error)
}

// commitGate is a single-resolution token guarding the grace window between
// confirmation and commit. It is resolved exactly once, by either undo or
// commit, never by a clock. The absence of a timeout is deliberate: a
// session that never receives either signal stays in commit_pending until
// the session sweeper abandons it (the sweeper never commits).
type commitGate struct {
	once sync.Once
}

func newCommitGate() *commitGate {
	return &commitGate{}
}

// resolve settles the gate. Returns true if this call won the resolution.
func (g *commitGate) resolve() bool {
	won := false
	g.once.Do(func() { won = true })
	return won
}

// Totals are the derived amounts of the current selection, recomputed on
// every read.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Coordinator drives one refund attempt from amount entry through
// validation, confirmation, the undo grace window, and the remote commit.
// All state transitions happen under a single mutex; the only call made
// outside the lock is the remote submission itself.
type Coordinator struct {
	mu sync.Mutex

	id        uuid.UUID
	snapshot  *order.Snapshot
	selection *Selection
	sm        *StateMachine
	state     SessionState

	method        Method
	reason        string
	enteredAmount *decimal.Decimal // nil: derive from selection
	amount        decimal.Decimal  // validated amount, set by Proceed
	validation    ValidationResult

	gate          *commitGate
	submitEnabled bool
	outcome       *Outcome

	submitter Submitter
	logger    *zap.Logger

	createdAt    time.Time
	lastActivity time.Time
}

// NewCoordinator creates a coordinator for one refund attempt over the given
// order snapshot. The session starts in amount entry.
func NewCoordinator(snap *order.Snapshot, method Method, submitter Submitter, logger *zap.Logger) *Coordinator {
	now := time.Now()
	return &Coordinator{
		id:            uuid.New(),
		snapshot:      snap,
		selection:     NewSelection(snap),
		sm:            NewStateMachine(),
		state:         StateAmountEntry,
		method:        method,
		submitEnabled: true,
		submitter:     submitter,
		logger:        logger,
		createdAt:     now,
		lastActivity:  now,
	}
}

// ID returns the session ID.
func (c *Coordinator) ID() uuid.UUID {
	return c.id
}

// OrderID returns the order this session refunds.
func (c *Coordinator) OrderID() uuid.UUID {
	return c.snapshot.OrderID
}

// Snapshot returns the order snapshot the session was started with.
func (c *Coordinator) Snapshot() *order.Snapshot {
	return c.snapshot
}

// State returns the current session state.
func (c *Coordinator) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SubmitEnabled reports whether the submission form is enabled. It is
// false only while a confirmation/commit is pending; every terminal path
// re-enables it so the caller is never left stuck.
func (c *Coordinator) SubmitEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitEnabled
}

// Outcome returns the outcome of the last submission attempt, or nil.
func (c *Coordinator) Outcome() *Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Validation returns the result of the last Proceed call.
func (c *Coordinator) Validation() ValidationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validation
}

// LastActivity returns when the session was last touched.
func (c *Coordinator) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// IsSettled reports whether the session reached its terminal state.
func (c *Coordinator) IsSettled() bool {
	return c.State() == StateSettled
}

// --- Selection operations ---

// SetProductQuantity updates the refund quantity for a product line.
func (c *Coordinator) SetProductQuantity(itemID uuid.UUID, quantity int64) error {
	return c.mutateSelection(func() error {
		return c.selection.SetProductQuantity(itemID, quantity)
	})
}

// ToggleFee toggles a fee line.
func (c *Coordinator) ToggleFee(feeID uuid.UUID, selected bool) error {
	return c.mutateSelection(func() error {
		return c.selection.ToggleFee(feeID, selected)
	})
}

// ToggleShipping toggles a shipping line.
func (c *Coordinator) ToggleShipping(shippingID uuid.UUID, selected bool) error {
	return c.mutateSelection(func() error {
		return c.selection.ToggleShipping(shippingID, selected)
	})
}

// SelectAll selects every line at its maximum.
func (c *Coordinator) SelectAll() error {
	return c.mutateSelection(func() error {
		c.selection.SelectAll()
		return nil
	})
}

// ClearAll empties the selection.
func (c *Coordinator) ClearAll() error {
	return c.mutateSelection(func() error {
		c.selection.ClearAll()
		return nil
	})
}

// EnterAmount overrides the selection-derived amount with a manually entered
// one. Passing a nil-equivalent zero keeps the override; use the selection
// operations to go back to derived amounts.
func (c *Coordinator) EnterAmount(amount decimal.Decimal) error {
	return c.mutateSelection(func() error {
		c.enteredAmount = &amount
		return nil
	})
}

// mutateSelection applies a selection mutation. Mutations are allowed in
// amount entry; in awaiting_confirmation they move the session back to
// amount entry first, invalidating the earlier validation.
func (c *Coordinator) mutateSelection(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateAmountEntry:
	case StateAwaitingConfirmation:
		next, err := c.sm.Transition(c.state, StateAmountEntry)
		if err != nil {
			return err
		}
		c.state = next
		c.validation = ""
	default:
		return ErrSessionState
	}

	if err := fn(); err != nil {
		return err
	}
	c.lastActivity = time.Now()
	return nil
}

// Totals recomputes the selection's derived amounts.
func (c *Coordinator) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Totals{
		Subtotal: Subtotal(c.selection),
		Tax:      Tax(c.selection),
		Total:    Total(c.selection),
	}
}

// Amount returns the amount a submission would use right now: the manual
// override if one was entered, otherwise the selection total.
func (c *Coordinator) Amount() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentAmount()
}

func (c *Coordinator) currentAmount() decimal.Decimal {
	if c.enteredAmount != nil {
		return *c.enteredAmount
	}
	return Total(c.selection)
}

// MaxRefund returns the refundable headroom of the underlying order.
func (c *Coordinator) MaxRefund() decimal.Decimal {
	return c.snapshot.AvailableForRefund()
}

// --- Submission protocol ---

// Proceed validates the current amount against the refundable headroom.
// Only a valid amount advances the session to awaiting_confirmation; on
// failure the session stays in amount entry and the typed result tells the
// caller which message to surface.
func (c *Coordinator) Proceed() (ValidationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAmountEntry {
		return "", ErrSessionState
	}

	amount := c.currentAmount()
	result := ValidateAmount(amount, c.snapshot.AvailableForRefund())
	c.validation = result
	c.lastActivity = time.Now()
	if result != ValidationValid {
		c.logger.Debug("refund amount rejected",
			zap.String("session_id", c.id.String()),
			zap.String("amount", amount.String()),
			zap.String("result", string(result)),
		)
		return result, nil
	}

	next, err := c.sm.Transition(c.state, StateAwaitingConfirmation)
	if err != nil {
		return "", err
	}
	c.state = next
	c.amount = amount
	return result, nil
}

// Confirm accepts the refund reason and opens the undo grace window. The
// form is disabled until the window resolves; the commit gate is armed and
// will be resolved exactly once, by Undo or Commit.
func (c *Coordinator) Confirm(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCommitPending || c.state == StateCommitting {
		return ErrCommitInFlight
	}
	next, err := c.sm.Transition(c.state, StateCommitPending)
	if err != nil {
		return ErrSessionState
	}
	c.state = next
	c.reason = reason
	c.gate = newCommitGate()
	c.submitEnabled = false
	c.lastActivity = time.Now()

	c.logger.Info("refund pending, undo available",
		zap.String("session_id", c.id.String()),
		zap.String("order_id", c.snapshot.OrderID.String()),
		zap.String("amount", c.amount.String()),
	)
	return nil
}

// Undo abandons the pending commit during the grace window. No remote call
// is made; the form re-enables and the session returns to
// awaiting_confirmation. Once the commit has started, undo is too late.
func (c *Coordinator) Undo() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateCommitPending:
	case StateCommitting:
		return ErrUndoTooLate
	default:
		return ErrSessionState
	}

	if !c.gate.resolve() {
		return ErrUndoTooLate
	}
	next, err := c.sm.Transition(c.state, StateAwaitingConfirmation)
	if err != nil {
		return err
	}
	c.state = next
	c.gate = nil
	c.submitEnabled = true
	c.lastActivity = time.Now()

	c.logger.Info("refund undone during grace window",
		zap.String("session_id", c.id.String()),
		zap.String("order_id", c.snapshot.OrderID.String()),
	)
	return nil
}

// Commit resolves the grace window to "proceed" and issues exactly one
// remote refund-creation call. Success settles the session with the new
// refund ID; failure surfaces a typed outcome, re-enables the form, and
// returns the session to awaiting_confirmation so the caller may retry.
// Calling Commit while another commit is in flight is a programmer error.
func (c *Coordinator) Commit(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	if c.state == StateCommitting {
		c.mu.Unlock()
		return nil, ErrCommitInFlight
	}
	if c.state != StateCommitPending {
		c.mu.Unlock()
		return nil, ErrSessionState
	}
	if !c.gate.resolve() {
		c.mu.Unlock()
		return nil, ErrCommitAborted
	}

	next, err := c.sm.Transition(c.state, StateCommitting)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.state = next

	req := &Request{
		OrderID:   c.snapshot.OrderID,
		SessionID: c.id,
		Amount:    c.amount,
		Currency:  c.snapshot.Currency,
		Reason:    c.reason,
		Method:    c.method,
		Gateway:   c.snapshot.Gateway,
		ChargeRef: c.snapshot.ChargeRef,
		Lines:     c.selection.RequestLines(),
	}
	c.mu.Unlock()

	rec, submitErr := c.submitter.Submit(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = nil
	c.submitEnabled = true
	c.lastActivity = time.Now()

	if submitErr != nil {
		var remote *RemoteError
		if !errors.As(submitErr, &remote) {
			remote = &RemoteError{Kind: ErrorKindNetwork, Message: submitErr.Error(), Err: submitErr}
		}
		c.outcome = FailureOutcome(remote.Kind, remote.Message)
		c.state, _ = c.sm.Transition(c.state, StateAwaitingConfirmation)

		c.logger.Warn("refund commit failed",
			zap.String("session_id", c.id.String()),
			zap.String("order_id", c.snapshot.OrderID.String()),
			zap.String("error_kind", string(remote.Kind)),
			zap.Error(submitErr),
		)
		return c.outcome, nil
	}

	c.outcome = SuccessOutcome(rec.ID)
	c.state, _ = c.sm.Transition(c.state, StateSettled)

	c.logger.Info("refund committed",
		zap.String("session_id", c.id.String()),
		zap.String("order_id", c.snapshot.OrderID.String()),
		zap.String("refund_id", rec.ID.String()),
		zap.String("amount", c.amount.String()),
	)
	return c.outcome, nil
}
