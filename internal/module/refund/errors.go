package refund

import "errors"

// Module errors.
var (
	ErrSessionNotFound   = errors.New("refund session not found")
	ErrRefundNotFound    = errors.New("refund not found")
	ErrLineNotFound      = errors.New("refund line not found")
	ErrInvalidQuantity   = errors.New("quantity outside refundable range")
	ErrSessionState      = errors.New("operation not allowed in current session state")
	ErrCommitInFlight    = errors.New("a commit is already in flight")
	ErrUndoTooLate       = errors.New("commit already proceeding, undo window closed")
	ErrCommitAborted     = errors.New("commit was undone during the grace window")
	ErrMethodNotAllowed  = errors.New("refund method not supported for this order")
	ErrInvalidTransition = errors.New("invalid session state transition")
)
