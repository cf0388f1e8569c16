package refund

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/storecraft/refund-server/internal/module/currency"
	"github.com/storecraft/refund-server/internal/module/order"
	"github.com/storecraft/refund-server/internal/module/refund/gateway"
	apperrors "github.com/storecraft/refund-server/internal/shared/errors"
	"github.com/storecraft/refund-server/internal/shared/metrics"
)

// Config holds refund service configuration.
type Config struct {
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// Service owns refund sessions and performs the remote side of a commit:
// one gateway call behind a circuit breaker, then a durable refund record.
// It implements Submitter for its coordinators.
type Service struct {
	orders   *order.Service
	repo     Repository
	registry *gateway.Registry
	metrics  *metrics.Metrics
	logger   *zap.Logger

	breakerMu sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker[*gateway.Result]

	sessionMu sync.RWMutex
	sessions  map[uuid.UUID]*Coordinator

	sessionTTL    time.Duration
	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
}

// NewService creates a refund service.
func NewService(
	orders *order.Service,
	repo Repository,
	registry *gateway.Registry,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Service{
		orders:        orders,
		repo:          repo,
		registry:      registry,
		metrics:       m,
		logger:        logger,
		breakers:      make(map[string]*gobreaker.CircuitBreaker[*gateway.Result]),
		sessions:      make(map[uuid.UUID]*Coordinator),
		sessionTTL:    cfg.SessionTTL,
		sweepInterval: cfg.SweepInterval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
}

// --- Sessions ---

// StartSession opens a refund session for an order. The order snapshot is
// taken once here; headroom and refundable quantities are fixed for the
// session's lifetime.
func (s *Service) StartSession(ctx context.Context, orderID uuid.UUID, method Method) (*Coordinator, error) {
	if !s.registry.Has(gatewayName(method)) {
		return nil, ErrMethodNotAllowed
	}

	snap, err := s.orders.Snapshot(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Gateway refunds can only go back through the gateway that took the
	// original payment.
	if method != MethodManual {
		if snap.Gateway != string(method) || snap.ChargeRef == "" {
			return nil, ErrMethodNotAllowed
		}
	}
	if !snap.AvailableForRefund().IsPositive() {
		return nil, apperrors.Conflict("order has no refundable amount remaining")
	}

	c := NewCoordinator(snap, method, s, s.logger)

	s.sessionMu.Lock()
	s.sessions[c.ID()] = c
	s.sessionMu.Unlock()
	s.metrics.RefundSessionsActive.Inc()

	s.logger.Info("refund session started",
		zap.String("session_id", c.ID().String()),
		zap.String("order_id", orderID.String()),
		zap.String("method", string(method)),
	)
	return c, nil
}

// Session returns an active refund session.
func (s *Service) Session(id uuid.UUID) (*Coordinator, error) {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	c, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// EndSession abandons a session. Abandonment never commits: a pending
// grace window simply evaporates with the session.
func (s *Service) EndSession(id uuid.UUID) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.metrics.RefundSessionsActive.Dec()
	return nil
}

// StartSweeper starts the background session sweeper.
func (s *Service) StartSweeper() {
	go s.sweepLoop()
}

// Stop stops the background sweeper and waits for it to exit.
func (s *Service) Stop() {
	close(s.stopSweep)
	<-s.sweepDone
}

func (s *Service) sweepLoop() {
	defer close(s.sweepDone)
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweepSessions()
		}
	}
}

// sweepSessions drops sessions idle past the TTL. A stale session is
// abandoned, never committed; sessions mid-commit are left alone.
func (s *Service) sweepSessions() {
	cutoff := time.Now().Add(-s.sessionTTL)

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	for id, c := range s.sessions {
		if c.State() == StateCommitting {
			continue
		}
		if c.LastActivity().After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		s.metrics.RefundSessionsActive.Dec()
		s.logger.Info("refund session expired",
			zap.String("session_id", id.String()),
			zap.String("order_id", c.OrderID().String()),
			zap.String("state", string(c.State())),
		)
	}
}

// --- Refund records ---

// GetRefund returns an issued refund.
func (s *Service) GetRefund(ctx context.Context, id uuid.UUID) (*Refund, error) {
	return s.repo.GetByID(ctx, id)
}

// ListRefunds returns all refunds issued against an order.
func (s *Service) ListRefunds(ctx context.Context, orderID uuid.UUID) ([]Refund, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

// --- Submission ---

// Submit performs the single remote refund-creation call for a request and
// persists the resulting record. Failures come back as *RemoteError and are
// never retried here.
func (s *Service) Submit(ctx context.Context, req *Request) (*Refund, error) {
	ord, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, &RemoteError{Kind: ErrorKindValidation, Message: "order lookup failed", Err: err}
	}

	name := gatewayName(req.Method)
	gw, err := s.registry.Get(name)
	if err != nil {
		return nil, &RemoteError{Kind: ErrorKindValidation, Message: "gateway not available", Err: err}
	}

	amountMinor := currency.ToMinorUnits(req.Amount, req.Currency)
	if amountMinor <= 0 {
		return nil, &RemoteError{Kind: ErrorKindValidation, Message: "refund amount is not positive"}
	}

	greq := &gateway.Request{
		RefundNo:    req.SessionID.String(),
		OrderNo:     ord.OrderNo,
		ChargeRef:   req.ChargeRef,
		AmountMinor: amountMinor,
		TotalMinor:  currency.ToMinorUnits(ord.Total, req.Currency),
		Currency:    req.Currency,
		Reason:      req.Reason,
	}

	breaker := s.getOrCreateBreaker(name)
	start := time.Now()
	result, err := breaker.Execute(func() (*gateway.Result, error) {
		return gw.CreateRefund(ctx, greq)
	})
	if err != nil {
		s.metrics.RecordGatewayCall(name, "failure", time.Since(start))
		s.metrics.RecordRefund(string(req.Method), "failure")
		return nil, classifyGatewayError(name, err)
	}
	s.metrics.RecordGatewayCall(name, "success", time.Since(start))

	record := &Refund{
		OrderID:         req.OrderID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Reason:          req.Reason,
		Method:          req.Method,
		Status:          RefundStatusIssued,
		GatewayRefundNo: result.GatewayRefundNo,
	}
	for _, line := range req.Lines {
		record.Lines = append(record.Lines, RefundLine{
			LineType: line.Type,
			LineRef:  line.RefID,
			Quantity: line.Quantity,
			Amount:   line.Amount,
			Tax:      line.Tax,
		})
	}

	if err := s.repo.Create(ctx, record); err != nil {
		// The gateway refund went through; surface the gap loudly so it
		// can be reconciled by hand.
		s.logger.Error("refund issued by gateway but not recorded",
			zap.String("order_id", req.OrderID.String()),
			zap.String("gateway", name),
			zap.String("gateway_refund_no", result.GatewayRefundNo),
			zap.Error(err),
		)
		s.metrics.RecordRefund(string(req.Method), "failure")
		return nil, &RemoteError{Kind: ErrorKindNetwork, Message: "refund issued but not recorded", Err: err}
	}

	s.metrics.RecordRefund(string(req.Method), "success")
	amountMajor, _ := req.Amount.Float64()
	s.metrics.RecordRefundAmount(req.Currency, amountMajor)

	s.markIfFullyRefunded(ctx, ord)

	return record, nil
}

// markIfFullyRefunded flips the order status once cumulative refunds reach
// the order total. Best effort; the refund record is already durable.
func (s *Service) markIfFullyRefunded(ctx context.Context, ord *order.Order) {
	refunded, err := s.repo.TotalRefunded(ctx, ord.ID)
	if err != nil {
		s.logger.Warn("failed to read refund total", zap.String("order_id", ord.ID.String()), zap.Error(err))
		return
	}
	if refunded.Cmp(ord.Total) < 0 {
		return
	}
	if err := s.orders.MarkAsRefunded(ctx, ord.ID); err != nil {
		s.logger.Warn("failed to mark order refunded", zap.String("order_id", ord.ID.String()), zap.Error(err))
	}
}

// getOrCreateBreaker gets or creates a circuit breaker for a gateway.
func (s *Service) getOrCreateBreaker(name string) *gobreaker.CircuitBreaker[*gateway.Result] {
	s.breakerMu.Lock()
	defer s.breakerMu.Unlock()

	if breaker, ok := s.breakers[name]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A gateway that refuses a refund is healthy; only transport
		// failures should open the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var rejection *gateway.RejectionError
			return errors.As(err, &rejection)
		},
	}

	breaker := gobreaker.NewCircuitBreaker[*gateway.Result](settings)
	s.breakers[name] = breaker
	return breaker
}

// classifyGatewayError maps a gateway failure onto an error kind the
// session outcome can carry.
func classifyGatewayError(name string, err error) *RemoteError {
	var rejection *gateway.RejectionError
	switch {
	case errors.As(err, &rejection):
		return &RemoteError{Kind: ErrorKindServerRejected, Message: rejection.Message, Err: err}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &RemoteError{Kind: ErrorKindNetwork, Message: fmt.Sprintf("%s gateway temporarily unavailable", name), Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &RemoteError{Kind: ErrorKindNetwork, Message: "gateway call timed out", Err: err}
	default:
		return &RemoteError{Kind: ErrorKindNetwork, Message: "gateway call failed", Err: err}
	}
}

// gatewayName maps a refund method to the gateway that serves it.
func gatewayName(method Method) string {
	return string(method)
}
