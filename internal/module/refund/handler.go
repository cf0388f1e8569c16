package refund

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storecraft/refund-server/internal/module/order"
	"github.com/storecraft/refund-server/internal/shared/metrics"
	"github.com/storecraft/refund-server/internal/shared/response"
)

// Handler handles HTTP requests for refund sessions and issued refunds.
type Handler struct {
	service *Service
	metrics *metrics.Metrics
}

// NewHandler creates a new refund handler.
func NewHandler(service *Service, m *metrics.Metrics) *Handler {
	return &Handler{service: service, metrics: m}
}

// RegisterRoutes registers the refund routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.POST("/:id/refund-sessions", h.StartSession)
		orders.GET("/:id/refunds", h.ListRefunds)
	}

	sessions := r.Group("/refund-sessions")
	{
		sessions.GET("/:sid", h.GetSession)
		sessions.DELETE("/:sid", h.EndSession)

		sessions.PUT("/:sid/lines/:lineID", h.SetQuantity)
		sessions.PUT("/:sid/fees/:feeID", h.ToggleFee)
		sessions.PUT("/:sid/shipping/:shippingID", h.ToggleShipping)
		sessions.POST("/:sid/select-all", h.SelectAll)
		sessions.POST("/:sid/clear", h.ClearAll)
		sessions.PUT("/:sid/amount", h.SetAmount)

		sessions.POST("/:sid/proceed", h.Proceed)
		sessions.POST("/:sid/confirm", h.Confirm)
		sessions.POST("/:sid/undo", h.Undo)
		sessions.POST("/:sid/commit", h.Commit)
	}
}

// StartSession opens a refund session for an order.
func (h *Handler) StartSession(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order ID")
		return
	}

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	session, err := h.service.StartSession(c.Request.Context(), orderID, req.Method)
	if err != nil {
		response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
			{Err: order.ErrOrderNotFound, Status: http.StatusNotFound, Message: "order not found"},
			{Err: order.ErrOrderNotPaid, Status: http.StatusBadRequest, Message: "order is not paid"},
			{Err: ErrMethodNotAllowed, Status: http.StatusBadRequest},
		})
		return
	}

	c.JSON(http.StatusCreated, NewSessionResponse(session))
}

// GetSession returns the current session view.
func (h *Handler) GetSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// EndSession abandons a session without committing.
func (h *Handler) EndSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		response.BadRequest(c, "invalid session ID")
		return
	}
	if err := h.service.EndSession(id); err != nil {
		response.NotFound(c, "refund session not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// SetQuantity sets the refund quantity of a product line.
func (h *Handler) SetQuantity(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(c.Param("lineID"))
	if err != nil {
		response.BadRequest(c, "invalid line ID")
		return
	}

	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := session.SetProductQuantity(lineID, *req.Quantity); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// ToggleFee selects or deselects a fee line.
func (h *Handler) ToggleFee(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	feeID, err := uuid.Parse(c.Param("feeID"))
	if err != nil {
		response.BadRequest(c, "invalid fee ID")
		return
	}

	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := session.ToggleFee(feeID, *req.Selected); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// ToggleShipping selects or deselects a shipping line.
func (h *Handler) ToggleShipping(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	shippingID, err := uuid.Parse(c.Param("shippingID"))
	if err != nil {
		response.BadRequest(c, "invalid shipping ID")
		return
	}

	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := session.ToggleShipping(shippingID, *req.Selected); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// SelectAll selects every refundable line at its maximum.
func (h *Handler) SelectAll(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.SelectAll(); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// ClearAll empties the selection.
func (h *Handler) ClearAll(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.ClearAll(); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// SetAmount overrides the selection-derived refund amount.
func (h *Handler) SetAmount(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := session.EnterAmount(req.Amount); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// Proceed validates the refund amount against the refundable headroom.
func (h *Handler) Proceed(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	result, err := session.Proceed()
	if err != nil {
		h.sessionError(c, err)
		return
	}
	h.metrics.RecordValidation(string(result))

	if result != ValidationValid {
		c.JSON(http.StatusUnprocessableEntity, NewSessionResponse(session))
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// Confirm accepts the refund and opens the undo grace window.
func (h *Handler) Confirm(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := session.Confirm(req.Reason); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// Undo abandons the pending refund during the grace window.
func (h *Handler) Undo(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if err := session.Undo(); err != nil {
		h.sessionError(c, err)
		return
	}
	h.metrics.RefundUndosTotal.Inc()
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// Commit resolves the grace window and issues the refund.
func (h *Handler) Commit(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	outcome, err := session.Commit(c.Request.Context())
	if err != nil {
		h.sessionError(c, err)
		return
	}

	if !outcome.IsSuccess() {
		c.JSON(http.StatusBadGateway, NewSessionResponse(session))
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// ListRefunds returns all refunds issued against an order.
func (h *Handler) ListRefunds(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order ID")
		return
	}

	refunds, err := h.service.ListRefunds(c.Request.Context(), orderID)
	if err != nil {
		response.InternalError(c, "")
		return
	}

	resp := make([]*RefundResponse, 0, len(refunds))
	for i := range refunds {
		resp = append(resp, refunds[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"refunds": resp})
}

// session resolves the session from the path, writing the error response
// itself when that fails.
func (h *Handler) session(c *gin.Context) (*Coordinator, bool) {
	id, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		response.BadRequest(c, "invalid session ID")
		return nil, false
	}
	session, err := h.service.Session(id)
	if err != nil {
		response.NotFound(c, "refund session not found")
		return nil, false
	}
	return session, true
}

// sessionError maps session protocol errors to HTTP responses.
func (h *Handler) sessionError(c *gin.Context, err error) {
	response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
		{Err: ErrLineNotFound, Status: http.StatusNotFound},
		{Err: ErrInvalidQuantity, Status: http.StatusBadRequest},
		{Err: ErrSessionState, Status: http.StatusConflict},
		{Err: ErrCommitInFlight, Status: http.StatusConflict},
		{Err: ErrUndoTooLate, Status: http.StatusConflict},
		{Err: ErrCommitAborted, Status: http.StatusConflict},
		{Err: ErrInvalidTransition, Status: http.StatusConflict},
	})
}
