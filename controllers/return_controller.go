package controllers

import (
	"net/http"
	"strings"

	apperrors "github.com/yashrajoria/restaurant-storefront/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReturnSink receives the payment gateway's redirects. Implementations must
// not block: the browser is waiting on the response.
type ReturnSink interface {
	PaymentReturned(sessionID string)
	PaymentCanceled()
}

// ReturnController serves the success and cancel URLs the gateway
// redirects the browser to after hosted checkout.
type ReturnController struct {
	sink   ReturnSink
	logger *zap.Logger
}

func NewReturnController(sink ReturnSink, logger *zap.Logger) *ReturnController {
	return &ReturnController{sink: sink, logger: logger}
}

// Success handles GET /checkout/success?session_id=...
// An empty session id is still forwarded so the confirmation screen can
// report it.
func (rc *ReturnController) Success(ctx *gin.Context) {
	sessionID := strings.TrimSpace(ctx.Query("session_id"))
	rc.sink.PaymentReturned(sessionID)

	if sessionID == "" {
		rc.logger.Warn("Gateway return without session id")
		ctx.String(http.StatusBadRequest, apperrors.MsgMissingSession)
		return
	}

	rc.logger.Info("Gateway return received", zap.String("session_id", sessionID))
	ctx.String(http.StatusOK, "Payment received. You can close this tab and return to the storefront.")
}

// Cancel handles GET /checkout/cancel
func (rc *ReturnController) Cancel(ctx *gin.Context) {
	rc.sink.PaymentCanceled()
	rc.logger.Info("Gateway checkout canceled")
	ctx.String(http.StatusOK, "Checkout canceled. Your cart is still waiting in the storefront.")
}

func (rc *ReturnController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
