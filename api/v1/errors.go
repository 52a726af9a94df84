package v1

import (
	"errors"
	"net/http"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/ledger"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/settlement"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request. Step and Refs are set
// when a saga stopped part way and carry what is needed to reconcile by hand.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Kind      string            `json:"kind"`
	Operation string            `json:"operation,omitempty"`
	Step      string            `json:"step,omitempty"`
	Refs      map[string]string `json:"refs,omitempty"`
}

// classify maps an error to its status code and kind
func classify(err error) (int, string) {
	var stepErr *settlement.StepError
	inSaga := errors.As(err, &stepErr)

	switch {
	case errors.Is(err, financing.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, financing.ErrCampaignNotApproved):
		return http.StatusConflict, "campaign_not_approved"
	case errors.Is(err, financing.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, financing.ErrValidation):
		return http.StatusBadRequest, "invalid_input"
	case ledger.IsTimeout(err):
		return http.StatusGatewayTimeout, "ledger_timeout"
	case !inSaga && errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found"
	case errors.Is(err, ledger.ErrFailure):
		return http.StatusBadGateway, "ledger_failure"
	case errors.Is(err, financing.ErrStoreIO):
		return http.StatusInternalServerError, "store_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, kind := classify(err)
	body := ErrorResponse{Error: err.Error(), Kind: kind}

	var stepErr *settlement.StepError
	if errors.As(err, &stepErr) {
		body.Operation = stepErr.Operation
		body.Step = stepErr.Step
		body.Refs = stepErr.Refs
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", kind),
			zap.String("step", body.Step),
			zap.Error(err),
		)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "invalid_input"})
}
