package handlers

import (
	"errors"
	"net/http"

	"github.com/easexpo/marketplace-backend/internal/middleware"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/internal/services"
	"github.com/easexpo/marketplace-backend/internal/utils"
	"github.com/easexpo/marketplace-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SuccessResponse wraps a plain acknowledgement
type SuccessResponse struct {
	Message string `json:"message"`
}

type errorMapping struct {
	target  error
	status  int
	errType string
	code    string
}

var errorMappings = []errorMapping{
	{models.ErrNotFound, http.StatusNotFound, "not_found", "NOT_FOUND"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden", "FORBIDDEN"},
	{models.ErrInvalidRange, http.StatusUnprocessableEntity, "invalid_range", "INVALID_RANGE"},
	{models.ErrOverlap, http.StatusUnprocessableEntity, "overlap", "BOOKING_OVERLAP"},
	{models.ErrIneligible, http.StatusUnprocessableEntity, "ineligible", "INELIGIBLE"},
	{models.ErrConflict, http.StatusConflict, "conflict", "CONFLICT"},
	{models.ErrAlreadyExists, http.StatusConflict, "already_exists", "ALREADY_EXISTS"},
	{models.ErrGatewayUnconfigured, http.StatusServiceUnavailable, "gateway_unconfigured", "GATEWAY_UNCONFIGURED"},
	{models.ErrGatewayError, http.StatusBadGateway, "gateway_error", "GATEWAY_ERROR"},
	{models.ErrVerificationFailed, http.StatusPaymentRequired, "verification_failed", "VERIFICATION_FAILED"},
	{models.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", "INVALID_CREDENTIALS"},
	{models.ErrInactiveAccount, http.StatusUnauthorized, "unauthorized", "ACCOUNT_INACTIVE"},
}

// handleError writes the response for a service error
func handleError(c *gin.Context, logger *logrus.Logger, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := err.Error()
		// gateway internals stay in the logs
		if m.target == models.ErrGatewayError {
			logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Payment gateway call failed")
			message = "The payment gateway could not process the request. Please try again."
		}
		c.JSON(m.status, ErrorResponse{Error: m.errType, Message: message, Code: m.code})
		return
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An unexpected error occurred",
		Code:    "INTERNAL_ERROR",
	})
}

// bindJSON binds the body into req or writes a 400
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: validator.Describe(err),
			Code:    "INVALID_REQUEST",
		})
		return false
	}
	return true
}

// uuidParam parses a path parameter or writes a 400
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid " + name,
			Code:    "INVALID_ID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// caller returns the authenticated principal; AuthMiddleware guarantees it on protected routes
func caller(c *gin.Context) services.Caller {
	return middleware.MustGetUserContext(c).Caller()
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}
}
