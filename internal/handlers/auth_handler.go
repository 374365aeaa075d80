package handlers

import (
	"context"
	"net/http"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AccountAPI is the account surface used by AuthHandler. Implemented by services.AccountService.
type AccountAPI interface {
	Register(ctx context.Context, req *models.RegisterRequest, meta services.RequestMeta) (*services.RegisterResult, error)
	Login(ctx context.Context, email, password string, meta services.RequestMeta) (*models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string, meta services.RequestMeta) (*models.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string, meta services.RequestMeta) error
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req *models.UpdateProfileRequest) (*models.User, error)
	OwnerApplicationStatus(ctx context.Context, userID uuid.UUID) (*models.StallOwnerApplication, error)
}

// AuthHandler handles sign up, login and the caller's own account
type AuthHandler struct {
	accounts AccountAPI
	logger   *logrus.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts AccountAPI, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger}
}

// Register handles POST /api/v1/auth/register
// @Summary Create a customer or stall owner account
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Sign up details"
// @Success 201 {object} services.RegisterResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.accounts.Register(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":   result.User.ID,
		"user_type": req.UserType,
	}).Info("Account registered")

	c.JSON(http.StatusCreated, result)
}

// Login handles POST /api/v1/auth/login
// @Summary Log in with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RefreshToken handles POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.accounts.Refresh(c.Request.Context(), req.RefreshToken, requestMeta(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.RefreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accounts.Logout(c.Request.Context(), req.RefreshToken, requestMeta(c)); err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Logged out successfully"})
}

// GetProfile handles GET /api/v1/account/profile
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.accounts.Profile(c.Request.Context(), caller(c).ID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /api/v1/account/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.accounts.UpdateProfile(c.Request.Context(), caller(c).ID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetOwnerApplication handles GET /api/v1/account/owner-application
func (h *AuthHandler) GetOwnerApplication(c *gin.Context) {
	app, err := h.accounts.OwnerApplicationStatus(c.Request.Context(), caller(c).ID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, app)
}
