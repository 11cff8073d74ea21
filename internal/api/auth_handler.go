package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/service"
)

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// --- Request/Response Structs ---

type SignupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse excludes sensitive info like password hash
type UserResponse struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"firstName,omitempty"`
	LastName    string      `json:"lastName,omitempty"`
	BirthDate   *time.Time  `json:"birthDate,omitempty"`
	Plan        domain.Plan `json:"plan"`
	IsAdmin     bool        `json:"isAdmin"`
	IsActive    bool        `json:"isActive"`
	IsConfirmed bool        `json:"isConfirmed"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// MapUserToResponse converts a domain User to a UserResponse DTO.
func MapUserToResponse(user *domain.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:          user.ID.Hex(),
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		BirthDate:   user.BirthDate,
		Plan:        user.Plan,
		IsAdmin:     user.IsAdmin,
		IsActive:    user.IsActive,
		IsConfirmed: user.IsConfirmed,
		CreatedAt:   user.CreatedAt,
	}
}

func mapSession(s *service.Session) SessionResponse {
	return SessionResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, User: MapUserToResponse(s.User)}
}

// --- Handler Methods ---

// Signup godoc
// @Summary Register a new account
// @Description Creates an unconfirmed account and mails a confirmation link.
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body SignupRequest true "Signup details"
// @Success 201 {object} UserResponse
// @Failure 409 {object} gin.H "Email already registered"
// @Failure 422 {object} gin.H "Invalid email or password"
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.authService.Signup(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// Confirm godoc
// @Summary Confirm an email address
// @Tags Auth
// @Produce json
// @Param token query string true "Confirmation token"
// @Success 200 {object} gin.H
// @Failure 422 {object} gin.H "Invalid or expired token"
// @Router /auth/confirm [get]
func (h *AuthHandler) Confirm(c *gin.Context) {
	if err := h.authService.ConfirmEmail(c.Request.Context(), c.Query("token")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email confirmed"})
}

// Login godoc
// @Summary Log in a user
// @Description Authenticates a user and returns the access token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login credentials"
// @Success 200 {object} SessionResponse
// @Failure 401 {object} gin.H "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSession(session))
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	session, err := h.authService.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSession(session))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
