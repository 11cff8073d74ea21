package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/service"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type UpdateProfileRequest struct {
	FirstName *string    `json:"firstName"`
	LastName  *string    `json:"lastName"`
	BirthDate *time.Time `json:"birthDate"`
}

func (r UpdateProfileRequest) toDomain() domain.ProfileUpdate {
	return domain.ProfileUpdate{FirstName: r.FirstName, LastName: r.LastName, BirthDate: r.BirthDate}
}

// AdminUpdateUserRequest adds the fields only administrators may set.
type AdminUpdateUserRequest struct {
	UpdateProfileRequest
	Email       *string      `json:"email"`
	Plan        *domain.Plan `json:"plan"`
	IsActive    *bool        `json:"isActive"`
	IsConfirmed *bool        `json:"isConfirmed"`
	IsAdmin     *bool        `json:"isAdmin"`
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.GetMe(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.userService.UpdateMe(c.Request.Context(), req.toDomain())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	users, err := h.userService.ListUsers(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPage(users, MapUserToResponse))
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.userService.UpdateUser(c.Request.Context(), id, domain.AdminUserUpdate{
		ProfileUpdate: req.toDomain(),
		Email:         req.Email,
		Plan:          req.Plan,
		IsActive:      req.IsActive,
		IsConfirmed:   req.IsConfirmed,
		IsAdmin:       req.IsAdmin,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// DeleteUser removes the account and everything it owns.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.userService.DeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
