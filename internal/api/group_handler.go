package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/service"
)

type GroupHandler struct {
	groupService service.GroupService
}

func NewGroupHandler(groupService service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

type GroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type MembersRequest struct {
	UserIDs []string `json:"userIds" binding:"required,min=1"`
}

type AttachWorkoutRequest struct {
	WorkoutID string `json:"workoutId" binding:"required"`
}

type GroupResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	WorkoutID *string   `json:"workoutId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type GroupDetailsResponse struct {
	GroupResponse
	Members []UserResponse   `json:"members"`
	Workout *WorkoutResponse `json:"workout,omitempty"`
}

func MapGroupToResponse(g *domain.Group) GroupResponse {
	if g == nil {
		return GroupResponse{}
	}
	resp := GroupResponse{
		ID:        g.ID.Hex(),
		UserID:    g.UserID.Hex(),
		Name:      g.Name,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	if g.WorkoutID != nil && !g.WorkoutID.IsZero() {
		hex := g.WorkoutID.Hex()
		resp.WorkoutID = &hex
	}
	return resp
}

func MapGroupDetailsToResponse(d *domain.GroupDetails) GroupDetailsResponse {
	resp := GroupDetailsResponse{
		GroupResponse: MapGroupToResponse(&d.Group),
		Members:       make([]UserResponse, len(d.Members)),
	}
	for i := range d.Members {
		resp.Members[i] = MapUserToResponse(&d.Members[i])
	}
	if d.Workout != nil {
		w := MapWorkoutToResponse(d.Workout)
		resp.Workout = &w
	}
	return resp
}

func (h *GroupHandler) CreateGroup(c *gin.Context) {
	target, ok := targetUser(c)
	if !ok {
		return
	}
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	group, err := h.groupService.CreateGroup(c.Request.Context(), req.Name, target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapGroupToResponse(group))
}

func (h *GroupHandler) ListGroups(c *gin.Context) {
	target, ok := targetUser(c)
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	groups, err := h.groupService.ListGroups(c.Request.Context(), target, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPage(groups, MapGroupToResponse))
}

func (h *GroupHandler) GetGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	details, err := h.groupService.GetGroup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapGroupDetailsToResponse(details))
}

func (h *GroupHandler) RenameGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	group, err := h.groupService.RenameGroup(c.Request.Context(), id, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapGroupToResponse(group))
}

func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.groupService.DeleteGroup(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GroupHandler) bindMembers(c *gin.Context) ([]primitive.ObjectID, bool) {
	var req MembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return nil, false
	}
	ids, err := objectIDs(req.UserIDs)
	if err != nil {
		badRequest(c, err)
		return nil, false
	}
	return ids, true
}

// AddMembers godoc
// @Summary Add users to a group
// @Description Fails as a whole if any user is missing or already a member, or the plan ceiling would be passed.
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param members body MembersRequest true "User ids"
// @Success 200 {object} GroupDetailsResponse
// @Failure 403 {object} gin.H
// @Router /groups/{id}/members [post]
func (h *GroupHandler) AddMembers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userIDs, ok := h.bindMembers(c)
	if !ok {
		return
	}
	details, err := h.groupService.AddMembers(c.Request.Context(), id, userIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapGroupDetailsToResponse(details))
}

func (h *GroupHandler) RemoveMembers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userIDs, ok := h.bindMembers(c)
	if !ok {
		return
	}
	n, err := h.groupService.RemoveMembers(c.Request.Context(), id, userIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

func (h *GroupHandler) AttachWorkout(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AttachWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	workoutID, err := primitive.ObjectIDFromHex(req.WorkoutID)
	if err != nil {
		badRequest(c, err)
		return
	}
	group, err := h.groupService.AttachWorkout(c.Request.Context(), id, workoutID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapGroupToResponse(group))
}

func (h *GroupHandler) DetachWorkout(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	group, err := h.groupService.DetachWorkout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapGroupToResponse(group))
}
