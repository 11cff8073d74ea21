package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/service"
)

type WorkoutHandler struct {
	workoutService service.WorkoutService
}

func NewWorkoutHandler(workoutService service.WorkoutService) *WorkoutHandler {
	return &WorkoutHandler{workoutService: workoutService}
}

type WorkoutItemRequest struct {
	ExerciseID string `json:"exerciseId" binding:"required"`
	Position   int    `json:"position"`
	Notes      string `json:"notes"`
}

// WorkoutRequest is used for both create and update; an update replaces the
// whole exercise list.
type WorkoutRequest struct {
	Title       string               `json:"title" binding:"required"`
	Description string               `json:"description"`
	Exercises   []WorkoutItemRequest `json:"exercises" binding:"dive"`
}

func (r WorkoutRequest) toInput() (service.WorkoutInput, error) {
	items := make([]domain.WorkoutItem, 0, len(r.Exercises))
	for _, it := range r.Exercises {
		id, err := primitive.ObjectIDFromHex(it.ExerciseID)
		if err != nil {
			return service.WorkoutInput{}, err
		}
		items = append(items, domain.WorkoutItem{ExerciseID: id, Position: it.Position, Notes: it.Notes})
	}
	return service.WorkoutInput{Title: r.Title, Description: r.Description, Items: items}, nil
}

type WorkoutResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type WorkoutExerciseResponse struct {
	Position int               `json:"position"`
	Notes    string            `json:"notes,omitempty"`
	Exercise *ExerciseResponse `json:"exercise,omitempty"`
}

type WorkoutDetailsResponse struct {
	WorkoutResponse
	Exercises []WorkoutExerciseResponse `json:"exercises"`
}

func MapWorkoutToResponse(w *domain.Workout) WorkoutResponse {
	if w == nil {
		return WorkoutResponse{}
	}
	return WorkoutResponse{
		ID:          w.ID.Hex(),
		UserID:      w.UserID.Hex(),
		Title:       w.Title,
		Description: w.Description,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

// MapWorkoutDetailsToResponse lists the exercises in position order.
func MapWorkoutDetailsToResponse(d *domain.WorkoutDetails) WorkoutDetailsResponse {
	resp := WorkoutDetailsResponse{
		WorkoutResponse: MapWorkoutToResponse(&d.Workout),
		Exercises:       make([]WorkoutExerciseResponse, 0, len(d.Items)),
	}
	for _, row := range d.Items {
		item := WorkoutExerciseResponse{Position: row.Position, Notes: row.Notes}
		if ex, ok := d.Exercises[row.ExerciseID]; ok {
			mapped := MapExerciseToResponse(&ex)
			item.Exercise = &mapped
		}
		resp.Exercises = append(resp.Exercises, item)
	}
	return resp
}

func (h *WorkoutHandler) bind(c *gin.Context) (service.WorkoutInput, bool) {
	var req WorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return service.WorkoutInput{}, false
	}
	in, err := req.toInput()
	if err != nil {
		badRequest(c, err)
		return service.WorkoutInput{}, false
	}
	return in, true
}

// CreateWorkout godoc
// @Summary Create a workout
// @Description Positions must be exactly 1..N and every exercise must belong to the workout owner.
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workout body WorkoutRequest true "Workout"
// @Success 201 {object} WorkoutDetailsResponse
// @Failure 403 {object} gin.H "Quota reached or foreign exercise"
// @Failure 422 {object} gin.H "Invalid positions"
// @Router /workouts [post]
func (h *WorkoutHandler) CreateWorkout(c *gin.Context) {
	target, ok := targetUser(c)
	if !ok {
		return
	}
	in, ok := h.bind(c)
	if !ok {
		return
	}
	details, err := h.workoutService.CreateWorkout(c.Request.Context(), in, target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapWorkoutDetailsToResponse(details))
}

func (h *WorkoutHandler) ListWorkouts(c *gin.Context) {
	target, ok := targetUser(c)
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	workouts, err := h.workoutService.ListWorkouts(c.Request.Context(), target, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPage(workouts, MapWorkoutToResponse))
}

// ListSharedWorkouts lists workouts shared with the caller through groups.
func (h *WorkoutHandler) ListSharedWorkouts(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	workouts, err := h.workoutService.ListSharedWorkouts(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPage(workouts, MapWorkoutToResponse))
}

func (h *WorkoutHandler) GetWorkout(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	details, err := h.workoutService.GetWorkout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapWorkoutDetailsToResponse(details))
}

func (h *WorkoutHandler) UpdateWorkout(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, ok := h.bind(c)
	if !ok {
		return
	}
	details, err := h.workoutService.UpdateWorkout(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapWorkoutDetailsToResponse(details))
}

func (h *WorkoutHandler) DeleteWorkout(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.workoutService.DeleteWorkout(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
