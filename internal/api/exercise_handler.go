package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/service"
)

// ExerciseHandler holds the exercise service dependency.
type ExerciseHandler struct {
	exerciseService service.ExerciseService
	maxUploadBytes  int64
}

// NewExerciseHandler creates a new ExerciseHandler. Request bodies above
// maxUploadBytes are rejected with 413.
func NewExerciseHandler(exerciseService service.ExerciseService, maxUploadBytes int64) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: exerciseService, maxUploadBytes: maxUploadBytes}
}

// --- DTOs for API (Data Transfer Objects) ---

// CreateExerciseRequest is accepted as JSON, or as multipart form fields next
// to an optional "file" part. Meta is only read from JSON.
type CreateExerciseRequest struct {
	Title       string         `json:"title" form:"title" binding:"required"`
	Type        string         `json:"type" form:"type"`
	Description string         `json:"description" form:"description"`
	Meta        map[string]any `json:"meta" form:"-"`
	TimeWork    *int           `json:"timeWork" form:"timeWork"`
	Repetitions *int           `json:"repetitions" form:"repetitions"`
	CountSets   *int           `json:"countSets" form:"countSets"`
	RestSec     *int           `json:"restSec" form:"restSec"`
}

// UpdateExerciseRequest is a partial update. Switching timing mode requires
// clearing the other one in the same request.
type UpdateExerciseRequest struct {
	Title         *string        `json:"title"`
	Type          *string        `json:"type"`
	Description   *string        `json:"description"`
	Meta          map[string]any `json:"meta"`
	TimeWork      *int           `json:"timeWork"`
	Repetitions   *int           `json:"repetitions"`
	CountSets     *int           `json:"countSets"`
	RestSec       *int           `json:"restSec"`
	ClearTimeWork bool           `json:"clearTimeWork"`
	ClearRepsSets bool           `json:"clearRepsSets"`
}

// ExerciseResponse is the DTO for returning exercise details.
type ExerciseResponse struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	Title       string         `json:"title"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	MediaURL    string         `json:"mediaUrl,omitempty"`
	TimeWork    *int           `json:"timeWork,omitempty"`
	Repetitions *int           `json:"repetitions,omitempty"`
	CountSets   *int           `json:"countSets,omitempty"`
	RestSec     *int           `json:"restSec,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// MapExerciseToResponse converts a domain.Exercise to ExerciseResponse DTO.
func MapExerciseToResponse(ex *domain.Exercise) ExerciseResponse {
	if ex == nil {
		return ExerciseResponse{}
	}
	return ExerciseResponse{
		ID:          ex.ID.Hex(),
		UserID:      ex.UserID.Hex(),
		Title:       ex.Title,
		Type:        ex.Type,
		Description: ex.Description,
		Meta:        ex.Meta,
		MediaURL:    ex.MediaURL,
		TimeWork:    ex.TimeWork,
		Repetitions: ex.Repetitions,
		CountSets:   ex.CountSets,
		RestSec:     ex.RestSec,
		CreatedAt:   ex.CreatedAt,
		UpdatedAt:   ex.UpdatedAt,
	}
}

// limitBody caps the request body at maxUploadBytes.
func (h *ExerciseHandler) limitBody(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
}

// bindError answers 413 for oversized bodies and 400 for everything else.
func bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		abortWithError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	badRequest(c, err)
}

func readMediaFile(fh *multipart.FileHeader) (*service.MediaFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &service.MediaFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// formFile returns the optional "file" part of a multipart request.
func formFile(c *gin.Context) (*service.MediaFile, error) {
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return readMediaFile(fh)
}

// --- Handler Methods ---

// CreateExercise godoc
// @Summary Create a new exercise
// @Description Creates an exercise for the caller, or for ?user_id= when the caller is an admin.
// @Tags Exercises
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param exercise body CreateExerciseRequest true "Exercise details"
// @Success 201 {object} ExerciseResponse
// @Failure 403 {object} gin.H "Quota reached or foreign target"
// @Failure 413 {object} gin.H "Upload too large"
// @Failure 422 {object} gin.H "Invalid timing"
// @Router /exercises [post]
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	target, ok := targetUser(c)
	if !ok {
		return
	}
	h.limitBody(c)

	var (
		req  CreateExerciseRequest
		file *service.MediaFile
	)
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		if err := c.ShouldBind(&req); err != nil {
			bindError(c, err)
			return
		}
		var err error
		if file, err = formFile(c); err != nil {
			bindError(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	exercise, err := h.exerciseService.CreateExercise(c.Request.Context(), service.ExerciseInput{
		Title:       req.Title,
		Type:        req.Type,
		Description: req.Description,
		Meta:        req.Meta,
		TimeWork:    req.TimeWork,
		Repetitions: req.Repetitions,
		CountSets:   req.CountSets,
		RestSec:     req.RestSec,
	}, file, target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapExerciseToResponse(exercise))
}

// ListExercises godoc
// @Summary List exercises
// @Tags Exercises
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param start query int false "Page number, 0-based"
// @Param user_id query string false "Owner (admins only)"
// @Success 200 {object} PageResponse[ExerciseResponse]
// @Router /exercises [get]
func (h *ExerciseHandler) ListExercises(c *gin.Context) {
	target, ok := targetUser(c)
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	exercises, err := h.exerciseService.ListExercises(c.Request.Context(), target, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPage(exercises, MapExerciseToResponse))
}

func (h *ExerciseHandler) GetExercise(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	exercise, err := h.exerciseService.GetExercise(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

func (h *ExerciseHandler) UpdateExercise(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	exercise, err := h.exerciseService.UpdateExercise(c.Request.Context(), id, domain.ExercisePatch{
		Title:         req.Title,
		Type:          req.Type,
		Description:   req.Description,
		Meta:          req.Meta,
		TimeWork:      req.TimeWork,
		Repetitions:   req.Repetitions,
		CountSets:     req.CountSets,
		RestSec:       req.RestSec,
		ClearTimeWork: req.ClearTimeWork,
		ClearRepsSets: req.ClearRepsSets,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

// ReplaceMedia expects a multipart body with a "file" part.
func (h *ExerciseHandler) ReplaceMedia(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.limitBody(c)
	file, err := formFile(c)
	if err != nil {
		bindError(c, err)
		return
	}
	if file == nil {
		abortWithError(c, http.StatusBadRequest, "validation error: file is required")
		return
	}
	exercise, err := h.exerciseService.ReplaceExerciseMedia(c.Request.Context(), id, *file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

// MediaURL returns a short-lived download link for the exercise media.
func (h *ExerciseHandler) MediaURL(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	url, err := h.exerciseService.MediaDownloadURL(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// DeleteExercise also removes the exercise from every workout using it.
func (h *ExerciseHandler) DeleteExercise(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.exerciseService.DeleteExercise(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
