package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/metrics"
	"fitshare/fitness-api/internal/service"
)

// Services are the domain services the HTTP layer exposes.
type Services struct {
	Auth      service.AuthService
	Users     service.UserService
	Exercises service.ExerciseService
	Workouts  service.WorkoutService
	Groups    service.GroupService
}

type Options struct {
	Logger         *zap.Logger
	MaxUploadBytes int64
	// Metrics is optional; when set, requests are measured and exposed on MetricsPath.
	Metrics     *metrics.Metrics
	MetricsPath string
}

func SetupRoutes(router *gin.Engine, svc Services, opts Options) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	router.Use(RequestLogger(opts.Logger), Recovery())
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware())
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(opts.Metrics.Handler()))
	}

	authHandler := NewAuthHandler(svc.Auth)
	userHandler := NewUserHandler(svc.Users)
	exerciseHandler := NewExerciseHandler(svc.Exercises, opts.MaxUploadBytes)
	workoutHandler := NewWorkoutHandler(svc.Workouts)
	groupHandler := NewGroupHandler(svc.Groups)

	authMiddleware := AuthMiddleware(svc.Auth)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.GET("/confirm", authHandler.Confirm)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authMiddleware, authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/users/me", userHandler.GetMe)
		protected.PUT("/users/me", userHandler.UpdateMe)

		adminGroup := protected.Group("/users")
		adminGroup.Use(AdminMiddleware())
		{
			adminGroup.GET("", userHandler.ListUsers)
			adminGroup.GET("/:id", userHandler.GetUser)
			adminGroup.PUT("/:id", userHandler.UpdateUser)
			adminGroup.DELETE("/:id", userHandler.DeleteUser)
		}

		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.POST("", exerciseHandler.CreateExercise)
			exerciseGroup.GET("", exerciseHandler.ListExercises)
			exerciseGroup.GET("/:id", exerciseHandler.GetExercise)
			exerciseGroup.PUT("/:id", exerciseHandler.UpdateExercise)
			exerciseGroup.DELETE("/:id", exerciseHandler.DeleteExercise)
			exerciseGroup.PUT("/:id/media", exerciseHandler.ReplaceMedia)
			exerciseGroup.GET("/:id/media", exerciseHandler.MediaURL)
		}

		workoutGroup := protected.Group("/workouts")
		{
			workoutGroup.POST("", workoutHandler.CreateWorkout)
			workoutGroup.GET("", workoutHandler.ListWorkouts)
			workoutGroup.GET("/shared", workoutHandler.ListSharedWorkouts)
			workoutGroup.GET("/:id", workoutHandler.GetWorkout)
			workoutGroup.PUT("/:id", workoutHandler.UpdateWorkout)
			workoutGroup.DELETE("/:id", workoutHandler.DeleteWorkout)
		}

		groupGroup := protected.Group("/groups")
		{
			groupGroup.POST("", groupHandler.CreateGroup)
			groupGroup.GET("", groupHandler.ListGroups)
			groupGroup.GET("/:id", groupHandler.GetGroup)
			groupGroup.PATCH("/:id", groupHandler.RenameGroup)
			groupGroup.DELETE("/:id", groupHandler.DeleteGroup)
			groupGroup.POST("/:id/members", groupHandler.AddMembers)
			groupGroup.DELETE("/:id/members", groupHandler.RemoveMembers)
			groupGroup.PUT("/:id/workout", groupHandler.AttachWorkout)
			groupGroup.DELETE("/:id/workout", groupHandler.DetachWorkout)
		}
	}
}
