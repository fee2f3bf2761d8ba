package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-manager/internal/auth"
	"task-manager/internal/repository"
	"task-manager/internal/service"
	"task-manager/internal/validation"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users  service.UserService
	tasks  service.TaskService
	logger *logrus.Logger
}

func NewHandler(users service.UserService, tasks service.TaskService, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:  users,
		tasks:  tasks,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))
	router.Use(h.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	router.POST("/users", h.signup)
	router.POST("/users/login", h.login)
	router.GET("/users/:id/avatar", h.getAvatar)

	authed := router.Group("/", h.authenticate())
	{
		authed.POST("/users/logout", h.logout)
		authed.POST("/users/logoutAll", h.logoutAll)
		authed.GET("/users/me", h.me)
		authed.PATCH("/users/me", h.updateMe)
		authed.DELETE("/users/me", h.deleteMe)
		authed.POST("/users/me/avatar", h.uploadAvatar)
		authed.DELETE("/users/me/avatar", h.deleteAvatar)

		authed.POST("/tasks", h.createTask)
		authed.GET("/tasks", h.listTasks)
		authed.GET("/tasks/:id", h.getTask)
		authed.PATCH("/tasks/:id", h.updateTask)
		authed.DELETE("/tasks/:id", h.deleteTask)
	}
}

// writeError maps service and store errors onto status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, validation.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": validation.Messages(err)})
	case errors.Is(err, repository.ErrDuplicateEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidAvatar):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "please authenticate"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
