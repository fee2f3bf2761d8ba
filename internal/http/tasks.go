package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"task-manager/internal/domain"
	"task-manager/internal/service"
)

var taskUpdateKeys = map[string]struct{}{
	"description": {},
	"completed":   {},
}

type createTaskRequest struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

type updateTaskRequest struct {
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

func (h *Handler) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), currentUser(c).ID, service.NewTask{
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *Handler) listTasks(c *gin.Context) {
	query, err := parseTaskQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), currentUser(c).ID, query)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *Handler) getTask(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) updateTask(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if !onlyKeys(raw, taskUpdateKeys) {
		badRequest(c, "invalid updates")
		return
	}

	var req updateTaskRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		badRequest(c, err.Error())
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), currentUser(c).ID, c.Param("id"), service.TaskUpdate{
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) deleteTask(c *gin.Context) {
	task, err := h.tasks.Delete(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// parseTaskQuery reads completed, limit, skip and sortBy=field:asc|desc.
func parseTaskQuery(c *gin.Context) (domain.TaskQuery, error) {
	var q domain.TaskQuery

	if v := c.Query("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			return q, errors.New("invalid completed flag")
		}
		q.Completed = &completed
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return q, errors.New("invalid limit")
		}
		q.Limit = limit
	}
	if v := c.Query("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil || skip < 0 {
			return q, errors.New("invalid skip")
		}
		q.Skip = skip
	}
	if v := c.Query("sortBy"); v != "" {
		field, dir, _ := strings.Cut(v, ":")
		switch domain.TaskSortField(field) {
		case domain.TaskSortCreatedAt, domain.TaskSortUpdatedAt, domain.TaskSortDescription:
			q.SortBy = domain.TaskSortField(field)
		default:
			return q, errors.New("invalid sort field")
		}
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			q.Desc = true
		default:
			return q, errors.New("invalid sort direction")
		}
	}
	return q, nil
}
