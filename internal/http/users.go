package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"task-manager/internal/domain"
	"task-manager/internal/service"
)

var userUpdateKeys = map[string]struct{}{
	"name":     {},
	"email":    {},
	"password": {},
	"age":      {},
}

type signupRequest struct {
	Name     string `json:"name"`
	Age      *int   `json:"age"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Age      *int    `json:"age"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Create(ctx, service.NewUser{
		Name:     req.Name,
		Age:      req.Age,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, err := h.users.GenerateAuthToken(ctx, user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, AuthResponse{User: user, Token: token})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.FindByCredentials(ctx, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, err := h.users.GenerateAuthToken(ctx, user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, AuthResponse{User: user, Token: token})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), currentUser(c), currentToken(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) logoutAll(c *gin.Context) {
	if err := h.users.LogoutAll(c.Request.Context(), currentUser(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *Handler) updateMe(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if !onlyKeys(raw, userUpdateKeys) {
		badRequest(c, "invalid updates")
		return
	}

	var req updateUserRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user := currentUser(c)
	err = h.users.Update(c.Request.Context(), user, service.UserUpdate{
		Name:     req.Name,
		Age:      req.Age,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) deleteMe(c *gin.Context) {
	user := currentUser(c)
	if err := h.users.Remove(c.Request.Context(), user); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	header, err := c.FormFile("avatar")
	if err != nil {
		badRequest(c, "avatar file is required")
		return
	}
	if header.Size > service.MaxAvatarBytes {
		badRequest(c, "avatar exceeds 1MB")
		return
	}

	file, err := header.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxAvatarBytes+1))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.users.SetAvatar(c.Request.Context(), currentUser(c), data); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) deleteAvatar(c *gin.Context) {
	if err := h.users.DeleteAvatar(c.Request.Context(), currentUser(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) getAvatar(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if len(user.Avatar) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Data(http.StatusOK, mimetype.Detect(user.Avatar).String(), user.Avatar)
}

// onlyKeys reports whether raw is a JSON object whose keys all appear in allowed.
func onlyKeys(raw []byte, allowed map[string]struct{}) bool {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return false
	}
	for key := range body {
		if _, ok := allowed[key]; !ok {
			return false
		}
	}
	return true
}
