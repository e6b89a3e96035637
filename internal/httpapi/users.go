package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"botadmin/internal/store"
)

func (a *API) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, listEnvelope(c, userViews(a.store.Users())))
}

type createUserRequest struct {
	Username         string     `json:"username" binding:"required"`
	Password         string     `json:"password" binding:"required"`
	Role             store.Role `json:"role" binding:"required"`
	AccessibleBotIDs []string   `json:"accessible_bot_ids"`
}

func (a *API) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	u, err := a.store.AddUser(req.Username, req.Password, req.Role, req.AccessibleBotIDs)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		a.logger.Error().Err(err).Msg("failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	a.audit(currentUser(c).ID, "user.create", gin.H{"user_id": u.ID, "role": u.Role})
	c.JSON(http.StatusCreated, userView(u))
}

type updateUserRequest struct {
	Username         string     `json:"username"`
	Password         string     `json:"password"`
	Role             store.Role `json:"role"`
	AccessibleBotIDs []string   `json:"accessible_bot_ids"`
}

func (a *API) updateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role != "" && !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	id := c.Param("id")
	err := a.store.UpdateUser(id, store.UserUpdate{
		Username: req.Username,
		Role:     req.Role,
		Password: req.Password,
	}, req.AccessibleBotIDs)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, store.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
	case err != nil:
		a.logger.Error().Err(err).Msg("failed to update user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
	default:
		a.audit(currentUser(c).ID, "user.update", gin.H{"user_id": id})
		u, _ := a.store.UserByID(id)
		c.JSON(http.StatusOK, userView(u))
	}
}

func (a *API) deleteUser(c *gin.Context) {
	id := c.Param("id")
	err := a.store.DeleteUser(id)
	switch {
	case errors.Is(err, store.ErrProtectedUser):
		c.JSON(http.StatusForbidden, gin.H{"error": "the seed admin account cannot be deleted"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user"})
	default:
		a.audit(currentUser(c).ID, "user.delete", gin.H{"user_id": id})
		c.Status(http.StatusNoContent)
	}
}
