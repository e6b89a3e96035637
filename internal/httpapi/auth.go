package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"botadmin/internal/store"
)

const ctxUserKey = "auth_user"

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *API) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if !a.store.Login(req.Username, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	u, _ := a.store.UserByName(req.Username)

	token, err := a.issueToken(u)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": userView(u)})
}

func (a *API) logout(c *gin.Context) {
	a.store.Logout()
	c.Status(http.StatusNoContent)
}

func (a *API) me(c *gin.Context) {
	u := currentUser(c)
	c.JSON(http.StatusOK, userView(u))
}

func (a *API) issueToken(u store.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"name": u.Username,
		"role": string(u.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(a.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// authRequired validates the bearer token and loads the user onto the
// request context. A token whose user was deleted since issuance fails.
func (a *API) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sub, _ := claims["sub"].(string)
		u, found := a.store.UserByID(sub)
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}

		c.Set(ctxUserKey, u)
		c.Next()
	}
}

func (a *API) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c).Role != store.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) store.User {
	v, _ := c.Get(ctxUserKey)
	u, _ := v.(store.User)
	return u
}
