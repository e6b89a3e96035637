package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"botadmin/internal/store"
)

func (a *API) listOrganizations(c *gin.Context) {
	c.JSON(http.StatusOK, listEnvelope(c, a.store.Organizations()))
}

func (a *API) getOrganization(c *gin.Context) {
	org, ok := a.store.OrgByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}
	c.JSON(http.StatusOK, org)
}

type createOrgRequest struct {
	Name string     `json:"name" binding:"required"`
	Plan store.Plan `json:"plan" binding:"required"`
}

func (a *API) createOrganization(c *gin.Context) {
	var req createOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := store.PlanQuotas[req.Plan]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan"})
		return
	}
	org := a.store.AddOrganization(req.Name, req.Plan)
	a.audit(currentUser(c).ID, "org.create", gin.H{"org_id": org.ID, "plan": org.Plan})
	c.JSON(http.StatusCreated, org)
}

// orgUsage reports quota consumption for an organization: bots against the
// plan allowance, API calls against the monthly budget.
func (a *API) orgUsage(c *gin.Context) {
	org, ok := a.store.OrgByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plan":            org.Plan,
		"bots_used":       org.BotsUsed,
		"bots_quota":      org.BotsQuota,
		"api_calls_used":  org.APICallsUsed,
		"api_calls_quota": org.APICallsQuota,
		"api_available":   org.CanUseAPI(),
	})
}

type inviteRequest struct {
	Email string     `json:"email" binding:"required"`
	Role  store.Role `json:"role" binding:"required"`
}

func (a *API) createInvite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Role.Valid() || req.Role == store.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invite role"})
		return
	}

	inv, err := a.store.CreateInvite(c.Param("id"), req.Email, req.Role, a.inviteTTL)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}
	a.audit(currentUser(c).ID, "invite.create", gin.H{"org_id": inv.OrgID, "email": inv.Email})
	c.JSON(http.StatusCreated, inv)
}

func (a *API) listInvites(c *gin.Context) {
	c.JSON(http.StatusOK, listEnvelope(c, a.store.Invites(c.Param("id"))))
}

type acceptInviteRequest struct {
	Token    string `json:"token" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// acceptInvite is unauthenticated; the token is the credential.
func (a *API) acceptInvite(c *gin.Context) {
	var req acceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := a.store.AcceptInvite(req.Token, req.Username, req.Password)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "invite not found"})
	case errors.Is(err, store.ErrInviteExpired):
		c.JSON(http.StatusGone, gin.H{"error": "invite expired or already used"})
	case errors.Is(err, store.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept invite"})
	default:
		a.audit(u.ID, "invite.accept", gin.H{"username": u.Username})
		c.JSON(http.StatusCreated, userView(u))
	}
}
