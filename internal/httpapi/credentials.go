package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"botadmin/internal/crypto"
	"botadmin/internal/store"
)

func (a *API) listCredentials(c *gin.Context) {
	items := a.store.Credentials()
	views := make([]credentialResponse, len(items))
	for i, item := range items {
		views[i] = credentialView(item, a.maskCredential(item))
	}
	c.JSON(http.StatusOK, listEnvelope(c, views))
}

type createCredentialRequest struct {
	Name     string         `json:"name" binding:"required"`
	Provider store.Provider `json:"provider" binding:"required"`
	APIKey   string         `json:"api_key" binding:"required"`
}

func (a *API) createCredential(c *gin.Context) {
	var req createCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sealed, err := a.keyring.SealString(req.APIKey)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to seal api key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store api key"})
		return
	}
	item := a.store.AddCredential(req.Name, req.Provider, sealed)
	a.audit(currentUser(c).ID, "credential.create", gin.H{"credential_id": item.ID})
	c.JSON(http.StatusCreated, credentialView(item, crypto.Mask(req.APIKey)))
}

type updateCredentialRequest struct {
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

func (a *API) updateCredential(c *gin.Context) {
	var req updateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := store.CredentialUpdate{Name: req.Name}
	if req.APIKey != "" {
		sealed, err := a.keyring.SealString(req.APIKey)
		if err != nil {
			a.logger.Error().Err(err).Msg("failed to seal api key")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store api key"})
			return
		}
		upd.EncAPIKey = sealed
	}
	if !a.store.UpdateCredential(c.Param("id"), upd) {
		c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
		return
	}
	item, _ := a.store.CredentialByID(c.Param("id"))
	c.JSON(http.StatusOK, credentialView(item, a.maskCredential(item)))
}

// deleteCredential is idempotent: deleting an unknown id succeeds, and every
// model config referencing the credential has its reference cleared.
func (a *API) deleteCredential(c *gin.Context) {
	a.store.DeleteCredential(c.Param("id"))
	a.audit(currentUser(c).ID, "credential.delete", gin.H{"credential_id": c.Param("id")})
	c.Status(http.StatusNoContent)
}

func (a *API) maskCredential(item store.CredentialVaultItem) string {
	plain, err := a.keyring.OpenString(item.EncAPIKey)
	if err != nil {
		return "****"
	}
	return crypto.Mask(plain)
}
