package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsourcing "github.com/sourcing/backend/internal/application/sourcing"
	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/infrastructure/logger"
	"github.com/sourcing/backend/internal/interfaces/http/dto"
)

// CredentialManager drives the platform authorization flow
type CredentialManager interface {
	AuthorizeURL(redirectTarget string) (string, error)
	VerifyState(state string) (string, error)
	Exchange(ctx context.Context, code string) (*sourcing.Credential, error)
	Status(ctx context.Context) (*appsourcing.CredentialStatus, error)
	RevokeAll(ctx context.Context) error
}

// OAuthHandler serves the platform consent flow
type OAuthHandler struct {
	BaseHandler
	credentials CredentialManager
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(credentials CredentialManager) *OAuthHandler {
	return &OAuthHandler{credentials: credentials}
}

// Authorize godoc
// @ID           oauthAuthorize
// @Summary      Start platform authorization
// @Description  Redirects to the consent page, or returns its URL with format=json
// @Tags         oauth
// @Produce      json
// @Param        redirect query string false "Same-site path to land on after the callback"
// @Param        format   query string false "json to return the URL instead of redirecting"
// @Success      200 {object} dto.Response{data=dto.AuthorizeResponse}
// @Success      302
// @Router       /oauth/authorize [get]
func (h *OAuthHandler) Authorize(c *gin.Context) {
	authorizeURL, err := h.credentials.AuthorizeURL(c.Query("redirect"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if c.Query("format") == "json" {
		h.Success(c, dto.AuthorizeResponse{AuthorizeURL: authorizeURL})
		return
	}
	c.Redirect(http.StatusFound, authorizeURL)
}

// Callback godoc
// @ID           oauthCallback
// @Summary      Complete platform authorization
// @Description  Verifies the state, exchanges the code and redirects to the original target
// @Tags         oauth
// @Param        code  query string true "Authorization code"
// @Param        state query string true "State issued by the authorize endpoint"
// @Success      302
// @Failure      400 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /oauth/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	if denied := c.Query("error"); denied != "" {
		h.BadRequest(c, "authorization was not granted: "+denied)
		return
	}

	target, err := h.credentials.VerifyState(c.Query("state"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	code := c.Query("code")
	if code == "" {
		h.BadRequest(c, "missing authorization code")
		return
	}

	cred, err := h.credentials.Exchange(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Platform authorization completed",
		zap.String("owner_id", cred.OwnerID),
		zap.Time("expires_at", cred.ExpiresAt),
	)
	c.Redirect(http.StatusFound, target)
}

// Status godoc
// @ID           oauthStatus
// @Summary      Platform authorization status
// @Tags         oauth
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.CredentialStatusResponse}
// @Router       /oauth/status [get]
func (h *OAuthHandler) Status(c *gin.Context) {
	status, err := h.credentials.Status(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.CredentialStatusResponse{
		State:     string(status.State),
		OwnerID:   status.OwnerID,
		ExpiresAt: status.ExpiresAt,
	})
}

// Revoke godoc
// @ID           oauthRevoke
// @Summary      Revoke platform authorization
// @Description  Deletes every stored credential
// @Tags         oauth
// @Success      204
// @Router       /oauth/credentials [delete]
func (h *OAuthHandler) Revoke(c *gin.Context) {
	if err := h.credentials.RevokeAll(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
