package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/flowauth/core"
	"github.com/layer-3/flowauth/internal/logging"
	"github.com/layer-3/flowauth/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

type generateNonceRequest struct {
	// Accepted for compatibility; the configured app ID always wins.
	AppID string `json:"appID"`
}

type generateNonceResponse struct {
	Nonce string `json:"nonce"`
	AppID string `json:"appID"`
}

// GenerateNonce issues a fresh challenge
func (h *AuthHandlers) GenerateNonce(c *gin.Context) {
	var req generateNonceRequest
	if err := bindPayload(c, &req); err != nil {
		respond(c, http.StatusBadRequest, errorEnvelope(MsgInvalidRequest))
		return
	}

	challenge, err := h.authService.IssueNonce(c.Request.Context())
	if err != nil {
		fail(c, "generateNonce", err)
		return
	}

	respond(c, http.StatusOK, generateNonceResponse{
		Nonce: challenge.Nonce,
		AppID: challenge.AppID,
	})
}

type generateAuthTokenRequest struct {
	Address    string        `json:"address" binding:"required"`
	Nonce      string        `json:"nonce"`
	Message    string        `json:"message"`
	KeyIDs     []int         `json:"keyIds"`
	Signatures signatureList `json:"signatures"`
}

func (r *generateAuthTokenRequest) proof() *core.AccountProof {
	keyIDs := r.KeyIDs
	if len(keyIDs) == 0 {
		keyIDs = r.Signatures.KeyIDs
	}
	return &core.AccountProof{
		Address:    r.Address,
		Nonce:      r.Nonce,
		Message:    r.Message,
		KeyIDs:     keyIDs,
		Signatures: r.Signatures.Signatures,
	}
}

// GenerateAuthToken verifies an account proof and returns a session credential
func (h *AuthHandlers) GenerateAuthToken(c *gin.Context) {
	var req generateAuthTokenRequest
	if err := bindPayload(c, &req); err != nil {
		respond(c, http.StatusBadRequest, errorEnvelope(MsgInvalidRequest))
		return
	}

	token, err := h.authService.Authenticate(c.Request.Context(), req.proof())
	if err != nil {
		fail(c, "generateAuthToken", err)
		return
	}

	respond(c, http.StatusOK, Envelope{Status: StatusSuccess, Token: token})
}

// Logout revokes the bearer credential
func (h *AuthHandlers) Logout(c *gin.Context) {
	token := c.GetString(tokenKey)

	err := h.authService.Logout(c.Request.Context(), token)
	if err != nil && !errors.Is(err, core.ErrTokenExpired) {
		fail(c, "logout", err)
		return
	}

	respond(c, http.StatusOK, Envelope{Status: StatusSuccess})
}

// Me returns the address bound to the bearer credential
func (h *AuthHandlers) Me(c *gin.Context) {
	// Set by the auth middleware
	address, exists := c.Get(addressKey)
	if !exists {
		fail(c, "me", errors.New("address missing from context"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": address,
	})
}

// DAOHandlers contains HTTP handlers for DAO endpoints
type DAOHandlers struct {
	daoService *service.DAOService
}

// NewDAOHandlers creates new DAO handlers
func NewDAOHandlers(daoService *service.DAOService) *DAOHandlers {
	return &DAOHandlers{daoService: daoService}
}

type createDAORequest struct {
	Name    string        `json:"name" binding:"required"`
	Members []core.Member `json:"members" binding:"required,min=1,dive"`
}

// Create stores a new DAO for the authenticated caller
func (h *DAOHandlers) Create(c *gin.Context) {
	var req createDAORequest
	if err := bindPayload(c, &req); err != nil {
		respond(c, http.StatusBadRequest, errorEnvelope(MsgInvalidRequest))
		return
	}

	dao, err := h.daoService.CreateDAO(c.Request.Context(), c.GetString(addressKey), req.Name, req.Members)
	if err != nil {
		fail(c, "daos.create", err)
		return
	}

	respond(c, http.StatusOK, Envelope{Status: StatusCreated, ID: dao.ID})
}

// fail logs unexpected errors and writes the envelope for err
func fail(c *gin.Context, op string, err error) {
	logger := logging.FromContext(c.Request.Context())
	if isUnexpected(err) {
		logger.Error().Err(err).Str("op", op).Msg("request failed")
	} else {
		logger.Debug().Err(err).Str("op", op).Msg("request rejected")
	}

	status, body := envelopeFor(err)
	respond(c, status, body)
}
