package handlers

import (
	"errors"
	"net/http"

	"hidden_mines/internal/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

type ChallengeRequest struct {
	Address string `json:"address" binding:"required"`
}

type AuthRequest struct {
	Message   string        `json:"message" binding:"required"`
	Signature hexutil.Bytes `json:"signature" binding:"required"`
}

// Challenge returns the sign-in message for a wallet address.
func (h *Handler) Challenge(c *gin.Context) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid address required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": h.Wallet.Challenge(common.HexToAddress(req.Address)),
	})
}

// Auth exchanges a signed sign-in message for a JWT.
func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if len(req.Message) > 1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message too long"})
		return
	}

	actor, err := h.Wallet.Verify(req.Message, req.Signature)
	switch {
	case errors.Is(err, service.ErrMalformedSignIn):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	token, err := service.GenerateJWT(actor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"actor": actor.Hex(),
		"admin": h.Admins.Authorize(actor).Privileged(),
	})
}
