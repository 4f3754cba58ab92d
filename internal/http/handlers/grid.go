package handlers

import (
	"net/http"

	"hidden_mines/internal/oracle"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GridStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Engine.GridStatus())
}

// InitGrid installs a new encrypted layout. Admin only.
func (h *Handler) InitGrid(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req oracle.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	epoch, err := h.Engine.InitializeGrid(c.Request.Context(), h.Admins.Authorize(actor), req.Inputs, req.Proof)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"initialized": true, "epoch": epoch})
}

// ResetGrid ends the current epoch. Admin only.
func (h *Handler) ResetGrid(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.Engine.ResetGrid(c.Request.Context(), h.Admins.Authorize(actor)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Engine.GridStatus())
}
