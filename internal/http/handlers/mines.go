package handlers

import (
	"net/http"
	"strconv"

	"hidden_mines/internal/domain"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

type RevealRequest struct {
	GameID uint64 `json:"game_id" binding:"required"`
	Cell   *int   `json:"cell" binding:"required"`
}

type CompleteRequest struct {
	Cleartext *bool         `json:"cleartext" binding:"required"`
	Proof     hexutil.Bytes `json:"proof"`
}

// StartGame starts a game for the caller on the current grid.
func (h *Handler) StartGame(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := h.Engine.StartGame(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.Engine.GameSummary(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// MyGames lists the caller's games, newest first.
func (h *Handler) MyGames(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": h.Engine.Games(actor)})
}

// ActiveGame returns the caller's lowest-id active game.
func (h *Handler) ActiveGame(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, found := h.Engine.ActiveGame(actor)
	if !found {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	summary, err := h.Engine.GameSummary(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "game": summary})
}

func (h *Handler) GameSummary(c *gin.Context) {
	id, ok := gameIDParam(c)
	if !ok {
		return
	}
	summary, err := h.Engine.GameSummary(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GameBoard returns every cell state in index order.
func (h *Handler) GameBoard(c *gin.Context) {
	id, ok := gameIDParam(c)
	if !ok {
		return
	}
	cells, err := h.Engine.Board(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"game_id": id,
		"width":   domain.BoardWidth,
		"cells":   cells,
	})
}

func (h *Handler) CellState(c *gin.Context) {
	id, ok := gameIDParam(c)
	if !ok {
		return
	}
	cell, err := strconv.Atoi(c.Param("cell"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cell"})
		return
	}
	state, err := h.Engine.CellState(id, cell)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game_id": id, "cell": cell, "state": state})
}

// RequestReveal opens a disclosure request and returns the handle the
// relayer has to decrypt.
func (h *Handler) RequestReveal(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	handle, err := h.Engine.RequestReveal(c.Request.Context(), actor, req.GameID, *req.Cell)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"game_id": req.GameID,
		"cell":    *req.Cell,
		"handle":  handle.Hex(),
	})
}

// CompleteReveal submits an attested cleartext for the pending request.
func (h *Handler) CompleteReveal(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	out, err := h.Engine.CompleteReveal(c.Request.Context(), actor, *req.Cleartext, req.Proof)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"game_id":    out.GameID,
		"cell":       out.Cell,
		"is_mine":    out.IsMine,
		"state":      out.State,
		"finished":   out.Finished(),
		"elapsed_ms": out.Elapsed.Milliseconds(),
	})
}

func (h *Handler) CancelReveal(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.Engine.CancelReveal(c.Request.Context(), actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// PendingReveal reports the caller's outstanding request, if any.
func (h *Handler) PendingReveal(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	p, found := h.Engine.PendingFor(actor)
	if !found {
		c.JSON(http.StatusOK, gin.H{"pending": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending":      true,
		"game_id":      p.GameID,
		"cell":         p.Cell,
		"handle":       p.Handle.Hex(),
		"requested_at": p.RequestedAt,
	})
}
