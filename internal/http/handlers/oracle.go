package handlers

import (
	"errors"
	"net/http"

	"hidden_mines/internal/oracle"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

// Disclose serves attested disclosures for handles that were made public,
// acting as a relayer for the in-process oracle.
func (h *Handler) Disclose(c *gin.Context) {
	if h.Discloser == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "relayer disabled"})
		return
	}

	raw, err := hexutil.Decode(c.Param("handle"))
	if err != nil || len(raw) != 32 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid handle"})
		return
	}
	var d oracle.Disclosure
	copy(d.Handle[:], raw)

	cleartext, proof, err := h.Discloser.Disclose(c.Request.Context(), d.Handle)
	switch {
	case errors.Is(err, oracle.ErrUnknownHandle):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, oracle.ErrNotDisclosable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		respondError(c, err)
		return
	}

	d.Cleartext = cleartext
	d.Proof = proof
	c.JSON(http.StatusOK, d)
}
