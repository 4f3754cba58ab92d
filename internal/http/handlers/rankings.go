package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxRankingPage = 100

func rankingLimit(c *gin.Context) int {
	k, err := strconv.Atoi(c.DefaultQuery("k", "10"))
	if err != nil || k < 0 {
		return 10
	}
	if k > maxRankingPage {
		return maxRankingPage
	}
	return k
}

// GetRankings returns the first k wins in completion order
func (h *Handler) GetRankings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rankings": h.Engine.Rankings(rankingLimit(c)),
		"total":    h.Engine.RankingCount(),
		"order":    "completion",
	})
}

// GetBestRankings returns the k fastest wins
func (h *Handler) GetBestRankings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rankings": h.Engine.BestRankings(rankingLimit(c)),
		"total":    h.Engine.RankingCount(),
		"order":    "elapsed",
	})
}
