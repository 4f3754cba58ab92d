package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"hidden_mines/internal/auth"
	"hidden_mines/internal/domain"
	"hidden_mines/internal/http/middleware"
	"hidden_mines/internal/logger"
	"hidden_mines/internal/oracle"
	"hidden_mines/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Engine    *service.Engine
	Admins    *auth.Admins
	Wallet    *service.WalletAuth
	Discloser oracle.Discloser // nil unless a relayer is served
}

func NewHandler(engine *service.Engine, admins *auth.Admins, wallet *service.WalletAuth, discloser oracle.Discloser) *Handler {
	return &Handler{
		Engine:    engine,
		Admins:    admins,
		Wallet:    wallet,
		Discloser: discloser,
	}
}

// getActor извлекает actor из контекста Gin
func getActor(c *gin.Context) (domain.Actor, bool) {
	return middleware.Actor(c)
}

func gameIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return 0, false
	}
	return id, true
}

// statusFor maps protocol errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrNotPrivileged):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidCellIndex),
		errors.Is(err, domain.ErrWrongCount),
		errors.Is(err, oracle.ErrUnknownHandle):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidProof):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGridNotInitialized),
		errors.Is(err, domain.ErrAlreadyInitialized),
		errors.Is(err, domain.ErrGameNotActive),
		errors.Is(err, domain.ErrCellNotHidden),
		errors.Is(err, domain.ErrCellNotPending),
		errors.Is(err, domain.ErrAlreadyPending),
		errors.Is(err, domain.ErrNoPending),
		errors.Is(err, domain.ErrStaleGame):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed", "error", err, "path", c.FullPath())
		c.JSON(status, gin.H{"error": "internal error", "code": "internal"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": domain.Code(err)})
}
