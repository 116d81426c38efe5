package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"investment-core/internal/account"
	"investment-core/internal/domain"
	"investment-core/internal/evidence"
)

func respondCode(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

func statusOf(k domain.Kind) int {
	switch k {
	case domain.KindValidation, domain.KindInsufficientFunds:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps err onto the JSON error body. Internal details are
// logged, never returned.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, evidence.ErrUnsupportedType), errors.Is(err, evidence.ErrTooLarge):
		respondCode(c, http.StatusBadRequest, "INVALID_FILE", err.Error())
		return
	}

	var existing *account.ExistingAccountError
	if errors.As(err, &existing) {
		c.JSON(http.StatusConflict, gin.H{
			"code":        domain.ErrDuplicateEmail.Code,
			"error":       domain.ErrDuplicateEmail.Msg,
			"is_verified": existing.IsVerified,
		})
		return
	}

	var de *domain.Error
	if errors.As(err, &de) && de.Kind != domain.KindInternal {
		respondCode(c, statusOf(de.Kind), de.Code, de.Msg)
		return
	}

	if l, ok := c.Get(loggerContextKey); ok {
		if log, okCast := l.(*zap.Logger); okCast {
			log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
	}
	respondCode(c, http.StatusInternalServerError, domain.ErrInternal.Code, domain.ErrInternal.Msg)
}
