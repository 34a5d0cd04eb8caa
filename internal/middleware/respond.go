package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "budgetbook/internal/errors"
)

// abortWithError stops the chain with the standard error envelope.
func abortWithError(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.StatusCode, gin.H{
		"error": gin.H{
			"code":    err.Code,
			"message": err.Message,
		},
	})
}
