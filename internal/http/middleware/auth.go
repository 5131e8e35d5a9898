package middleware

import (
	"net/http"
	"strings"

	"cucumber_hub/internal/service"

	"github.com/gin-gonic/gin"
)

const participantKey = "participant_id"

// Auth достает Bearer-токен, проверяет его и кладет id участника в контекст gin
func Auth(verifier service.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token_required"})
			return
		}

		participantID, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		c.Set(participantKey, participantID)
		c.Next()
	}
}

// ParticipantID id участника, положенный Auth
func ParticipantID(c *gin.Context) (string, bool) {
	id := c.GetString(participantKey)
	return id, id != ""
}
