package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvagent/internal/auth"
)

// AccessTokenCookieName is the cookie carrying the access token for the HTML surface.
const AccessTokenCookieName = "access_token"

// abortUnauthorized sends browsers to the login page and gives API callers
// a 401 JSON body.
func abortUnauthorized(c *gin.Context) {
	if wantsHTML(c) {
		c.Redirect(http.StatusFound, "/login/")
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func wantsHTML(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return false
	}
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

func extractAccessToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if token, err := c.Cookie(AccessTokenCookieName); err == nil {
		return strings.TrimSpace(token)
	}
	return ""
}

// AuthMiddleware validates the access token and injects userID into the context.
// Browser pages send the token in a cookie, API clients in the Authorization header.
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken := extractAccessToken(c)
		if rawToken == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateToken(rawToken)
		if err != nil || claims.TokenType != "access" {
			abortUnauthorized(c)
			return
		}

		c.Set("userID", claims.UserID)
		c.Next()
	}
}

// OptionalAuthMiddleware injects userID when a valid token is present but
// lets anonymous requests through. Used by the generation form, which
// permits anonymous submissions.
func OptionalAuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken := extractAccessToken(c)
		if rawToken != "" {
			if claims, err := authService.ValidateToken(rawToken); err == nil && claims.TokenType == "access" {
				c.Set("userID", claims.UserID)
			}
		}
		c.Next()
	}
}
