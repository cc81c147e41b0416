package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tidewell/suggestbox/services"
	"github.com/tidewell/suggestbox/utils"
)

const (
	// SessionCookieName is the browser session cookie.
	SessionCookieName = "sb_session"
	// ContextUserIDKey is the key used to store the authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextTokenKey stores the raw session token for logout.
	ContextTokenKey = "session_token"
)

// SessionResolver attaches the current user to the context when a valid
// session token is present, via cookie or Bearer header. Never aborts:
// requests without a live session simply proceed anonymous.
func SessionResolver(sessions *services.SessionManager) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := extractToken(ctx)
		if token != "" {
			if userID, err := sessions.Resolve(token); err == nil {
				ctx.Set(ContextUserIDKey, userID)
				ctx.Set(ContextTokenKey, token)
			}
		}
		ctx.Next()
	}
}

// LoginRequired gates browser form routes: anonymous requests are redirected
// to the login page instead of receiving an error body.
func LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, ok := CurrentUserID(ctx); !ok {
			ctx.Redirect(http.StatusSeeOther, "/login")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// AuthRequired gates API routes: anonymous requests get a 401 envelope.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, ok := CurrentUserID(ctx); !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// CurrentUserID returns the authenticated user id set by SessionResolver.
func CurrentUserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// CurrentToken returns the raw session token of the request, if any.
func CurrentToken(ctx *gin.Context) string {
	if v, ok := ctx.Get(ContextTokenKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func extractToken(ctx *gin.Context) string {
	if cookie, err := ctx.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
