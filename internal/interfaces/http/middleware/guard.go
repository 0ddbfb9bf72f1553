package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/omkarjtg/ecomm/internal/application/guard"
	"github.com/omkarjtg/ecomm/internal/domain/identity"
	"github.com/omkarjtg/ecomm/internal/infrastructure/logger"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/dto"
)

// UserIDKey is the gin context key holding the signed-in user's ID
const UserIDKey = "user_id"

// RequireRoute gates a route group on the session. Pending answers 202 so the
// client can retry once the stored token is validated; redirects answer 302.
func RequireRoute(g *guard.Guard, req guard.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.Check(c.Request.Context(), req)
		switch d.Kind {
		case guard.Allowed:
			if id := sessionUserID(g.Session()); id != "" {
				c.Set(UserIDKey, id)
				c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), id))
			}
			c.Next()
		case guard.Pending:
			c.AbortWithStatusJSON(http.StatusAccepted, dto.Pending{State: string(guard.Pending)})
		default:
			c.Redirect(http.StatusFound, d.Location)
			c.Abort()
		}
	}
}

func sessionUserID(sess identity.Session) string {
	if !sess.LoggedIn || sess.User == nil {
		return ""
	}
	if sess.User.ID > 0 {
		return strconv.FormatInt(sess.User.ID, 10)
	}
	return sess.User.Username
}
