package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/guardbook/internal/auth"
	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/smallbiznis/guardbook/pkg/db/pagination"
)

const contextPrincipalKey = "admin_principal"

type failedEventsResponse struct {
	Events        []domain.FailedEventRecord `json:"events"`
	NextPageToken string                     `json:"next_page_token,omitempty"`
}

// AdminAuthRequired admits callers whose bearer token carries a role allowed
// to perform action on object. Every denial is a 401.
func (s *Server) AdminAuthRequired(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		principal, err := s.tokens.Verify(ctx, token)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.authz.Authorize(ctx, principal, object, action); err != nil {
			AbortWithError(c, err)
			return
		}

		if decision := s.adminLimiter.Allow(ctx, principal.Subject); !decision.Allowed {
			seconds := int(decision.RetryAfter.Seconds() + 0.999)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

func (s *Server) ListFailedEvents(c *gin.Context) {
	cursor, err := pagination.DecodeCursor(c.Query("page_token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var beforeID int64
	if cursor != nil {
		beforeID = cursor.ID
	}

	limit := s.tuning.Get().Admin.PageSize
	if limit <= 0 || limit > config.MaxAdminPageSize {
		limit = config.MaxAdminPageSize
	}

	rows, err := s.failedEvents.Recent(c.Request.Context(), beforeID, limit+1)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	rows, page, err := pagination.Trim(rows, limit, func(r domain.FailedEventRecord) pagination.Cursor {
		return pagination.Cursor{ID: r.ID}
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if rows == nil {
		rows = []domain.FailedEventRecord{}
	}

	c.JSON(http.StatusOK, failedEventsResponse{
		Events:        rows,
		NextPageToken: page.NextPageToken,
	})
}
