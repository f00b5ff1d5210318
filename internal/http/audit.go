package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/sheetsync/internal/authz"
	dbaudit "github.com/mrlokans/sheetsync/internal/database/audit"
	"github.com/mrlokans/sheetsync/internal/entities"
)

// AuditReader pages through the audit log.
type AuditReader interface {
	GetEvents(filter dbaudit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error)
}

type AuditController struct {
	auth   authz.Authorizer
	events AuditReader
}

func NewAuditController(auth authz.Authorizer, events AuditReader) *AuditController {
	return &AuditController{auth: auth, events: events}
}

// List handles GET /api/audit?client_id=&type=&run_id=&page=.
func (ac *AuditController) List(c *gin.Context) {
	scope := requestScope(c, c.Query("client_id"))
	ok, err := ac.auth.CanPerform(c.Request.Context(), GetActorID(c), scope, entities.ActionView)
	if err != nil {
		respondInternalError(c, err, "permission check")
		return
	}
	if !ok {
		respondForbidden(c)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit := 25
	offset := (page - 1) * limit

	events, total, err := ac.events.GetEvents(dbaudit.Filter{
		ScopeKey:  scope.Key(),
		EventType: entities.AuditEventType(c.Query("type")),
		RunID:     c.Query("run_id"),
	}, limit, offset)
	if err != nil {
		respondInternalError(c, err, "list audit events")
		return
	}

	totalPages := (int(total) + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}
	c.JSON(http.StatusOK, gin.H{
		"events":      events,
		"total":       total,
		"page":        page,
		"total_pages": totalPages,
	})
}
