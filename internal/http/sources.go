package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/sheetsync/internal/authz"
	"github.com/mrlokans/sheetsync/internal/database/sources"
	"github.com/mrlokans/sheetsync/internal/entities"
)

// SourceStore keeps the spreadsheets synced on schedule.
type SourceStore interface {
	Add(ctx context.Context, src *entities.SyncSource) error
	Get(ctx context.Context, id uint) (*entities.SyncSource, error)
	List(ctx context.Context, actorID string) ([]entities.SyncSource, error)
	SetEnabled(ctx context.Context, id uint, enabled bool) error
	Remove(ctx context.Context, id uint) error
}

type SourcesController struct {
	auth    authz.Authorizer
	sources SourceStore
}

func NewSourcesController(auth authz.Authorizer, store SourceStore) *SourcesController {
	return &SourcesController{auth: auth, sources: store}
}

// List handles GET /api/sources.
func (sc *SourcesController) List(c *gin.Context) {
	srcs, err := sc.sources.List(c.Request.Context(), GetActorID(c))
	if err != nil {
		respondInternalError(c, err, "list sources")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": srcs})
}

type AddSourceBody struct {
	ClientID  string `json:"client_id"`
	SourceRef string `json:"source_ref" binding:"required"`
	SheetName string `json:"sheet_name"`
	Disabled  bool   `json:"disabled"`
}

// Add handles POST /api/sources. Registering a source requires sync access
// to its scope.
func (sc *SourcesController) Add(c *gin.Context) {
	var body AddSourceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	scope := requestScope(c, body.ClientID)
	ok, err := sc.auth.CanPerform(c.Request.Context(), GetActorID(c), scope, entities.ActionSync)
	if err != nil {
		respondInternalError(c, err, "permission check")
		return
	}
	if !ok {
		respondForbidden(c)
		return
	}

	src := &entities.SyncSource{
		ActorID:   scope.ActorID,
		SourceRef: body.SourceRef,
		SheetName: strings.TrimSpace(body.SheetName),
		Enabled:   !body.Disabled,
	}
	if !scope.IsPersonal() {
		client := scope.Client()
		src.ClientID = &client
	}
	if err := sc.sources.Add(c.Request.Context(), src); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusCreated, src)
}

type SetEnabledBody struct {
	Enabled bool `json:"enabled"`
}

// SetEnabled handles PATCH /api/sources/:id.
func (sc *SourcesController) SetEnabled(c *gin.Context) {
	src, ok := sc.ownedSource(c)
	if !ok {
		return
	}
	var body SetEnabledBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := sc.sources.SetEnabled(c.Request.Context(), src.ID, body.Enabled); err != nil {
		respondInternalError(c, err, "update source")
		return
	}
	src.Enabled = body.Enabled
	c.JSON(http.StatusOK, src)
}

// Remove handles DELETE /api/sources/:id.
func (sc *SourcesController) Remove(c *gin.Context) {
	src, ok := sc.ownedSource(c)
	if !ok {
		return
	}
	if err := sc.sources.Remove(c.Request.Context(), src.ID); err != nil {
		respondInternalError(c, err, "remove source")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "source removed"})
}

// ownedSource loads the :id source if it belongs to the calling actor.
// Sources of other actors are reported as missing.
func (sc *SourcesController) ownedSource(c *gin.Context) (*entities.SyncSource, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "invalid source id")
		return nil, false
	}
	src, err := sc.sources.Get(c.Request.Context(), uint(id))
	if errors.Is(err, sources.ErrNotFound) || (err == nil && src.ActorID != GetActorID(c)) {
		respondNotFound(c, "source")
		return nil, false
	}
	if err != nil {
		respondInternalError(c, err, "get source")
		return nil, false
	}
	return src, true
}
