package http

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/syncer"
)

// HeaderActorID carries the authenticated actor, set by the fronting proxy.
const HeaderActorID = "X-Actor-ID"

const contextKeyActorID = "actor_id"

// ActorMiddleware stores the request's actor in the gin context. When the
// header is absent defaultActor is used; an empty default leaves the actor
// unset and the permission gate denies the request.
func ActorMiddleware(defaultActor string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if actor == "" {
			actor = defaultActor
		}
		c.Set(contextKeyActorID, actor)
		c.Next()
	}
}

// GetActorID returns the actor set by ActorMiddleware.
func GetActorID(c *gin.Context) string {
	return c.GetString(contextKeyActorID)
}

// requestScope builds the scope of a request for the calling actor.
func requestScope(c *gin.Context, clientID string) entities.SyncScope {
	return entities.NewSyncScope(GetActorID(c), strings.TrimSpace(clientID))
}

// ErrorResponse is the error body of every API endpoint.
type ErrorResponse struct {
	Error     string           `json:"error"`
	Code      syncer.ErrorKind `json:"code,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: syncer.KindMalformedReference})
}

func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

func respondForbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, ErrorResponse{Error: "permission denied", Code: syncer.KindPermissionDenied})
}

// respondInternalError logs err and hides it from the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: syncer.KindInternal})
}

// respondSyncError maps a typed sync error to its HTTP status.
func respondSyncError(c *gin.Context, err error) {
	var se *syncer.Error
	if !errors.As(err, &se) {
		respondInternalError(c, err, c.FullPath())
		return
	}
	c.JSON(StatusForKind(se.Kind), ErrorResponse{Error: se.Message, Code: se.Kind, Retryable: se.Retryable()})
}

// respondResult writes a SyncResult with the status matching its outcome.
func respondResult(c *gin.Context, res syncer.SyncResult) {
	status := http.StatusOK
	if res.Error != nil {
		status = StatusForKind(res.Error.Kind)
	}
	c.JSON(status, res)
}

// StatusForKind is the HTTP status reported for a failed run.
func StatusForKind(kind syncer.ErrorKind) int {
	switch kind {
	case syncer.KindPermissionDenied:
		return http.StatusForbidden
	case syncer.KindMalformedReference:
		return http.StatusBadRequest
	case syncer.KindAuthExpired:
		return http.StatusUnauthorized
	case syncer.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case syncer.KindUpstreamRejected, syncer.KindUpstreamMalformed:
		return http.StatusBadGateway
	case syncer.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case syncer.KindRowMapping:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
