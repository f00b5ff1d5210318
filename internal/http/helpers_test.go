package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/syncer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memberAuthorizer allows personal scopes of the actor and the listed clients.
type memberAuthorizer struct {
	clients map[string]entities.Role
}

func (a memberAuthorizer) CanPerform(_ context.Context, actorID string, scope entities.SyncScope, action entities.Action) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	if scope.IsPersonal() {
		return scope.ActorID == actorID, nil
	}
	return a.clients[scope.Client()].Allows(action), nil
}

func doJSON(t *testing.T, router http.Handler, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(HeaderActorID, actor)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind syncer.ErrorKind
		want int
	}{
		{syncer.KindPermissionDenied, http.StatusForbidden},
		{syncer.KindMalformedReference, http.StatusBadRequest},
		{syncer.KindAuthExpired, http.StatusUnauthorized},
		{syncer.KindUpstreamTimeout, http.StatusGatewayTimeout},
		{syncer.KindUpstreamRejected, http.StatusBadGateway},
		{syncer.KindUpstreamMalformed, http.StatusBadGateway},
		{syncer.KindUpstreamUnavailable, http.StatusServiceUnavailable},
		{syncer.KindPersistence, http.StatusInternalServerError},
		{syncer.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForKind(tt.kind))
		})
	}
}

func TestActorMiddleware(t *testing.T) {
	newRouter := func(def string) *gin.Engine {
		r := gin.New()
		r.Use(ActorMiddleware(def))
		r.GET("/whoami", func(c *gin.Context) {
			c.String(http.StatusOK, GetActorID(c))
		})
		return r
	}

	w := doJSON(t, newRouter(""), "GET", "/whoami", " u1 ", nil)
	assert.Equal(t, "u1", w.Body.String())

	w = doJSON(t, newRouter("local"), "GET", "/whoami", "", nil)
	assert.Equal(t, "local", w.Body.String())

	w = doJSON(t, newRouter(""), "GET", "/whoami", "", nil)
	assert.Equal(t, "", w.Body.String())
}
