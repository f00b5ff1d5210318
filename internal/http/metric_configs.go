package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/sheetsync/internal/authz"
	"github.com/mrlokans/sheetsync/internal/database/metrics"
	"github.com/mrlokans/sheetsync/internal/entities"
)

// MetricConfigService manages column to metric mappings.
type MetricConfigService interface {
	List(ctx context.Context, scope entities.SyncScope) ([]entities.MetricConfig, error)
	SetMetric(ctx context.Context, scope entities.SyncScope, column string, spec entities.MetricSpec) error
	RemoveMetric(ctx context.Context, scope entities.SyncScope, column string) (bool, error)
}

// MetricReader queries stored metrics.
type MetricReader interface {
	Query(ctx context.Context, f metrics.Filter) ([]entities.Metric, error)
}

// ConfigAuditor records configuration changes.
type ConfigAuditor interface {
	LogConfig(scope entities.SyncScope, action, description string)
}

type MetricsController struct {
	auth    authz.Authorizer
	configs MetricConfigService
	metrics MetricReader
	audit   ConfigAuditor
}

func NewMetricsController(auth authz.Authorizer, configs MetricConfigService, reader MetricReader, audit ConfigAuditor) *MetricsController {
	return &MetricsController{auth: auth, configs: configs, metrics: reader, audit: audit}
}

// allowed runs the permission gate and writes the denial response.
func (mc *MetricsController) allowed(c *gin.Context, scope entities.SyncScope, action entities.Action) bool {
	ok, err := mc.auth.CanPerform(c.Request.Context(), GetActorID(c), scope, action)
	if err != nil {
		respondInternalError(c, err, "permission check")
		return false
	}
	if !ok {
		respondForbidden(c)
		return false
	}
	return true
}

// ListConfigs handles GET /api/metric-configs?client_id=.
func (mc *MetricsController) ListConfigs(c *gin.Context) {
	scope := requestScope(c, c.Query("client_id"))
	if !mc.allowed(c, scope, entities.ActionView) {
		return
	}
	configs, err := mc.configs.List(c.Request.Context(), scope)
	if err != nil {
		respondInternalError(c, err, "list metric configs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope.Key(), "metric_configs": configs})
}

// MetricConfigBody is the JSON body of PUT /api/metric-configs.
type MetricConfigBody struct {
	ClientID    string              `json:"client_id"`
	ColumnName  string              `json:"column_name" binding:"required"`
	MetricName  string              `json:"metric_name" binding:"required"`
	MetricType  entities.MetricType `json:"metric_type" binding:"required"`
	Category    string              `json:"category"`
	TargetValue *float64            `json:"target_value"`
}

// PutConfig handles PUT /api/metric-configs.
func (mc *MetricsController) PutConfig(c *gin.Context) {
	var body MetricConfigBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	scope := requestScope(c, body.ClientID)
	if !mc.allowed(c, scope, entities.ActionConfigure) {
		return
	}

	spec := entities.MetricSpec{
		MetricName:  body.MetricName,
		MetricType:  body.MetricType,
		Category:    body.Category,
		TargetValue: body.TargetValue,
	}
	if err := mc.configs.SetMetric(c.Request.Context(), scope, body.ColumnName, spec); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if mc.audit != nil {
		mc.audit.LogConfig(scope, "set_metric", fmt.Sprintf("%s -> %s (%s)", body.ColumnName, body.MetricName, body.MetricType))
	}
	c.JSON(http.StatusOK, gin.H{"message": "metric configured", "column_name": body.ColumnName})
}

// DeleteConfig handles DELETE /api/metric-configs/:column?client_id=.
func (mc *MetricsController) DeleteConfig(c *gin.Context) {
	scope := requestScope(c, c.Query("client_id"))
	if !mc.allowed(c, scope, entities.ActionConfigure) {
		return
	}
	column := c.Param("column")
	removed, err := mc.configs.RemoveMetric(c.Request.Context(), scope, column)
	if err != nil {
		respondInternalError(c, err, "remove metric config")
		return
	}
	if !removed {
		respondNotFound(c, "metric config")
		return
	}
	if mc.audit != nil {
		mc.audit.LogConfig(scope, "remove_metric", column)
	}
	c.JSON(http.StatusOK, gin.H{"message": "metric removed", "column_name": column})
}

// ListMetrics handles GET /api/metrics with optional source_kind, source_id,
// sheet_name, tab_name, metric_name, from, to and limit filters.
func (mc *MetricsController) ListMetrics(c *gin.Context) {
	scope := requestScope(c, c.Query("client_id"))
	if !mc.allowed(c, scope, entities.ActionView) {
		return
	}

	f := metrics.Filter{
		Scope:      scope,
		SourceKind: entities.SourceKind(c.Query("source_kind")),
		SourceID:   c.Query("source_id"),
		SheetName:  c.Query("sheet_name"),
		TabName:    c.Query("tab_name"),
		MetricName: c.Query("metric_name"),
		From:       c.Query("from"),
		To:         c.Query("to"),
	}
	if f.SourceKind != "" && !f.SourceKind.Valid() {
		respondBadRequest(c, "unknown source_kind "+string(f.SourceKind))
		return
	}
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			respondBadRequest(c, "dates must be YYYY-MM-DD")
			return
		}
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondBadRequest(c, "invalid limit")
			return
		}
		f.Limit = limit
	}

	rows, err := mc.metrics.Query(c.Request.Context(), f)
	if err != nil {
		respondInternalError(c, err, "query metrics")
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope.Key(), "metrics": rows, "count": len(rows)})
}
