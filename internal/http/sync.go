package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/ingest"
	"github.com/mrlokans/sheetsync/internal/syncer"
	"github.com/mrlokans/sheetsync/internal/tasks"
)

// maxImportSize bounds uploaded CSV files.
const maxImportSize = 10 << 20

// SyncService is the orchestrator surface used by the API.
type SyncService interface {
	Sync(ctx context.Context, actorID string, req syncer.SyncRequest) syncer.SyncResult
	ImportFile(ctx context.Context, actorID string, req syncer.ImportRequest) syncer.SyncResult
	Status(ctx context.Context, actorID string, scope entities.SyncScope, sheetName string) ([]syncer.StatusReport, error)
	DiscoverTabs(ctx context.Context, actorID string, scope entities.SyncScope, sourceRef string) ([]entities.SheetTab, error)
}

// TaskQueue accepts background work.
type TaskQueue interface {
	Enqueue(ctx context.Context, tasks ...backlite.Task) ([]string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

type SyncController struct {
	syncer SyncService
	queue  TaskQueue
}

// NewSyncController serves sync endpoints; queue may be nil when background
// tasks are disabled.
func NewSyncController(s SyncService, queue TaskQueue) *SyncController {
	return &SyncController{syncer: s, queue: queue}
}

// SyncRequestBody is the JSON body of POST /api/sync.
type SyncRequestBody struct {
	ClientID  string `json:"client_id"`
	SourceRef string `json:"source_ref"`
	SheetName string `json:"sheet_name"`
	Tab       string `json:"tab"`
	Range     string `json:"range"`
}

// Sync handles POST /api/sync and runs the sync in the request.
func (sc *SyncController) Sync(c *gin.Context) {
	var body SyncRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res := sc.syncer.Sync(c.Request.Context(), GetActorID(c), syncer.SyncRequest{
		Scope:     requestScope(c, body.ClientID),
		SourceRef: body.SourceRef,
		SheetName: body.SheetName,
		Tab:       body.Tab,
		Range:     body.Range,
	})
	respondResult(c, res)
}

// SyncAsync handles POST /api/sync/async and queues the sync.
func (sc *SyncController) SyncAsync(c *gin.Context) {
	if sc.queue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "background tasks are disabled"})
		return
	}

	var body SyncRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(body.SourceRef) == "" {
		respondBadRequest(c, "source_ref is required")
		return
	}

	// The queued task still runs the permission gate.
	actor := GetActorID(c)
	if actor == "" {
		respondForbidden(c)
		return
	}

	ids, err := sc.queue.Enqueue(c.Request.Context(), tasks.SyncSheetTask{
		ActorID:   actor,
		ClientID:  strings.TrimSpace(body.ClientID),
		SourceRef: body.SourceRef,
		SheetName: body.SheetName,
		Tab:       body.Tab,
		Range:     body.Range,
	})
	if err != nil {
		respondInternalError(c, err, "enqueue sync")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": ids[0], "message": "sync queued"})
}

// Status handles GET /api/sync/status?client_id=&sheet_name=.
func (sc *SyncController) Status(c *gin.Context) {
	scope := requestScope(c, c.Query("client_id"))
	reports, err := sc.syncer.Status(c.Request.Context(), GetActorID(c), scope, strings.TrimSpace(c.Query("sheet_name")))
	if err != nil {
		respondSyncError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope.Key(), "statuses": reports})
}

// Tabs handles GET /api/sheets/tabs?source_ref=&client_id=.
func (sc *SyncController) Tabs(c *gin.Context) {
	scope := requestScope(c, c.Query("client_id"))
	tabs, err := sc.syncer.DiscoverTabs(c.Request.Context(), GetActorID(c), scope, c.Query("source_ref"))
	if err != nil {
		respondSyncError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tabs": tabs})
}

// ImportRequestBody is the JSON form of POST /api/imports.
type ImportRequestBody struct {
	ClientID  string            `json:"client_id"`
	BatchID   string            `json:"batch_id"`
	SheetName string            `json:"sheet_name"`
	TabName   string            `json:"tab_name"`
	Rows      []entities.RawRow `json:"rows"`
}

// Import handles POST /api/imports. It accepts either a JSON body of rows or
// a multipart upload with a CSV "file" and the same fields as form values.
func (sc *SyncController) Import(c *gin.Context) {
	var body ImportRequestBody

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			respondBadRequest(c, "no CSV file provided")
			return
		}
		defer file.Close()

		rows, err := ingest.ParseCSV(file)
		if err != nil {
			respondBadRequest(c, fmt.Sprintf("failed to parse %s: %v", header.Filename, err))
			return
		}
		body = ImportRequestBody{
			ClientID:  c.PostForm("client_id"),
			BatchID:   c.PostForm("batch_id"),
			SheetName: c.PostForm("sheet_name"),
			TabName:   c.PostForm("tab_name"),
			Rows:      rows,
		}
		if body.BatchID == "" {
			body.BatchID = header.Filename
		}
	} else if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res := sc.syncer.ImportFile(c.Request.Context(), GetActorID(c), syncer.ImportRequest{
		Scope:     requestScope(c, body.ClientID),
		BatchID:   body.BatchID,
		SheetName: body.SheetName,
		TabName:   body.TabName,
		Rows:      body.Rows,
	})
	respondResult(c, res)
}

// TaskStatus handles GET /api/tasks/:id.
func (sc *SyncController) TaskStatus(c *gin.Context) {
	if sc.queue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "background tasks are disabled"})
		return
	}
	status, err := sc.queue.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}
	if status == backlite.TaskStatusNotFound {
		respondNotFound(c, "task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": taskStatusToString(status)})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
