package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/syncer"
)

type stubSyncer struct {
	gotActor string
	gotReq   syncer.SyncRequest
	result   syncer.SyncResult
}

func (s *stubSyncer) Sync(_ context.Context, actorID string, req syncer.SyncRequest) syncer.SyncResult {
	s.gotActor = actorID
	s.gotReq = req
	return s.result
}

func TestSyncCommand_ParseFlags(t *testing.T) {
	cmd := NewSyncCommand()
	err := cmd.ParseFlags([]string{"-actor", "alice", "-client", "acme", "-source", "abc123", "-tab", "January", "-range", "A1:D9"})
	require.NoError(t, err)

	req := cmd.Request()
	assert.Equal(t, "client:acme", req.Scope.Key())
	assert.Equal(t, "abc123", req.SourceRef)
	assert.Equal(t, "January", req.Tab)
	assert.Equal(t, "A1:D9", req.Range)
}

func TestSyncCommand_ParseFlagsRequiresActorAndSource(t *testing.T) {
	assert.Error(t, NewSyncCommand().ParseFlags([]string{"-source", "abc"}))
	assert.Error(t, NewSyncCommand().ParseFlags([]string{"-actor", "alice"}))
}

func TestSyncCommand_ExecuteSuccess(t *testing.T) {
	stub := &stubSyncer{result: syncer.SyncResult{
		Success:  true,
		Inserted: 3,
		Failed:   []syncer.FailedRow{{Row: 4, Kind: syncer.KindRowMapping, Reason: "bad date"}},
	}}
	cmd := &SyncCommand{ActorID: "alice", SourceRef: "abc123"}

	var out bytes.Buffer
	ok, err := cmd.Execute(context.Background(), stub, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", stub.gotActor)
	assert.Equal(t, entities.NewSyncScope("alice", ""), stub.gotReq.Scope)

	var printed map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, true, printed["success"])
	assert.Len(t, printed["failedRows"], 1)
	assert.NotContains(t, printed, "error")
}

func TestSyncCommand_ExecuteFailure(t *testing.T) {
	stub := &stubSyncer{result: syncer.SyncResult{
		Error: &syncer.Error{Kind: syncer.KindPermissionDenied, Message: "not allowed"},
	}}
	cmd := &SyncCommand{ActorID: "mallory", SourceRef: "abc123"}

	var out bytes.Buffer
	ok, err := cmd.Execute(context.Background(), stub, &out)
	require.NoError(t, err)
	assert.False(t, ok)

	var printed struct {
		Success bool `json:"success"`
		Error   struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.False(t, printed.Success)
	assert.Equal(t, string(syncer.KindPermissionDenied), printed.Error.Kind)
}
