package mcp

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAudit(t *testing.T, dir string) []AuditEntry {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, AuditFile))
	require.NoError(t, err)
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestAuditLogger_NilSafety(t *testing.T) {
	var logger *AuditLogger
	assert.NotPanics(t, func() { logger.Log(AuditEntry{Tool: "test"}) })
	assert.NoError(t, logger.Close())
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	require.NotNil(t, logger)

	logger.Log(AuditEntry{
		Timestamp:  time.Now(),
		Tool:       "evolab_simulate",
		DurationMs: 42,
		Status:     "success",
		Params:     map[string]string{"rounds": "20"},
	})
	logger.Log(AuditEntry{Tool: "evolab_rate", Status: "error", Error: "boom"})
	require.NoError(t, logger.Close())

	entries := readAudit(t, dir)
	require.Len(t, entries, 2)
	assert.Equal(t, "evolab_simulate", entries[0].Tool)
	assert.Equal(t, int64(42), entries[0].DurationMs)
	assert.Equal(t, "20", entries[0].Params["rounds"])
	assert.Equal(t, "error", entries[1].Status)
	assert.Equal(t, "boom", entries[1].Error)
}

func TestAuditLogger_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	require.NotNil(t, logger)
	defer logger.Close()

	info, err := os.Stat(filepath.Join(dir, AuditFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestAuditLogger_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	require.NotNil(t, logger)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Log(AuditEntry{Tool: "evolab_agents", Status: "success"})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	assert.Len(t, readAudit(t, dir), 200)
}

func TestAuditLogger_LogAfterClose(t *testing.T) {
	logger := NewAuditLogger(t.TempDir())
	require.NotNil(t, logger)
	require.NoError(t, logger.Close())

	assert.NotPanics(t, func() { logger.Log(AuditEntry{Tool: "late"}) })
	assert.NoError(t, logger.Close())
}

func TestAuditLogger_BadPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	assert.Nil(t, NewAuditLogger(filepath.Join(file, "audit")))
}

func TestSanitizeToolParams(t *testing.T) {
	t.Run("safe values are included", func(t *testing.T) {
		result := sanitizeToolParams("evolab_simulate", map[string]interface{}{
			"rounds": 20,
			"detail": true,
		})
		assert.Equal(t, "20", result["rounds"])
		assert.Equal(t, "true", result["detail"])
		assert.Equal(t, "2", result["_param_count"])
	})

	t.Run("feedback text is redacted", func(t *testing.T) {
		result := sanitizeToolParams("evolab_feedback", map[string]interface{}{
			"input":    "something private",
			"response": "an answer",
			"ratings":  2,
		})
		assert.Equal(t, "(set)", result["input"])
		assert.Equal(t, "(set)", result["response"])
		assert.Equal(t, "2", result["ratings"])
	})

	t.Run("empty strings count as absent", func(t *testing.T) {
		result := sanitizeToolParams("evolab_feedback", map[string]interface{}{
			"input":      "x",
			"session_id": "",
		})
		_, ok := result["session_id"]
		assert.False(t, ok)
		assert.Equal(t, "1", result["_param_count"])
	})

	t.Run("unknown params are excluded", func(t *testing.T) {
		result := sanitizeToolParams("test", map[string]interface{}{"secret": "nope"})
		_, ok := result["secret"]
		assert.False(t, ok)
		assert.Equal(t, "1", result["_param_count"])
	})

	t.Run("nil params returns nil", func(t *testing.T) {
		assert.Nil(t, sanitizeToolParams("test", nil))
	})
}

func TestAuditTool_RecordsOutcome(t *testing.T) {
	server, dir := setupTestServer(t)

	server.auditTool("evolab_runs", time.Now(), nil, map[string]string{"limit": "5"})
	server.auditTool("evolab_rate", time.Now(), errors.New("bad rating"), nil)
	require.NoError(t, server.Close())

	entries := readAudit(t, dir)
	require.Len(t, entries, 2)
	assert.Equal(t, "success", entries[0].Status)
	assert.Equal(t, "5", entries[0].Params["limit"])
	assert.Equal(t, "error", entries[1].Status)
	assert.Equal(t, "bad rating", entries[1].Error)
}
