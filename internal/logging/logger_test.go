package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/evolab/internal/models"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"warn", "warn", slog.LevelWarn},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level      string
		logAtDebug bool
		logAtTrace bool
	}{
		{"info", false, false},
		{"debug", true, false},
		{"trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			assert.Equal(t, tt.logAtDebug, bytes.Contains(buf.Bytes(), []byte("debug message")))

			buf.Reset()
			logger.Log(context.Background(), LevelTrace, "trace message")
			assert.Equal(t, tt.logAtTrace, bytes.Contains(buf.Bytes(), []byte("trace message")))
			if tt.logAtTrace {
				assert.Contains(t, buf.String(), "level=TRACE")
			}
		})
	}
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	var buf bytes.Buffer
	l := NewLogger("info", &buf)
	assert.Same(t, l, OrDiscard(l))
}

func TestNewEventLog_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "info")
	assert.Nil(t, el)

	// A nil log is still usable.
	el.Record(models.Event{Kind: models.EventSkillAcquired, Agent: "a"})
	el.Close()
	assert.IsType(t, models.DiscardEvents{}, el.Sink())

	_, err := os.Stat(filepath.Join(dir, EventsFile))
	assert.True(t, os.IsNotExist(err), "events file should not exist at info level")
}

func TestEventLog_RecordsJSONL(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "debug")
	require.NotNil(t, el)

	el.Record(models.Event{Kind: models.EventLevelAdvanced, Agent: "Lab_Director", Level: 2})
	el.Record(models.Event{Kind: models.EventKnowledgeShared, Agent: "a", Peer: "b", Subject: "fact"})
	el.Close()

	f, err := os.Open(filepath.Join(dir, EventsFile))
	require.NoError(t, err)
	defer f.Close()

	var events []models.Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e models.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, events, 2)

	assert.Equal(t, models.EventLevelAdvanced, events[0].Kind)
	assert.Equal(t, 2, events[0].Level)
	assert.False(t, events[0].Time.IsZero(), "time should be stamped")
	assert.Equal(t, "b", events[1].Peer)
}

func TestEventLog_RecordAfterClose(t *testing.T) {
	el := NewEventLog(t.TempDir(), "trace")
	require.NotNil(t, el)
	el.Close()

	assert.NotPanics(t, func() {
		el.Record(models.Event{Kind: models.EventSkillAcquired})
		el.Close()
	})
}

func TestEventLog_ConcurrentRecordAndClose(t *testing.T) {
	el := NewEventLog(t.TempDir(), "debug")
	require.NotNil(t, el)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				el.Record(models.Event{Kind: models.EventSkillAcquired, Round: i*50 + j})
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		el.Close()
	}()
	wg.Wait()

	assert.NotPanics(t, func() { el.Record(models.Event{Kind: models.EventSkillAcquired}) })
}
