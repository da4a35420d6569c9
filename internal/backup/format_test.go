package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/evolab/internal/models"
)

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.evb")
	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	in := &Snapshot{
		Version:   FormatVersion,
		CreatedAt: created,
		Agents:    []models.AgentState{{Name: "a", EvolutionLevel: 2, Skills: []string{"s"}, Knowledge: []string{"k"}}},
		Feedback:  []models.FeedbackEntry{{ID: "f", Input: "i", Ratings: map[string]float64{"a": 4}}},
	}
	require.NoError(t, Write(path, in))

	header, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, header.Version)
	assert.True(t, created.Equal(header.CreatedAt))
	assert.Equal(t, 1, header.AgentCount)
	assert.Equal(t, 1, header.FeedbackCount)
	assert.Zero(t, header.RunCount)
	assert.Contains(t, header.Checksum, "sha256:")

	require.NoError(t, VerifyChecksum(path))

	out, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, in.Agents, out.Agents)
	assert.Equal(t, "f", out.Feedback[0].ID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestReadHeader_Rejects(t *testing.T) {
	dir := t.TempDir()

	noNewline := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(noNewline, []byte(`{"version":1}`), 0600))
	_, err := ReadHeader(noNewline)
	assert.Error(t, err)

	badVersion := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(badVersion, []byte("{\"version\":9}\n"), 0600))
	_, err = ReadHeader(badVersion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported backup version")

	_, err = Read(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
