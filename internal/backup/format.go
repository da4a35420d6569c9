package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/evolab/internal/models"
)

// FormatVersion is the current backup file version.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of decompressed backup data (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Snapshot is the full content of a backup.
type Snapshot struct {
	Version   int                    `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
	Agents    []models.AgentState    `json:"agents"`
	Feedback  []models.FeedbackEntry `json:"feedback"`
	Runs      []models.RunRecord     `json:"runs"`
}

// Header is the plain-text first line of a backup file. It can be read
// without decompressing the payload.
type Header struct {
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	Checksum      string    `json:"checksum"`
	AgentCount    int       `json:"agent_count"`
	FeedbackCount int       `json:"feedback_count"`
	RunCount      int       `json:"run_count"`
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// Write stores a snapshot as a header line followed by the gzip-compressed
// JSON payload. The header carries the SHA-256 of the compressed bytes.
func Write(path string, s *Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	headerBytes, err := json.Marshal(Header{
		Version:       FormatVersion,
		CreatedAt:     s.CreatedAt,
		Checksum:      checksum(compressed.Bytes()),
		AgentCount:    len(s.Agents),
		FeedbackCount: len(s.Feedback),
		RunCount:      len(s.Runs),
	})
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.Write(headerBytes)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	return f.Close()
}

// openBackup parses the header and returns a reader positioned at the
// payload.
func openBackup(path string) (*Header, *bufio.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening file: %w", err)
	}

	reader := bufio.NewReader(f)
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, nil, nil, fmt.Errorf("unsupported backup version: %d", header.Version)
	}
	return &header, reader, f, nil
}

// ReadHeader reads only the header line of a backup file.
func ReadHeader(path string) (*Header, error) {
	header, _, f, err := openBackup(path)
	if err != nil {
		return nil, err
	}
	f.Close()
	return header, nil
}

func readPayload(path string) (*Header, []byte, error) {
	header, reader, f, err := openBackup(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if actual := checksum(compressed); actual != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return header, compressed, nil
}

// VerifyChecksum checks the integrity of a backup file without
// decompressing it.
func VerifyChecksum(path string) error {
	_, _, err := readPayload(path)
	return err
}

// Read loads a backup file, verifying its checksum.
func Read(path string) (*Snapshot, error) {
	_, compressed, err := readPayload(path)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var s Snapshot
	if err := json.Unmarshal(decompressed, &s); err != nil {
		return nil, fmt.Errorf("parsing backup data: %w", err)
	}
	return &s, nil
}
