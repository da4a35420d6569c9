package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	filePrefix = "evolab-backup-"
	fileExt    = ".evb"
)

// BackupInfo holds metadata for retention decisions.
type BackupInfo struct {
	Path      string
	Size      int64
	CreatedAt time.Time
}

// RetentionPolicy decides which backups to keep. Input is sorted
// newest first.
type RetentionPolicy interface {
	Apply(backups []BackupInfo) (keep []BackupInfo)
}

// CountPolicy keeps the N most recent backups.
type CountPolicy struct {
	MaxCount int
}

// Apply implements RetentionPolicy.
func (p *CountPolicy) Apply(backups []BackupInfo) []BackupInfo {
	if len(backups) <= p.MaxCount {
		return backups
	}
	return backups[:p.MaxCount]
}

// AgePolicy keeps backups newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
}

// Apply implements RetentionPolicy.
func (p *AgePolicy) Apply(backups []BackupInfo) []BackupInfo {
	cutoff := time.Now().Add(-p.MaxAge)
	var keep []BackupInfo
	for _, b := range backups {
		if b.CreatedAt.After(cutoff) {
			keep = append(keep, b)
		}
	}
	return keep
}

// SizePolicy keeps the newest backups until their total size would exceed
// MaxTotalBytes. The newest backup is always kept.
type SizePolicy struct {
	MaxTotalBytes int64
}

// Apply implements RetentionPolicy.
func (p *SizePolicy) Apply(backups []BackupInfo) []BackupInfo {
	var keep []BackupInfo
	var total int64
	for _, b := range backups {
		if total+b.Size > p.MaxTotalBytes && len(keep) > 0 {
			break
		}
		keep = append(keep, b)
		total += b.Size
	}
	return keep
}

// AllPolicy keeps a backup only if every sub-policy keeps it.
type AllPolicy []RetentionPolicy

// Apply implements RetentionPolicy.
func (p AllPolicy) Apply(backups []BackupInfo) []BackupInfo {
	keep := backups
	for _, policy := range p {
		keep = policy.Apply(keep)
	}
	return keep
}

// ListBackups scans dir for backup files and returns them sorted
// newest first. A missing directory has no backups.
func ListBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || filepath.Ext(name) != fileExt {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		bi := BackupInfo{
			Path:      filepath.Join(dir, name),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		if h, err := ReadHeader(bi.Path); err == nil {
			bi.CreatedAt = h.CreatedAt
		}
		backups = append(backups, bi)
	}

	// The timestamp is embedded in the name.
	sort.Slice(backups, func(i, j int) bool {
		return filepath.Base(backups[i].Path) > filepath.Base(backups[j].Path)
	})
	return backups, nil
}

// ApplyRetention deletes backups in dir not kept by the policy.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}

	keepSet := make(map[string]bool)
	for _, b := range policy.Apply(backups) {
		keepSet[b.Path] = true
	}

	for _, b := range backups {
		if keepSet[b.Path] {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseDuration parses duration strings like "30d", "2w", "720h".
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || num < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix in %q", s)
	}
}

// ParseSize parses sizes like "100MB", "1 GiB" or "500kB" into bytes.
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}

// PolicyFromFlags builds a policy from optional limits. Zero or empty
// values are ignored; nil is returned when no limit is set.
func PolicyFromFlags(keep int, maxAge, maxSize string) (RetentionPolicy, error) {
	var all AllPolicy
	if keep > 0 {
		all = append(all, &CountPolicy{MaxCount: keep})
	}
	if maxAge != "" {
		d, err := ParseDuration(maxAge)
		if err != nil {
			return nil, err
		}
		all = append(all, &AgePolicy{MaxAge: d})
	}
	if maxSize != "" {
		n, err := ParseSize(maxSize)
		if err != nil {
			return nil, err
		}
		all = append(all, &SizePolicy{MaxTotalBytes: n})
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}
