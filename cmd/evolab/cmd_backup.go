package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/evolab/internal/backup"
	"github.com/nvandessel/evolab/internal/pathutil"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export agents, feedback and runs to a backup file",
		Long: `Back up the stored lab state to a compressed, checksummed file.

Default location: <root>/.evolab/backups/evolab-backup-YYYYMMDD-HHMMSS.000.evb
Output paths must be inside <root>/.evolab/backups or ~/.evolab/backups.
Retention flags prune older backups in the output directory afterwards.

Examples:
  evolab backup                         # Backup to the default location
  evolab backup --keep 5                # Keep only the 5 newest backups
  evolab backup --max-age 30d           # Drop backups older than 30 days
  evolab backup --max-size 100MB        # Cap the directory size
  evolab backup list                    # List backups
  evolab backup verify <file>           # Verify a backup's checksum`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			outputPath, _ := cmd.Flags().GetString("output")
			keep, _ := cmd.Flags().GetInt("keep")
			maxAge, _ := cmd.Flags().GetString("max-age")
			maxSize, _ := cmd.Flags().GetString("max-size")

			policy, err := backup.PolicyFromFlags(keep, maxAge, maxSize)
			if err != nil {
				return err
			}

			if outputPath == "" {
				outputPath = backup.GenerateBackupPath(backup.DefaultBackupDir(root))
			} else if err := pathutil.ValidatePath(outputPath, pathutil.BackupDirs(root, backup.BackupDirName)); err != nil {
				return fmt.Errorf("backup path rejected: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cfg, root)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			snap, err := backup.Backup(cmd.Context(), st, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			var deleted []string
			if policy != nil {
				deleted, err = backup.ApplyRetention(filepath.Dir(outputPath), policy)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
				}
			}

			var size int64
			if info, err := os.Stat(outputPath); err == nil {
				size = info.Size()
			}

			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"path":           outputPath,
					"agent_count":    len(snap.Agents),
					"feedback_count": len(snap.Feedback),
					"run_count":      len(snap.Runs),
					"size_bytes":     size,
					"deleted":        deleted,
				})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Backup created: %d agents, %d feedback entries, %d runs (%s)\n",
				len(snap.Agents), len(snap.Feedback), len(snap.Runs), humanize.Bytes(uint64(size)))
			fmt.Fprintf(w, "  Path: %s\n", outputPath)
			if len(deleted) > 0 {
				fmt.Fprintf(w, "  Pruned %d old backup(s)\n", len(deleted))
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path (default: auto-generated in <root>/.evolab/backups/)")
	cmd.Flags().Int("keep", 0, "Keep at most N backups")
	cmd.Flags().String("max-age", "", "Delete backups older than this (e.g. 30d, 2w, 12h)")
	cmd.Flags().String("max-size", "", "Keep total backup size under this (e.g. 100MB)")

	cmd.AddCommand(newBackupListCmd(), newBackupVerifyCmd())
	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups with their contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			backups, err := backup.ListBackups(backup.DefaultBackupDir(root))
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			type entry struct {
				Path          string `json:"path"`
				SizeBytes     int64  `json:"size_bytes"`
				CreatedAt     string `json:"created_at"`
				AgentCount    int    `json:"agent_count"`
				FeedbackCount int    `json:"feedback_count"`
				RunCount      int    `json:"run_count"`
			}
			entries := make([]entry, 0, len(backups))
			for _, b := range backups {
				e := entry{Path: b.Path, SizeBytes: b.Size, CreatedAt: b.CreatedAt.Format("2006-01-02T15:04:05Z07:00")}
				if h, err := backup.ReadHeader(b.Path); err == nil {
					e.AgentCount = h.AgentCount
					e.FeedbackCount = h.FeedbackCount
					e.RunCount = h.RunCount
				}
				entries = append(entries, e)
			}

			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"backups": entries,
					"count":   len(entries),
				})
			}

			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "No backups found.")
				return nil
			}
			for i, e := range entries {
				fmt.Fprintf(w, "%s  %8s  %s  agents=%d feedback=%d runs=%d\n",
					filepath.Base(e.Path), humanize.Bytes(uint64(e.SizeBytes)),
					humanize.Time(backups[i].CreatedAt), e.AgentCount, e.FeedbackCount, e.RunCount)
			}
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a backup file's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			err := backup.VerifyChecksum(path)

			if jsonFlag(cmd) {
				out := map[string]interface{}{"path": path, "valid": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				if werr := writeJSON(cmd.OutOrStdout(), out); werr != nil {
					return werr
				}
				return err
			}
			if err != nil {
				return fmt.Errorf("backup is invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup OK: %s\n", path)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Import a backup file into the store",
		Long: `Restore agents, feedback and runs from a backup.

In merge mode (default) stored agents keep their state and records that
already exist are skipped. Replace mode clears the store first.

Examples:
  evolab restore .evolab/backups/evolab-backup-20260101-120000.000.evb
  evolab restore backup.evb --mode replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			modeFlag, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseRestoreMode(modeFlag)
			if err != nil {
				return err
			}
			path := args[0]
			if err := pathutil.ValidatePath(path, pathutil.BackupDirs(root, backup.BackupDirName)); err != nil {
				return fmt.Errorf("restore path rejected: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cfg, root)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			result, err := backup.Restore(cmd.Context(), st, path, mode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored (%s): %d agents, %d feedback entries, %d runs\n",
				mode, result.AgentsRestored, result.FeedbackRestored, result.RunsRestored)
			if skipped := result.AgentsSkipped + result.FeedbackSkipped + result.RunsSkipped; skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  Skipped %d existing record(s)\n", skipped)
			}
			return nil
		},
	}

	cmd.Flags().String("mode", string(backup.RestoreMerge), "Restore mode: merge or replace")
	return cmd
}
