package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PruneOldLogs deletes rotated daemon logs under dir that match pattern and
// are older than retentionDays. Paths listed in keep are never touched, so
// the daemon's active log survives a prune that runs mid-session. A
// retentionDays value of 0 or less disables pruning.
func PruneOldLogs(logger *slog.Logger, retentionDays int, dir, pattern string, keep ...string) {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	kept := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			if abs, err := filepath.Abs(trimmed); err == nil {
				kept[abs] = struct{}{}
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if pat := strings.TrimSpace(pattern); pat != "" {
			matched, err := filepath.Match(pat, name)
			if err != nil || !matched {
				continue
			}
		}
		fullPath := filepath.Join(dir, name)
		if abs, err := filepath.Abs(fullPath); err == nil {
			fullPath = abs
		}
		if _, skip := kept[fullPath]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		if logger != nil {
			logger.Info("log pruned",
				String("path", fullPath),
				String(FieldEventType, "log_pruned"),
			)
		}
	}
}
