package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups caps how many timestamped backups of the user config
	// accumulate in ~/.config/codesem before the oldest get pruned.
	MaxBackups = 3

	// BackupSuffix marks a backup file: config.yaml.bak.20260315-140512.
	BackupSuffix = ".bak"
)

// BackupUserConfig snapshots the user config file before `config init
// --force` or an automatic schema upgrade rewrites it, so a botched upgrade
// can be undone with RestoreUserConfig. Returns "" with a nil error when
// there is nothing to back up yet.
func BackupUserConfig() (string, error) {
	configPath := GetUserConfigPath()
	if !UserConfigExists() {
		return "", nil
	}

	at := time.Now()
	backupPath := timestampedBackupPath(configPath, at)
	// Two backups within the same second share a timestamp; a numeric
	// suffix keeps the later one from overwriting the earlier.
	for n := 1; fileExists(backupPath); n++ {
		backupPath = fmt.Sprintf("%s-%d", timestampedBackupPath(configPath, at), n)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config for backup: %w", err)
	}
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	// Pruning is best-effort: a backup that was just written successfully
	// should still be reported as such even if a stale entry can't be
	// removed (e.g. permissions).
	_ = pruneBackups(configPath)

	return backupPath, nil
}

func timestampedBackupPath(configPath string, at time.Time) string {
	return fmt.Sprintf("%s%s.%s", configPath, BackupSuffix, at.Format("20060102-150405"))
}

// ListUserConfigBackups returns the user config's backup files, newest
// first, so `config list-backups` and the retention pruning below share one
// notion of ordering.
func ListUserConfigBackups() ([]string, error) {
	configPath := GetUserConfigPath()
	configDir := filepath.Dir(configPath)
	prefix := filepath.Base(configPath) + BackupSuffix + "."

	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list config directory: %w", err)
	}

	var backups []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		backups = append(backups, filepath.Join(configDir, entry.Name()))
	}

	sort.Slice(backups, func(i, j int) bool {
		infoI, errI := os.Stat(backups[i])
		infoJ, errJ := os.Stat(backups[j])
		if errI != nil || errJ != nil {
			return false
		}
		return infoI.ModTime().After(infoJ.ModTime())
	})

	return backups, nil
}

// pruneBackups removes backups beyond MaxBackups, oldest first.
func pruneBackups(configPath string) error {
	backups, err := ListUserConfigBackups()
	if err != nil {
		return err
	}
	if len(backups) <= MaxBackups {
		return nil
	}

	var firstErr error
	for _, backup := range backups[MaxBackups:] {
		if err := os.Remove(backup); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RestoreUserConfig replaces the user config with the contents of a backup
// produced by BackupUserConfig, itself backing up whatever config is
// currently in place first so a restore can always be undone.
func RestoreUserConfig(backupPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup %s: %w", backupPath, err)
	}

	if UserConfigExists() {
		if _, err := BackupUserConfig(); err != nil {
			return fmt.Errorf("back up current config before restore: %w", err)
		}
	}

	configDir := GetUserConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(GetUserConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("write restored config: %w", err)
	}

	return nil
}
