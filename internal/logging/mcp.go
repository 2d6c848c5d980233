package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for a host process driving
// internal/tool.Server over stdio. The MCP transport in go-sdk speaks
// JSON-RPC on stdout, so nothing in this process may write there or to
// stderr once the server loop starts — a stray log line on either stream
// corrupts the framing and the host sees a broken connection. Every log
// record instead goes to a rotating file at debug level, so a semantic
// search that misbehaves inside an MCP host is still fully diagnosable.
func SetupMCPMode() (func(), error) {
	return setupMCPModeAtLevel("debug")
}

// SetupMCPModeWithLevel is SetupMCPMode with an explicit log level instead
// of the always-debug default.
func SetupMCPModeWithLevel(level string) (func(), error) {
	return setupMCPModeAtLevel(level)
}

func setupMCPModeAtLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("mcp stdio logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", level),
		slog.Bool("stderr_disabled", true))

	return cleanup, nil
}
