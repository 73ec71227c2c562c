// Package main is the entry point for mcp-hub, a local connection
// supervisor and protocol gateway for Model Context Protocol backends.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/localmcp/mcp-hub/daemon/cmd"
	"github.com/localmcp/mcp-hub/daemon/domain"
	"github.com/localmcp/mcp-hub/daemon/logger"
)

// Version is the application version, set at build time via ldflags.
var Version = "dev"

var cli struct {
	LogsDir  string `default:"/var/log" help:"directory to store logs"`
	Debug    bool   `default:"false" help:"enable debug mode with stdout logging"`
	LogLevel string `default:"info" help:"log level: debug, info, warning, error"`

	Serve  cmd.Serve  `cmd:"" default:"1" help:"run the connection supervisor and proxy gateway"`
	Bridge cmd.Bridge `cmd:"" help:"run the stdio<->HTTP bridge sidecar for a single backend"`
}

// cleanupOldLogs removes old rotated log files from previous versions.
// Lumberjack's MaxBackups only prevents new backups; it does not clean up
// existing ones left behind after a setting change.
func cleanupOldLogs(logsDir, baseName string) {
	pattern := filepath.Join(logsDir, baseName+"-*.log")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, f := range files {
		_ = os.Remove(f)
	}
}

func main() {
	ctx := kong.Parse(&cli)

	// bridge mode reserves stdout for the proxied JSON-RPC stream: nothing
	// the log pipeline writes may ever reach it.
	isBridge := ctx.Command() == "bridge"

	switch strings.ToLower(cli.LogLevel) {
	case "debug":
		logger.SetLevel(logger.LevelDebug)
	case "info":
		logger.SetLevel(logger.LevelInfo)
	case "warning", "warn":
		logger.SetLevel(logger.LevelWarning)
	case "error":
		logger.SetLevel(logger.LevelError)
	default:
		logger.SetLevel(logger.LevelInfo)
	}

	cleanupOldLogs(cli.LogsDir, "mcp-hub")

	switch {
	case isBridge:
		// Diagnostics go to the log file and stderr only; stdout is the
		// protocol channel.
		fileLogger := &lumberjack.Logger{
			Filename:   filepath.Join(cli.LogsDir, "mcp-hub.log"),
			MaxSize:    5,
			MaxBackups: 1,
			MaxAge:     1,
			Compress:   false,
		}
		log.SetOutput(io.MultiWriter(fileLogger, os.Stderr))
	case cli.Debug:
		log.SetOutput(os.Stdout)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		logger.SetLevel(logger.LevelDebug)
		log.Println("Debug mode enabled - logging to stdout")
	default:
		fileLogger := &lumberjack.Logger{
			Filename:   filepath.Join(cli.LogsDir, "mcp-hub.log"),
			MaxSize:    5,
			MaxBackups: 1,
			MaxAge:     1,
			Compress:   false,
		}
		log.SetOutput(io.MultiWriter(fileLogger, os.Stdout))
	}

	if !isBridge {
		log.Printf("Starting mcp-hub v%s (log level: %s)", Version, cli.LogLevel)
	}

	appCtx := &domain.Context{
		Hub:     domain.NewEventBus(1024),
		Version: Version,
	}

	if err := ctx.Run(appCtx); err != nil {
		if isBridge {
			fmt.Fprintf(os.Stderr, "mcp-hub: %v\n", err)
			os.Exit(1)
		}
		ctx.FatalIfErrorf(err)
	}
}
