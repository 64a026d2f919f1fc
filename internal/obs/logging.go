package obs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/copilotx/copilotx/internal/util"
	"github.com/copilotx/copilotx/pkg/daemon"
)

// LogSetup describes how server logging is wired.
type LogSetup struct {
	Debug    bool
	LogFile  string // rotating file target; empty disables the file sink
	FileOnly bool   // daemon mode: skip stdout
}

// SetupLogging configures logrus for the process: level, text formatter,
// and a rotating file sink alongside stdout. Returns the file writer so the
// caller can close over it for shutdown if needed.
func SetupLogging(cfg LogSetup) io.Writer {
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if cfg.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return os.Stdout
	}

	if err := util.EnsureDir(filepath.Dir(cfg.LogFile)); err != nil {
		logrus.WithError(err).Warn("Failed to create log directory, logging to stdout only")
		logrus.SetOutput(os.Stdout)
		return os.Stdout
	}

	fileWriter := daemon.NewLogger(daemon.DefaultLogRotationConfig(cfg.LogFile))

	var out io.Writer = fileWriter
	if !cfg.FileOnly {
		out = io.MultiWriter(os.Stdout, fileWriter)
	}
	logrus.SetOutput(out)
	return out
}
