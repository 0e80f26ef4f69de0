package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/silc-sh/silc/src/config"
	"github.com/silc-sh/silc/src/daemon"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, continuing with process environment")
	}

	configPath := flag.String("config", defaultConfigPath(), "Path to silc.toml")
	shortConfigPath := flag.String("c", "", "Path to silc.toml (shorthand)")
	managementPort := flag.Int("port", 0, "Management port (overrides config)")
	shortManagementPort := flag.Int("p", 0, "Management port (shorthand)")
	token := flag.String("token", os.Getenv("SILC_MANAGEMENT_TOKEN"), "Bearer token required from non-loopback management clients")
	flag.Parse()

	path := *configPath
	if *shortConfigPath != "" {
		path = *shortConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		logrus.WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	if *managementPort != 0 {
		cfg.ManagementPort = *managementPort
	}
	if *shortManagementPort != 0 {
		cfg.ManagementPort = *shortManagementPort
	}

	if err := configureLogging(cfg.Logging.LogLevel, cfg.Paths.LogDir); err != nil {
		logrus.WithError(err).Warn("could not open daemon.log, logging to stderr only")
	}

	d := daemon.New(cfg, version, *token)

	if err := d.AcquirePIDFile(); err != nil {
		logrus.WithError(err).Error("failed to acquire pidfile")
		os.Exit(1)
	}
	defer d.ReleasePIDFile()

	stop := make(chan struct{})
	go d.RunGC(stop)

	if err := config.WatchForEdits(path, stop); err != nil {
		logrus.WithError(err).Debug("config file watch not started")
	}

	resurrected := d.Resurrect()
	if len(resurrected.Restored) > 0 || len(resurrected.Failed) > 0 {
		logrus.WithFields(logrus.Fields{
			"restored": len(resurrected.Restored),
			"failed":   len(resurrected.Failed),
		}).Info("resurrected sessions from sessions.json")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logrus.WithField("signal", s.String()).Info("shutting down")
		_ = d.Shutdown() // exits the process itself once drained
	}()

	logrus.WithField("port", cfg.ManagementPort).Info("silcd management endpoint listening")
	if err := d.ListenManagement(); err != nil {
		logrus.WithError(err).Error("management endpoint stopped")
		os.Exit(2)
	}
}

// configureLogging points logrus at both stderr and DATA_DIR/logs/daemon.log
// (spec §4.7/§6.6), the same file RunGC rotates every GC_INTERVAL.
func configureLogging(level, logDir string) error {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(logDir, "daemon.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "silc.toml"
	}
	return fmt.Sprintf("%s/.silc/silc.toml", home)
}
