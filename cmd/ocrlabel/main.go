package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"ocrlabel/internal/common"
	"ocrlabel/internal/progress"
	"ocrlabel/internal/session"
	"ocrlabel/internal/store"
	"ocrlabel/internal/tui"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (optional)")
		dataDir    = flag.String("data", "", "directory of images and JSON sidecars")
		serverURL  = flag.String("server", "", "annotation server base URL, e.g. http://localhost:3000")
		startID    = flag.String("id", "", "image id to open first")
	)
	flag.Parse()
	if flag.NArg() > 0 && *dataDir == "" {
		*dataDir = flag.Arg(0)
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fail(err)
	}
	if *dataDir != "" {
		cfg.Store.DataDir = *dataDir
	}
	if *serverURL != "" {
		cfg.Store.ServerURL = *serverURL
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	logger, logFile, err := common.OpenLogFile(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		fail(err)
	}
	defer logFile.Close()

	var tracker progress.Tracker
	if cfg.Store.ServerURL == "" {
		tracker, err = progress.Open(context.Background(), cfg.Progress, logger)
		if err != nil {
			fail(err)
		}
		defer tracker.Close()
	}
	st := store.Open(cfg.Store, tracker, logger)

	sess := session.New(st, logger)
	sess.SetTimeout(cfg.Store.HTTPTimeout)
	sess.SetStart(*startID)

	m, err := tui.New(sess, nil, logger)
	if err != nil {
		fail(err)
	}
	logger.Info("ocrlabel.start", "data", cfg.Store.DataDir, "server", cfg.Store.ServerURL, "session", sess.ID)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion()).Run(); err != nil {
		logger.Error("ocrlabel.exit", "error", err)
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "ocrlabel: %v\n", err)
	os.Exit(1)
}
