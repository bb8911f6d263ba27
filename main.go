// kms-tui - Terminal client for the Provana Knowledge Management System.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/provana/kms-tui/internal/config"
	"github.com/provana/kms-tui/internal/conversation"
	"github.com/provana/kms-tui/internal/protocol"
	"github.com/provana/kms-tui/internal/sessionstore"
	"github.com/provana/kms-tui/internal/ui/chat"
	"github.com/provana/kms-tui/internal/ws"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async event delivery into the UI loop.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func sendToProgram(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ~/.kms-tui/config.toml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("kms-tui %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kms-tui: %v\n", err)
		os.Exit(1)
	}
	config.SetGlobal(cfg)

	// The TUI owns stdout; route log output to a file under the config dir.
	logCleanup := redirectLogs()
	defer logCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session store client. A password from the environment logs in up
	// front; otherwise the UI presents the login form.
	client := sessionstore.NewClientWithConfig(&sessionstore.ClientConfig{
		BaseURL: cfg.Store.BaseURL,
		Timeout: cfg.Store.Timeout(),
	})
	skipLogin := false
	if pass := os.Getenv("KMSTUI_PASSWORD"); pass != "" && cfg.Identity.User != "" {
		if err := client.Login(ctx, cfg.Identity.User, pass); err != nil {
			fmt.Fprintf(os.Stderr, "kms-tui: login failed: %v\n", err)
			os.Exit(1)
		}
		skipLogin = true
	}

	// Realtime connection supervisor.
	supervisor := ws.NewSupervisor(ws.Options{
		URL:         cfg.Realtime.URL,
		BaseDelay:   cfg.Realtime.ReconnectBase(),
		MaxDelay:    cfg.Realtime.ReconnectMax(),
		MaxAttempts: cfg.Realtime.ReconnectAttempts,
	})
	defer supervisor.Close()

	// Conversation controller wired between supervisor and store.
	ctrl := conversation.NewController(
		cfg.Identity.User,
		cfg.Realtime.ClientName,
		supervisor,
		sessionstore.NewSynchronizer(client),
	)
	supervisor.OnFrame(func(data []byte) {
		ctrl.HandleEvent(ctx, protocol.Decode(data))
	})
	supervisor.OnStatus(ctrl.HandleStatus)

	// Async conversation changes repaint the UI through program.Send.
	ctrl.OnChange(func() {
		sendToProgram(chat.SnapshotMsg(ctrl.View()))
	})

	// Live config reload: theme and endpoint edits take effect on the next
	// start; identity and logging changes are picked up immediately.
	if path, err := config.ConfigPathTOML(); err == nil {
		if watcher, werr := config.NewWatcher(path, func(next *config.Config) {
			config.SetGlobal(next)
			log.Printf("[main] configuration reloaded from %s", path)
		}); werr == nil {
			defer watcher.Close()
		}
	}

	app := chat.New(ctx, ctrl, client, chat.Options{
		User:      cfg.Identity.User,
		Theme:     cfg.UI.Theme,
		Markdown:  cfg.UI.Markdown,
		Version:   Version,
		SkipLogin: skipLogin,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	programMu.Lock()
	programRef = p
	programMu.Unlock()

	supervisor.Open(ctx)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "kms-tui: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads either the explicit path or the default chain.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// redirectLogs points the standard logger at ~/.kms-tui/kms-tui.log so
// subsystem logging never corrupts the alternate screen.
func redirectLogs() func() {
	dir, err := config.ConfigDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}
	f, err := os.OpenFile(filepath.Join(dir, "kms-tui.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}
	log.SetOutput(f)
	return func() { f.Close() }
}
