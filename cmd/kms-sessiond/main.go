// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/provana/kms-tui/internal/config"
	"github.com/provana/kms-tui/internal/gate"
	"github.com/provana/kms-tui/internal/server"
	"github.com/provana/kms-tui/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// credentialsFile is the on-disk shape of the users file:
//
//	[[user]]
//	name = "alice"
//	password_hash = "$2a$10$..."
type credentialsFile struct {
	Users []struct {
		Name         string `toml:"name"`
		PasswordHash string `toml:"password_hash"`
	} `toml:"user"`
}

func main() {
	// .env loads first so flags-from-env setups see their values.
	// A missing file is the normal case, not an error.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to a config file (default: ~/.kms-tui/config.toml)")
	usersPath := flag.String("users", "", "path to the credentials file (default: ~/.kms-tui/users.toml)")
	hashPassword := flag.Bool("hash-password", false, "read a password from the terminal, print its hash, and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("kms-sessiond %s (%s)\n", Version, GitCommit)
		return
	}
	if *hashPassword {
		if err := runHashPassword(); err != nil {
			fmt.Fprintf(os.Stderr, "kms-sessiond: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *usersPath); err != nil {
		fmt.Fprintf(os.Stderr, "kms-sessiond: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, usersPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	g, err := loadGate(usersPath)
	if err != nil {
		return err
	}

	dbPath := cfg.Sessiond.DBPath
	if dbPath == "" {
		dbPath, err = config.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolving database path: %w", err)
		}
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening session database: %w", err)
	}
	defer db.Close()
	log.Printf("[sessiond] database: %s", dbPath)

	srv := server.New(&server.Config{
		Addr:              cfg.Sessiond.Addr,
		RequestsPerSecond: cfg.Sessiond.RequestsPerSecond,
		Burst:             cfg.Sessiond.Burst,
	}, db, g)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// loadGate reads the credentials file and builds the login gate.
func loadGate(path string) (*gate.Gate, error) {
	if path == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "users.toml")
	}

	var file credentialsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
	}

	creds := make([]gate.Credential, 0, len(file.Users))
	for _, u := range file.Users {
		if u.Name == "" || u.PasswordHash == "" {
			return nil, fmt.Errorf("credentials file %s: every user needs name and password_hash", path)
		}
		creds = append(creds, gate.Credential{User: u.Name, PasswordHash: u.PasswordHash})
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("credentials file %s: no users defined", path)
	}
	log.Printf("[sessiond] loaded %d user(s) from %s", len(creds), path)
	return gate.New(creds), nil
}

// runHashPassword reads a password without echo and prints its bcrypt hash
// for pasting into the credentials file.
func runHashPassword() error {
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty password")
	}
	hash, err := gate.HashPassword(string(raw))
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
