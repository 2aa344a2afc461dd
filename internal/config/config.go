// Package config loads account descriptors: server, credentials, the
// Maildir root, and the exclude/idle mailbox filters (spec §6).
package config

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/mdsync/mdsync/internal/errkind"
)

const defaultPort = 993

// Account is one configured IMAP mailbox to synchronize.
type Account struct {
	Account         string   `yaml:"account"`
	Server          string   `yaml:"server"`
	Port            int      `yaml:"port"`
	ServerCAPath    string   `yaml:"server_ca_path"`
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
	PasswordCommand string   `yaml:"password_command"`
	Maildir         string   `yaml:"maildir"`
	Exclude         []string `yaml:"exclude"`
	Idle            []string `yaml:"idle"`
	MaxConcurrency  int      `yaml:"max_concurrency"`
}

// Config is the top-level document: one entry per account.
type Config struct {
	Accounts []Account `yaml:"accounts"`
}

// Load reads and parses the YAML config at path, defaulting ports and
// resolving password_command via the shell.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errkind.Wrap(errkind.Other, fmt.Errorf("read config %s: %w", path, err))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errkind.Wrap(errkind.Other, fmt.Errorf("parse config %s: %w", path, err))
	}

	for i := range cfg.Accounts {
		a := &cfg.Accounts[i]
		if a.Port == 0 {
			a.Port = defaultPort
		}
		if a.PasswordCommand != "" {
			password, err := runPasswordCommand(a.PasswordCommand)
			if err != nil {
				return Config{}, errkind.Wrap(errkind.Other, fmt.Errorf("account %s: %w", a.Account, err))
			}
			a.Password = password
		}
	}
	return cfg, nil
}

func runPasswordCommand(command string) (string, error) {
	out, err := exec.Command("sh", "-c", command).Output()
	if err != nil {
		return "", fmt.Errorf("password_command failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsMailboxExcluded reports whether name is in the account's exclude list.
func (a Account) IsMailboxExcluded(name string) bool {
	for _, ex := range a.Exclude {
		if ex == name {
			return true
		}
	}
	return false
}

// IsMailboxIdled reports whether this mailbox should be kept open under
// IDLE after a sync cycle. With no idle list configured, every
// non-excluded mailbox is idled; with one configured, only listed
// mailboxes are.
func (a Account) IsMailboxIdled(name string) bool {
	if a.Idle == nil {
		return true
	}
	for _, m := range a.Idle {
		if m == name {
			return true
		}
	}
	return false
}

// WorkerPoolSize returns the bound on concurrently-running sync-once
// (non-idled) mailbox workers, given how many mailboxes are idled and
// therefore already occupy a dedicated goroutine outside the pool (spec §9
// Open Question 4): max(1, max_concurrency - idleCount). A zero
// max_concurrency means unbounded (one goroutine per mailbox).
func (a Account) WorkerPoolSize(idleCount int) int {
	if a.MaxConcurrency == 0 {
		return 0
	}
	size := a.MaxConcurrency - idleCount
	if size < 1 {
		size = 1
	}
	return size
}
