package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsPort(t *testing.T) {
	path := writeConfig(t, `
accounts:
  - account: work
    server: imap.example.com
    username: alice
    password: hunter2
    maildir: /home/alice/Mail
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Accounts) != 1 {
		t.Fatalf("len(Accounts) = %d, want 1", len(cfg.Accounts))
	}
	if cfg.Accounts[0].Port != defaultPort {
		t.Fatalf("Port = %d, want %d", cfg.Accounts[0].Port, defaultPort)
	}
}

func TestLoadResolvesPasswordCommand(t *testing.T) {
	path := writeConfig(t, `
accounts:
  - account: work
    server: imap.example.com
    username: alice
    password_command: "echo swordfish"
    maildir: /home/alice/Mail
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Accounts[0].Password != "swordfish" {
		t.Fatalf("Password = %q, want %q", cfg.Accounts[0].Password, "swordfish")
	}
}

func TestIsMailboxExcluded(t *testing.T) {
	a := Account{Exclude: []string{"Spam", "Trash"}}
	if !a.IsMailboxExcluded("Spam") {
		t.Fatal("expected Spam excluded")
	}
	if a.IsMailboxExcluded("INBOX") {
		t.Fatal("expected INBOX not excluded")
	}
}

func TestIsMailboxIdledDefaultsToAll(t *testing.T) {
	a := Account{}
	if !a.IsMailboxIdled("INBOX") {
		t.Fatal("with no idle list, every mailbox should be idled")
	}
}

func TestIsMailboxIdledRestrictsToList(t *testing.T) {
	a := Account{Idle: []string{"INBOX"}}
	if !a.IsMailboxIdled("INBOX") {
		t.Fatal("expected INBOX idled")
	}
	if a.IsMailboxIdled("Archive") {
		t.Fatal("expected Archive not idled")
	}
}

func TestWorkerPoolSize(t *testing.T) {
	tests := []struct {
		name           string
		maxConcurrency int
		idleCount      int
		want           int
	}{
		{"unbounded", 0, 3, 0},
		{"plenty of headroom", 10, 2, 8},
		{"floor at one", 2, 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Account{MaxConcurrency: tt.maxConcurrency}
			if got := a.WorkerPoolSize(tt.idleCount); got != tt.want {
				t.Fatalf("WorkerPoolSize(%d) = %d, want %d", tt.idleCount, got, tt.want)
			}
		})
	}
}
