// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.

// Command mdsync keeps a local Maildir tree in sync with one or more IMAP
// accounts, one engine per mailbox (spec §4.5, §6).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/mdsync/mdsync/internal/config"
	"github.com/mdsync/mdsync/internal/engine"
	"github.com/mdsync/mdsync/internal/imapadapter"
)

func userHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

func main() {
	defaultConfig := filepath.Join(userHomeDir(), ".config", "mdsync", "config.yml")
	configPath := flag.String("config", defaultConfig, "Path to config.yml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load config %s: %s\n", *configPath, err)
		os.Exit(1)
	}

	configDir := filepath.Dir(*configPath)

	var wg sync.WaitGroup
	var running []*engine.Engine
	var runningMu sync.Mutex

	for _, account := range cfg.Accounts {
		mailboxes, err := listMailboxes(account)
		if err != nil {
			fmt.Fprintf(os.Stderr, "account %s: cannot list mailboxes: %s\n", account.Account, err)
			continue
		}

		var idled, sweep []string
		for _, name := range mailboxes {
			if account.IsMailboxExcluded(name) {
				continue
			}
			if account.IsMailboxIdled(name) {
				idled = append(idled, name)
			} else {
				sweep = append(sweep, name)
			}
		}

		newEngine := func(name string) *engine.Engine {
			e, err := engine.New(account, name, configDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "account %s/%s: cannot start: %s\n", account.Account, name, err)
				return nil
			}
			runningMu.Lock()
			running = append(running, e)
			runningMu.Unlock()
			return e
		}

		for _, name := range idled {
			e := newEngine(name)
			if e == nil {
				continue
			}
			wg.Add(1)
			go func(e *engine.Engine, name string) {
				defer wg.Done()
				defer e.Close()
				if err := e.Run(); err != nil {
					fmt.Fprintf(os.Stderr, "account %s/%s: %s\n", account.Account, name, err)
				}
			}(e, name)
		}

		if len(sweep) > 0 {
			poolSize := account.WorkerPoolSize(len(idled))
			wg.Add(1)
			go runSweep(&wg, account, sweep, poolSize, newEngine)
		}
	}

	waitForShutdown(&running, &runningMu)
	wg.Wait()
}

// runSweep runs every sync-once mailbox in account through a bounded worker
// pool (spec §9 Open Question 4): poolSize == 0 means unbounded, one
// goroutine per mailbox.
func runSweep(outer *sync.WaitGroup, account config.Account, mailboxes []string, poolSize int, newEngine func(string) *engine.Engine) {
	defer outer.Done()

	var sem chan struct{}
	if poolSize > 0 {
		sem = make(chan struct{}, poolSize)
	}

	var wg sync.WaitGroup
	for _, name := range mailboxes {
		name := name
		if sem != nil {
			sem <- struct{}{}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				defer func() { <-sem }()
			}
			e := newEngine(name)
			if e == nil {
				return
			}
			defer e.Close()
			if err := e.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "account %s/%s: %s\n", account.Account, name, err)
			}
		}()
	}
	wg.Wait()
}

// listMailboxes opens a short-lived connection solely to enumerate the
// account's mailboxes before handing each one off to its own Engine.
func listMailboxes(account config.Account) ([]string, error) {
	client, err := imapadapter.Connect(imapadapter.Dialer{
		Server:       account.Server,
		Port:         account.Port,
		UseTLS:       true,
		ServerCAPath: account.ServerCAPath,
		Username:     account.Username,
		Password:     account.Password,
	})
	if err != nil {
		return nil, err
	}
	defer client.Logout()
	return client.List()
}

// waitForShutdown installs a SIGINT/SIGTERM handler and returns at once;
// on the first signal the handler asks every running engine to exit after
// its current cycle.
func waitForShutdown(running *[]*engine.Engine, mu *sync.Mutex) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		mu.Lock()
		defer mu.Unlock()
		for _, e := range *running {
			e.Exit()
		}
	}()
}
