package main

import (
	"io"
	"log/slog"
	"sync"
	"testing"
)

func TestConfigGetUnknownGuild(t *testing.T) {
	config := &botConfig{
		guilds: map[string]GuildConfig{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	gc := config.Get("nope")
	if gc.logger == nil {
		t.Fatal("unknown guild config must still carry a logger")
	}
	if gc.IsOperator(nil) {
		t.Error("unknown guild config must not grant operator")
	}
}

func TestConfigGetDuringGuildRefresh(t *testing.T) {
	config := &botConfig{
		guilds: map[string]GuildConfig{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	// a reconnect's Ready rewrites the map while commands keep reading it
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			config.mut.Lock()
			config.guilds["g"] = GuildConfig{OperatorRoleName: "Staff"}
			config.mut.Unlock()
		}
	}()
	for i := 0; i < 200; i++ {
		config.Get("g")
	}
	wg.Wait()
}
