package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
)

const timeout = 5 * time.Minute

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(_ context.Context) error {
	start := time.Now()

	env, err := loadEnv()
	if err != nil {
		return err
	}
	config, err := newBotConfig()
	if err != nil {
		return err
	}

	store, err := openMemberStore(env.DBPath)
	if err != nil {
		return err
	}
	bindings := NewBindingStore(config.logger, env.BindingsPath)
	registry := NewRegistry(store, newOsuClient(env.OsuAPIKey), newFileMirror(config.logger, env.MirrorPath), config.logger)
	skins := newSkinStore(env.SkinsDir)

	//bot needs permission to see members, manage roles, add reactions, and send messages
	session, err := discordgo.New("Bot " + env.Token)
	if err != nil {
		return err
	}
	session.Identify.Intents = discordgo.IntentsAllWithoutPrivileged | discordgo.IntentGuildMembers

	ready := make(chan struct{})
	var readyOnce sync.Once
	session.AddHandler(func(s *discordgo.Session, m *discordgo.Ready) {
		config.logger.Debug("READY", "user", m.User.ID)
		if err := s.UpdateGameStatus(0, "osu!"); err != nil {
			config.logger.Warn("could not set presence", "error", err)
		}
		readyOnce.Do(func() { close(ready) })
	})
	config.Register(session)

	reactionHandler{bindings: bindings, logger: config.logger}.Register(session)
	commands := newSlashCommands(config, registry, bindings, skins, start)
	commands.Register(session)

	err = session.Open()
	if err != nil {
		return err
	}
	select {
	case <-ready:
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for bot to start")
	}

	//create the slash commands. This must be done after the bot is open so that the bot id is known
	err = commands.CreateCommands(session, config)
	if err != nil {
		return err
	}

	fmt.Println("shitosubot is now running.  Press CTRL-C to exit.")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Cleanly close down the Discord session.
	return session.Close()
}
