package main

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
)

//go:embed config.json
var configFile []byte

// envConfig carries secrets and file locations. Everything but the token and
// api key has a working default.
type envConfig struct {
	Token        string
	OsuAPIKey    string
	DBPath       string
	BindingsPath string
	MirrorPath   string
	SkinsDir     string
}

func loadEnv() (envConfig, error) {
	_ = godotenv.Load()

	env := envConfig{
		Token:        os.Getenv("BOT_TOKEN"),
		OsuAPIKey:    os.Getenv("OSU_API_KEY"),
		DBPath:       envOr("DB_PATH", "members.db"),
		BindingsPath: envOr("BINDINGS_PATH", "bindings.json"),
		MirrorPath:   envOr("MIRROR_PATH", "players.json"),
		SkinsDir:     envOr("SKINS_DIR", "skins"),
	}
	if env.Token == "" {
		return env, errors.New("BOT_TOKEN is not set")
	}
	if env.OsuAPIKey == "" {
		return env, errors.New("OSU_API_KEY is not set")
	}
	return env, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type botConfig struct {
	guilds map[string]GuildConfig
	mut    sync.Mutex
	logger *slog.Logger
}

func (c *botConfig) Register(s *discordgo.Session) {
	//handle the ready event to prepare a config object with guild-specific info
	s.AddHandler(func(s *discordgo.Session, vs *discordgo.Ready) {
		c.logger.Info("ready")
		for _, g := range vs.Guilds {
			err := c.registerGuild(s, g)
			if err != nil {
				c.logger.Error("error registering guild",
					slog.String("guild", g.Name),
					slog.String("err", err.Error()),
				)
				return
			}
		}
	})
}

func (c *botConfig) Get(guildID string) GuildConfig {
	//registerGuild rewrites the map on every Ready, including reconnects
	c.mut.Lock()
	defer c.mut.Unlock()
	guildConfig, ok := c.guilds[guildID]
	if !ok {
		c.logger.Warn("unknown guild")
		return GuildConfig{logger: c.logger}
	}
	return guildConfig
}

// registerGuild takes a guild and returns a GuildConfig with all the roles resolved
func (c *botConfig) registerGuild(s *discordgo.Session, g *discordgo.Guild) error {
	//We have to fully resolve the guild, the incoming object is a partial because :(
	guild, err := s.Guild(g.ID)
	if err != nil {
		return err
	}
	c.mut.Lock()
	defer c.mut.Unlock()
	gc := c.guilds[guild.ID]
	gc.logger = c.logger.With(slog.String("guild", g.Name), slog.String("guild_id", g.ID))

	roles := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roles[role.Name] = role
	}

	role, ok := roles[gc.OperatorRoleName]
	if ok {
		gc.operatorRoleID = role.ID
	}

	gc.labels = RoleLabelTable{Default: gc.DefaultRoleLabel}
	for _, rule := range gc.RoleLabels {
		role, ok := roles[rule.Role]
		if !ok {
			return fmt.Errorf("could not find role '%s'", rule.Role)
		}
		gc.labels.Rules = append(gc.labels.Rules, RoleLabelRule{RoleID: role.ID, Label: rule.Label})
	}
	c.guilds[guild.ID] = gc
	return nil
}

type GuildConfig struct {
	OperatorRoleName string
	DefaultRoleLabel string
	//ordered role name to label rules, highest privilege first
	RoleLabels []RoleLabelConfig

	operatorRoleID string
	labels         RoleLabelTable

	logger *slog.Logger
}

type RoleLabelConfig struct {
	Role  string
	Label string
}

// IsOperator reports whether a member may run operator commands: either they
// hold the configured operator role or they can manage the guild outright.
func (gc GuildConfig) IsOperator(m *discordgo.Member) bool {
	if m == nil {
		return false
	}
	if gc.operatorRoleID != "" && slices.Contains(m.Roles, gc.operatorRoleID) {
		return true
	}
	return m.Permissions&discordgo.PermissionManageGuild != 0
}

func (gc GuildConfig) Labels() RoleLabelTable {
	return gc.labels
}

func newBotConfig() (*botConfig, error) {
	config := botConfig{
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource:   true,
			Level:       slog.LevelDebug,
			ReplaceAttr: nil,
		})),
	}
	err := json.Unmarshal(configFile, &config.guilds)
	if err != nil {
		return nil, err
	}
	return &config, nil
}
