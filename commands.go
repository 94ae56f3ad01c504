package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

type slashCommand struct {
	Description string
	Options     []*discordgo.ApplicationCommandOption
	Handler     func(s *discordgo.Session, i *discordgo.InteractionCreate)
}

type slashCommands map[string]slashCommand

func (c slashCommands) Register(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		// Only handle application command interactions (not buttons or modals)
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		if h, ok := c[i.ApplicationCommandData().Name]; ok {
			h.Handler(s, i)
		}
	})
}

func (c slashCommands) CreateCommands(s *discordgo.Session, config *botConfig) error {
	for guildID := range config.guilds {
		for name, cmd := range c {
			_, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, &discordgo.ApplicationCommand{
				Name:        name,
				Description: cmd.Description,
				Options:     cmd.Options,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func pingHandler() func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		start := time.Now()
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: "Pong!"},
		})
		if err != nil {
			slog.Error("could not respond to ping", "error", err)
			return
		}
		content := fmt.Sprintf("Pong! (%d ms, heartbeat %d ms)",
			time.Since(start).Milliseconds(), s.HeartbeatLatency().Milliseconds())
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
			slog.Error("could not edit ping response", "error", err)
		}
	}
}

// formatUptime renders a duration as "Uptime: 1d 2h 3m 4s", dropping leading
// units that are zero. Seconds always print.
func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	b := strings.Builder{}
	b.WriteString("Uptime: ")
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm ", minutes)
	}
	fmt.Fprintf(&b, "%ds", seconds)
	return b.String()
}

func uptimeHandler(start time.Time) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		respond(formatUptime(time.Since(start)), s, i)
	}
}

func registerHandler(config *botConfig, registry *Registry) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		gc := config.Get(i.GuildID)

		var osuID, targetID string
		for _, opt := range i.ApplicationCommandData().Options {
			switch opt.Name {
			case "osu-id":
				osuID = strings.TrimSpace(opt.StringValue())
			case "user":
				targetID = opt.UserValue(nil).ID
			}
		}

		requester := i.Member.User.ID
		target := requester
		roles := i.Member.Roles
		if targetID != "" && targetID != requester {
			target = targetID
			member, err := s.GuildMember(i.GuildID, target)
			if err != nil {
				gc.logger.Error("could not fetch target member", slog.String("err", err.Error()), slog.String("target", target))
				ephemeralNotice("Could not look up that member.", s, i)
				return
			}
			roles = member.Roles
		}

		result, err := registry.Register(context.Background(), RegisterRequest{
			TargetID:    target,
			OsuID:       osuID,
			RequestedBy: requester,
			Privileged:  gc.IsOperator(i.Member),
			MemberRoles: roles,
			Labels:      gc.Labels(),
		})
		if err != nil {
			gc.logger.Warn("registration refused",
				slog.String("target", target),
				slog.String("osu_id", osuID),
				slog.String("err", err.Error()),
			)
			ephemeralNotice(registerFailureMessage(err, target == requester), s, i)
			return
		}

		respond(fmt.Sprintf("Registered <@%s> as osu! player **%s** (rank #%s) with status **%s**.",
			result.Record.DiscordID, result.Profile.Username, result.Profile.PPRank, result.Record.RoleLabel), s, i)
	}
}

func registerFailureMessage(err error, self bool) string {
	var conflict *AlreadyRegisteredError
	var lookup *ExternalLookupError
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Only staff can register someone else."
	case errors.As(err, &conflict):
		if conflict.Key == ConflictDiscordAccount {
			if self {
				return fmt.Sprintf("You are already registered as osu! player **%s**. Unregister first to switch accounts.", conflict.Existing.Username)
			}
			return fmt.Sprintf("That member is already registered as osu! player **%s**.", conflict.Existing.Username)
		}
		if conflict.Existing.DiscordID == "" {
			return fmt.Sprintf("osu! account `%s` is already registered.", conflict.Existing.OsuID)
		}
		return fmt.Sprintf("osu! account **%s** is already linked to <@%s>.", conflict.Existing.Username, conflict.Existing.DiscordID)
	case errors.As(err, &lookup):
		return fmt.Sprintf("Could not verify osu! account `%s`: %s.", lookup.OsuID, lookup.Reason)
	default:
		return "Something went wrong saving the registration. Please try again later."
	}
}

func unregisterHandler(config *botConfig, registry *Registry) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		gc := config.Get(i.GuildID)

		var targetRef string
		for _, opt := range i.ApplicationCommandData().Options {
			if opt.Name == "user" {
				targetRef = strings.TrimSpace(opt.StringValue())
			}
		}

		result, err := registry.Unregister(context.Background(), UnregisterRequest{
			TargetRef:   targetRef,
			RequestedBy: i.Member.User.ID,
			Privileged:  gc.IsOperator(i.Member),
		})
		if err != nil {
			gc.logger.Warn("unregistration refused",
				slog.String("target", targetRef),
				slog.String("err", err.Error()),
			)
			ephemeralNotice(unregisterFailureMessage(err), s, i)
			return
		}

		if result.Self {
			respond("Your registration has been removed.", s, i)
			return
		}
		respond(fmt.Sprintf("Removed the registration for <@%s> (osu! player **%s**).",
			result.Record.DiscordID, result.Record.Username), s, i)
	}
}

func unregisterFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotRegistered):
		return "No registration found for that account."
	case errors.Is(err, ErrPermissionDenied):
		return "Only staff can unregister someone else."
	case errors.Is(err, ErrBadUserRef):
		return "Pass a user mention, a Discord id, or an osu! id."
	default:
		return "Something went wrong removing the registration. Please try again later."
	}
}

func createReactionRolesHandler(config *botConfig, bindings *BindingStore) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		gc := config.Get(i.GuildID)
		if !gc.IsOperator(i.Member) {
			ephemeralNotice("Only staff can create reaction role messages.", s, i)
			return
		}

		var title, pairsText string
		channelID := i.ChannelID
		for _, opt := range i.ApplicationCommandData().Options {
			switch opt.Name {
			case "title":
				title = opt.StringValue()
			case "pairs":
				pairsText = opt.StringValue()
			case "channel":
				channelID = opt.ChannelValue(nil).ID
			}
		}

		pairs, err := ParsePairs(pairsText)
		if err != nil {
			ephemeralNotice("Could not create reaction roles: "+err.Error(), s, i)
			return
		}

		b := strings.Builder{}
		b.WriteString("**" + title + "**\n")
		for _, pair := range pairs {
			fmt.Fprintf(&b, "\n%s <@&%s>", emojiDisplay(pair.Emoji), pair.RoleID)
		}
		message, err := s.ChannelMessageSend(channelID, b.String())
		if err != nil {
			gc.logger.Error("could not post reaction role message", slog.String("err", err.Error()))
			ephemeralNotice("Could not post the reaction role message.", s, i)
			return
		}

		//the message must carry every reaction before the binding is saved
		for _, pair := range pairs {
			if err := s.MessageReactionAdd(channelID, message.ID, pair.Emoji); err != nil {
				gc.logger.Error("could not seed reaction",
					slog.String("err", err.Error()),
					slog.String("emoji", pair.Emoji),
					slog.String("message", message.ID),
				)
				ephemeralNotice(fmt.Sprintf("Could not add the %s reaction; the binding was not saved.", emojiDisplay(pair.Emoji)), s, i)
				return
			}
		}

		err = bindings.Put(ReactionRoleBinding{
			MessageID: message.ID,
			ChannelID: channelID,
			Title:     title,
			Pairs:     pairs,
			CreatedAt: time.Now(),
		})
		if err != nil {
			gc.logger.Error("could not save binding", slog.String("err", err.Error()), slog.String("message", message.ID))
			ephemeralNotice("The message was posted but the binding could not be saved.", s, i)
			return
		}

		ephemeralNotice(fmt.Sprintf("Created a reaction role message with %d pair(s) in <#%s>.", len(pairs), channelID), s, i)
	}
}

// emojiDisplay renders a stored emoji token back into message markup.
func emojiDisplay(token string) string {
	if customTokenPattern.MatchString(token) {
		return "<:" + token + ">"
	}
	return token
}

func uploadSkinHandler(config *botConfig, skins *skinStore) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		gc := config.Get(i.GuildID)
		if !gc.IsOperator(i.Member) {
			ephemeralNotice("Only staff can upload skins.", s, i)
			return
		}

		data := i.ApplicationCommandData()
		var attachment *discordgo.MessageAttachment
		for _, opt := range data.Options {
			if opt.Type == discordgo.ApplicationCommandOptionAttachment {
				attachment = data.Resolved.Attachments[opt.Value.(string)]
			}
		}
		if attachment == nil {
			ephemeralNotice("Attach a skin file to upload.", s, i)
			return
		}

		//downloading can outlive the 3 second interaction window
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		})
		if err != nil {
			gc.logger.Error("could not defer skin upload response", slog.String("err", err.Error()))
			return
		}

		path, err := skins.SaveFromURL(context.Background(), attachment.Filename, attachment.URL)
		content := fmt.Sprintf("Stored skin **%s**.", filepath.Base(attachment.Filename))
		if err != nil {
			gc.logger.Error("could not store skin", slog.String("err", err.Error()), slog.String("filename", attachment.Filename))
			content = "Could not store the skin. Please try again later."
		} else {
			gc.logger.Info("stored skin", slog.String("path", path))
		}
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
			gc.logger.Error("could not edit skin upload response", slog.String("err", err.Error()))
		}
	}
}

func newSlashCommands(config *botConfig, registry *Registry, bindings *BindingStore, skins *skinStore, start time.Time) slashCommands {
	return slashCommands{
		"ping": {
			Description: "Check the bot's latency",
			Handler:     pingHandler(),
		},
		"uptime": {
			Description: "Check how long the bot has been running",
			Handler:     uptimeHandler(start),
		},
		"register": {
			Description: "Link your Discord account to your osu! account",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "osu-id",
					Description: "Your osu! user id",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to register instead of yourself (staff only)",
					Required:    false,
				},
			},
			Handler: registerHandler(config, registry),
		},
		"unregister": {
			Description: "Remove a Discord/osu! account link",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "user",
					Description: "Mention, Discord id, or osu! id to unregister (defaults to yourself)",
					Required:    false,
				},
			},
			Handler: unregisterHandler(config, registry),
		},
		"createreactionroles": {
			Description: "Post a message whose reactions grant roles",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "title",
					Description: "Title shown on the message",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "pairs",
					Description: "One 'emoji @role' pair per line",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to post in (defaults to the current one)",
					Required:    false,
				},
			},
			Handler: createReactionRolesHandler(config, bindings),
		},
		"upload-skin": {
			Description: "Store a skin in the community archive",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "skin",
					Description: "The skin file to store",
					Required:    true,
				},
			},
			Handler: uploadSkinHandler(config, skins),
		},
	}
}

func respond(content string, s *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
}

func ephemeralNotice(content string, s *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
