package main

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

type reactionHandler struct {
	bindings *BindingStore
	logger   *slog.Logger
}

func (r reactionHandler) Register(s *discordgo.Session) {
	s.AddHandler(r.handleAdd)
	s.AddHandler(r.handleRemove)
}

func (r reactionHandler) handleAdd(s *discordgo.Session, reactionAdd *discordgo.MessageReactionAdd) {
	reaction := reactionAdd.MessageReaction
	//the bot seeds each message with its own reactions; don't react to those
	if reaction.UserID == s.State.User.ID {
		return
	}
	logger := reactionLogger(r.logger, reaction)

	role, relevant := r.lookup(logger, reaction)
	if !relevant {
		return
	}
	err := s.GuildMemberRoleAdd(reaction.GuildID, reaction.UserID, role)
	if err != nil {
		logger.Error("failed to add role", slog.String("err", err.Error()))
		return
	}
}

func (r reactionHandler) handleRemove(s *discordgo.Session, reactionRemove *discordgo.MessageReactionRemove) {
	reaction := reactionRemove.MessageReaction
	logger := reactionLogger(r.logger, reaction)

	role, relevant := r.lookup(logger, reaction)
	if !relevant {
		return
	}
	err := s.GuildMemberRoleRemove(reaction.GuildID, reaction.UserID, role)
	if err != nil {
		logger.Error("failed to remove role", slog.String("err", err.Error()))
		return
	}
}

// lookup resolves a reaction to the role its binding grants, if any. Unknown
// messages and unmatched emoji are no-ops, not errors.
func (r reactionHandler) lookup(logger *slog.Logger, reaction *discordgo.MessageReaction) (string, bool) {
	binding, err := r.bindings.Get(reaction.MessageID)
	if err != nil {
		logger.Error("failed to read bindings", slog.String("err", err.Error()))
		return "", false
	}
	if binding == nil {
		return "", false
	}
	role, ok := binding.Match(reaction.Emoji.APIName())
	if !ok {
		logger.Debug("unknown emoji")
		return "", false
	}
	return role, true
}

func reactionLogger(logger *slog.Logger, er *discordgo.MessageReaction) *slog.Logger {
	return logger.With(
		slog.String("channel", er.ChannelID),
		slog.String("message", er.MessageID),
		slog.String("emoji", er.Emoji.Name),
		slog.String("user", er.UserID),
	)
}
