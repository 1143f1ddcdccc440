package discord

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"sentra/internal/logging"
	"sentra/internal/registry"
	"sentra/internal/screening"
)

// moderatorPermissions is the permission mask that grants access to
// registry commands. Any one of these bits suffices.
const moderatorPermissions = discordgo.PermissionManageServer |
	discordgo.PermissionManageMessages |
	discordgo.PermissionAdministrator

// listMessageLimit keeps the inline listing safely under Discord's
// 2000-character message cap; longer listings are sent as a file.
const listMessageLimit = 1900

// parseCommand splits a prefixed message into a command name and its
// argument string. It reports false for ordinary messages.
func parseCommand(prefix, content string) (cmd, args string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(content, prefix))
	if rest == "" {
		return "", "", false
	}
	cmd, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(cmd), strings.TrimSpace(args), true
}

// hasModeratorPermissions reports whether a permission bitmask grants
// registry command access.
func hasModeratorPermissions(permissions int64) bool {
	return permissions&moderatorPermissions != 0
}

func (b *Bot) handleCommand(s *discordgo.Session, m *discordgo.MessageCreate, cmd, args string) {
	switch cmd {
	case "ping":
		b.reply(s, m, "pong")
		return
	case "add_spam", "remove_spam", "list_hashes", "reload_hashes":
	default:
		return
	}

	permissions, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		b.logger.Warn("failed to resolve permissions",
			logging.String("user", m.Author.Username), logging.Error(err))
		return
	}
	if !hasModeratorPermissions(permissions) {
		b.reply(s, m, "You need Manage Server, Manage Messages, or Administrator permission for that.")
		return
	}

	switch cmd {
	case "add_spam":
		b.commandAddSpam(s, m, args)
	case "remove_spam":
		b.commandRemoveSpam(s, m, args)
	case "list_hashes":
		b.commandListHashes(s, m)
	case "reload_hashes":
		b.commandReloadHashes(s, m)
	}
}

// commandAddSpam registers the image attached to the command message,
// or to the message it replies to.
func (b *Bot) commandAddSpam(s *discordgo.Session, m *discordgo.MessageCreate, args string) {
	ctx := context.Background()

	att := firstImageAttachment(m.Attachments)
	if att == nil && m.ReferencedMessage != nil {
		att = firstImageAttachment(m.ReferencedMessage.Attachments)
	}
	if att == nil {
		b.reply(s, m, "Attach an image to the command, or reply to a message that has one.")
		return
	}

	data, err := b.downloader.fetch(ctx, att.URL)
	if err != nil {
		b.reply(s, m, fmt.Sprintf("Could not download the attachment: %v", err))
		return
	}

	hint := args
	if hint == "" {
		hint = att.Filename
	}
	added, err := b.screener.Add(data, hint)
	if err != nil {
		b.reply(s, m, fmt.Sprintf("Could not register the image: %v", err))
		return
	}

	msg := fmt.Sprintf("Registered `%s` (phash `%s`, %d total).", added.ID, added.Fingerprint, b.screener.Count())
	if added.PersistErr != nil {
		msg += "\nWarning: the registration is active but was not fully persisted."
		_ = b.notifier.NotifyError(ctx, added.PersistErr, "fingerprint persistence")
	}
	b.reply(s, m, msg)
	_ = b.notifier.NotifyFingerprintAdded(ctx, added.ID, b.screener.Count())
}

func (b *Bot) commandRemoveSpam(s *discordgo.Session, m *discordgo.MessageCreate, args string) {
	if args == "" {
		b.reply(s, m, "Usage: remove_spam <id> (see list_hashes for ids).")
		return
	}
	id := strings.TrimSpace(args)

	removed := b.screener.Remove(id)
	if !removed.Found {
		b.reply(s, m, fmt.Sprintf("No fingerprint registered as `%s`.", id))
		return
	}

	msg := fmt.Sprintf("Removed `%s` (%d remaining).", id, b.screener.Count())
	if removed.PersistErr != nil {
		msg += "\nWarning: the removal is active but was not fully persisted."
	}
	b.reply(s, m, msg)
	_ = b.notifier.NotifyFingerprintRemoved(context.Background(), id, b.screener.Count())
}

func (b *Bot) commandListHashes(s *discordgo.Session, m *discordgo.MessageCreate) {
	entries := b.screener.List()
	if len(entries) == 0 {
		b.reply(s, m, "No fingerprints registered.")
		return
	}

	listing := formatEntryList(entries)
	if len(listing) <= listMessageLimit {
		b.reply(s, m, "```\n"+listing+"```")
		return
	}

	// Too long for a message; attach it as a file instead.
	_, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("%d fingerprints registered:", len(entries)),
		Files: []*discordgo.File{{
			Name:        "fingerprints.txt",
			ContentType: "text/plain",
			Reader:      bytes.NewReader([]byte(listing)),
		}},
	})
	if err != nil {
		b.logger.Warn("failed to send fingerprint listing", logging.Error(err))
	}
}

func (b *Bot) commandReloadHashes(s *discordgo.Session, m *discordgo.MessageCreate) {
	count, err := b.screener.Reload()
	if err != nil {
		b.reply(s, m, fmt.Sprintf("Reload failed: %v", err))
		_ = b.notifier.NotifyError(context.Background(), err, "registry reload")
		return
	}
	b.reply(s, m, fmt.Sprintf("Reloaded: %d fingerprints registered.", count))
	_ = b.notifier.NotifyRegistryReloaded(context.Background(), count)
}

func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, content, m.Reference()); err != nil {
		b.logger.Warn("failed to send reply", logging.Error(err))
	}
}

func firstImageAttachment(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, att := range attachments {
		if isImageAttachment(att) {
			return att
		}
	}
	return nil
}

// formatEntryList renders the registry in insertion order, one entry
// per line with its fingerprint and friendly name.
func formatEntryList(entries []registry.Entry) string {
	var builder strings.Builder
	for i, entry := range entries {
		fmt.Fprintf(&builder, "%3d  %s  %s", i+1, entry.Fingerprint.Hex(), entry.ID)
		if name := screening.DisplayName(entry.ID); name != entry.ID {
			fmt.Fprintf(&builder, "  (%s)", name)
		}
		builder.WriteByte('\n')
	}
	return builder.String()
}
