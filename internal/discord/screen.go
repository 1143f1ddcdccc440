package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"sentra/internal/logging"
	"sentra/internal/matchlog"
	"sentra/internal/phash"
	"sentra/internal/screening"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// isImageAttachment reports whether an attachment is worth screening,
// judged by content type first and filename extension as a fallback.
func isImageAttachment(att *discordgo.MessageAttachment) bool {
	if att == nil {
		return false
	}
	if ct := strings.TrimSpace(att.ContentType); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return strings.HasPrefix(mediaType, "image/")
		}
	}
	return imageExtensions[strings.ToLower(path.Ext(att.Filename))]
}

// downloader fetches attachment bytes with a timeout and a hard size
// cap, so one oversized upload cannot stall screening.
type downloader struct {
	client   *http.Client
	maxBytes int64
}

var errTooLarge = errors.New("attachment exceeds download size limit")

func (d *downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download attachment: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, errTooLarge
	}
	return data, nil
}

func (b *Bot) screenMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	for _, att := range m.Attachments {
		if !isImageAttachment(att) {
			continue
		}
		if b.screenAttachment(s, m, att) {
			// The message is gone; remaining attachments went with it.
			return
		}
	}
}

// screenAttachment downloads and matches one attachment, removing the
// message on a hit. It reports whether the message was removed.
func (b *Bot) screenAttachment(s *discordgo.Session, m *discordgo.MessageCreate, att *discordgo.MessageAttachment) bool {
	ctx := context.Background()

	data, err := b.downloader.fetch(ctx, att.URL)
	if err != nil {
		b.logger.Warn("skipped attachment",
			logging.String("filename", att.Filename), logging.Error(err))
		return false
	}

	result, err := b.screener.Match(data)
	if err != nil {
		// Mislabeled or corrupt uploads are routine; just log them.
		if errors.Is(err, phash.ErrDecode) {
			b.logger.Debug("attachment not decodable",
				logging.String("filename", att.Filename))
		} else {
			b.logger.Warn("screening failed",
				logging.String("filename", att.Filename), logging.Error(err))
		}
		return false
	}
	if !result.Matched {
		return false
	}

	b.logger.Info("spam image detected",
		logging.String("entry_id", result.ID),
		logging.Int("distance", result.Distance),
		logging.String("poster", m.Author.Username),
		logging.String("message_id", m.ID))

	if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		b.logger.Error("failed to delete spam message",
			logging.String("message_id", m.ID), logging.Error(err))
		_ = b.notifier.NotifyError(ctx, err, "message deletion")
		return false
	}

	b.postNotice(s, m.ChannelID)
	b.recordDetection(ctx, m, result)
	return true
}

// postNotice drops a short alert in the channel and schedules its
// removal so moderation leaves no long-term clutter.
func (b *Bot) postNotice(s *discordgo.Session, channelID string) {
	if b.alertMessage == "" {
		return
	}
	notice, err := s.ChannelMessageSend(channelID, b.alertMessage)
	if err != nil {
		b.logger.Warn("failed to post removal notice", logging.Error(err))
		return
	}
	if b.noticeTTL <= 0 {
		return
	}
	time.AfterFunc(b.noticeTTL, func() {
		if err := s.ChannelMessageDelete(channelID, notice.ID); err != nil {
			b.logger.Debug("failed to delete removal notice", logging.Error(err))
		}
	})
}

func (b *Bot) recordDetection(ctx context.Context, m *discordgo.MessageCreate, result screening.MatchResult) {
	poster := ""
	if m.Author != nil {
		poster = m.Author.Username
	}
	channelName := m.ChannelID
	if channel, err := b.session.State.Channel(m.ChannelID); err == nil && channel.Name != "" {
		channelName = channel.Name
	}

	if b.history != nil {
		err := b.history.Record(ctx, matchlog.Detection{
			EntryID:   result.ID,
			Distance:  result.Distance,
			Poster:    poster,
			Channel:   channelName,
			Guild:     m.GuildID,
			MessageID: m.ID,
		})
		if err != nil {
			b.logger.Warn("failed to record detection", logging.Error(err))
		}
	}

	if err := b.notifier.NotifySpamDetected(ctx, result.ID, result.Distance, poster, channelName); err != nil {
		b.logger.Warn("failed to push detection notification", logging.Error(err))
	}
}
