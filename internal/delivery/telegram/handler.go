package telegram

import (
	"context"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// pendingAlbum represents an album being collected
type pendingAlbum struct {
	items []*domain.Message
	timer *time.Timer
	mu    sync.Mutex
}

// MessageProcessor dispatches converted messages into the delivery pipeline
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, msg *domain.Message) error
	ProcessAlbum(ctx context.Context, msgs []*domain.Message) error
}

// UpdateHandler receives channel updates from the MTProto dispatcher,
// converts them to domain messages and hands them to the bridge. Album
// members are buffered briefly so the whole group dispatches as one event.
type UpdateHandler struct {
	bridge    MessageProcessor
	watchRepo domain.WatchRepository
	logger    zerolog.Logger

	albumFlushDelay time.Duration

	albumBuffer map[int64]*pendingAlbum
	albumMu     sync.Mutex
}

// NewUpdateHandler creates a handler for processing Telegram channel updates
func NewUpdateHandler(
	bridge MessageProcessor,
	watchRepo domain.WatchRepository,
	cfg *config.BridgeConfig,
	logger zerolog.Logger,
) *UpdateHandler {
	return &UpdateHandler{
		bridge:          bridge,
		watchRepo:       watchRepo,
		logger:          logger.With().Str("component", "update_handler").Logger(),
		albumFlushDelay: cfg.AlbumFlushDelay,
		albumBuffer:     make(map[int64]*pendingAlbum),
	}
}

// Register attaches the handler callbacks to the update dispatcher
func (h *UpdateHandler) Register(dispatcher *tg.UpdateDispatcher) {
	dispatcher.OnNewChannelMessage(h.OnNewChannelMessage)
}

// OnNewChannelMessage handles new channel message updates.
// This is the callback for tg.UpdateDispatcher.OnNewChannelMessage.
func (h *UpdateHandler) OnNewChannelMessage(
	ctx context.Context,
	e tg.Entities,
	u *tg.UpdateNewChannelMessage,
) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok {
		h.logger.Debug().Msg("skipping non-message update")
		return nil
	}

	if msg.Out {
		h.logger.Debug().Int("message_id", msg.ID).Msg("skipping outgoing message")
		return nil
	}

	peerChannel, ok := msg.GetPeerID().(*tg.PeerChannel)
	if !ok {
		h.logger.Debug().Int("message_id", msg.ID).Msg("skipping non-channel message")
		return nil
	}

	channel := e.Channels[peerChannel.ChannelID]
	chat := h.extractChatInfo(peerChannel.ChannelID, channel)

	if err := h.watchRepo.EnsureChannel(ctx, chat.ID, chat.Title); err != nil {
		h.logger.Error().Err(err).Int64("channel_id", chat.ID).Msg("failed to ensure channel")
	}

	converted := h.convertMessage(msg, chat, e)

	if converted.GroupedID != 0 {
		h.addToAlbumBuffer(converted)
		return nil
	}

	if err := h.bridge.ProcessMessage(ctx, converted); err != nil {
		h.logger.Error().Err(err).
			Int64("channel_id", chat.ID).
			Int("message_id", msg.ID).
			Msg("failed to process message")
	}

	return nil
}

// addToAlbumBuffer adds a member to its pending album, creating the flush
// timer for new albums
func (h *UpdateHandler) addToAlbumBuffer(msg *domain.Message) {
	h.albumMu.Lock()
	defer h.albumMu.Unlock()

	album, exists := h.albumBuffer[msg.GroupedID]
	if !exists {
		album = &pendingAlbum{
			items: make([]*domain.Message, 0, 10),
		}
		h.albumBuffer[msg.GroupedID] = album

		groupedID := msg.GroupedID
		album.timer = time.AfterFunc(h.albumFlushDelay, func() {
			h.flushAlbum(context.Background(), groupedID)
		})

		h.logger.Debug().
			Int64("grouped_id", msg.GroupedID).
			Int64("channel_id", msg.ChannelID).
			Msg("created new pending album")
	}

	album.mu.Lock()
	album.items = append(album.items, msg)
	album.mu.Unlock()

	h.logger.Debug().
		Int64("grouped_id", msg.GroupedID).
		Int("message_id", msg.MessageID).
		Int("album_size", len(album.items)).
		Msg("added member to album buffer")
}

// flushAlbum dispatches a buffered album as one event
func (h *UpdateHandler) flushAlbum(ctx context.Context, groupedID int64) {
	h.albumMu.Lock()
	album, exists := h.albumBuffer[groupedID]
	if !exists {
		h.albumMu.Unlock()
		return
	}
	delete(h.albumBuffer, groupedID)
	h.albumMu.Unlock()

	album.mu.Lock()
	items := album.items
	album.mu.Unlock()

	if len(items) == 0 {
		return
	}

	h.logger.Info().
		Int64("grouped_id", groupedID).
		Int64("channel_id", items[0].ChannelID).
		Int("members", len(items)).
		Msg("flushing album")

	if err := h.bridge.ProcessAlbum(ctx, items); err != nil {
		h.logger.Error().Err(err).
			Int64("grouped_id", groupedID).
			Int64("channel_id", items[0].ChannelID).
			Msg("failed to process album")
	}
}

// FlushAlbumBuffer flushes all pending albums (for graceful shutdown)
func (h *UpdateHandler) FlushAlbumBuffer() {
	h.albumMu.Lock()
	groupedIDs := make([]int64, 0, len(h.albumBuffer))
	for id, album := range h.albumBuffer {
		groupedIDs = append(groupedIDs, id)
		if album.timer != nil {
			album.timer.Stop()
		}
	}
	h.albumMu.Unlock()

	for _, id := range groupedIDs {
		h.flushAlbum(context.Background(), id)
	}

	h.logger.Info().Int("albums_flushed", len(groupedIDs)).Msg("flushed all pending albums")
}

// extractChatInfo builds chat info from the update entities. The avatar
// location is only resolvable while the entity is at hand, so it is captured
// here.
func (h *UpdateHandler) extractChatInfo(channelID int64, channel *tg.Channel) domain.ChatInfo {
	chat := domain.ChatInfo{ID: channelID}
	if channel == nil {
		return chat
	}

	chat.Title = channel.Title
	chat.Username = channel.Username

	if photo, ok := channel.Photo.(*tg.ChatPhoto); ok {
		chat.HasPhoto = true
		chat.PhotoLocation = &tg.InputPeerPhotoFileLocation{
			Big: true,
			Peer: &tg.InputPeerChannel{
				ChannelID:  channel.ID,
				AccessHash: channel.AccessHash,
			},
			PhotoID: photo.PhotoID,
		}
	}

	return chat
}

// convertMessage converts a Telegram message to a domain message
func (h *UpdateHandler) convertMessage(msg *tg.Message, chat domain.ChatInfo, e tg.Entities) *domain.Message {
	converted := &domain.Message{
		ChannelID:   chat.ID,
		MessageID:   msg.ID,
		Text:        msg.Message,
		Annotations: h.convertEntities(msg.Entities),
		Forward:     h.convertForward(msg, e),
		Media:       h.convertMedia(msg.Media),
		Chat:        chat,
		GroupedID:   msg.GroupedID,
		Date:        time.Unix(int64(msg.Date), 0),
	}

	if from, ok := msg.GetFromID(); ok {
		if peerUser, ok := from.(*tg.PeerUser); ok {
			converted.SenderID = peerUser.UserID
		}
	}

	return converted
}

// convertEntities maps Telegram formatting entities onto annotations.
// Offsets and lengths stay in UTF-16 code units, exactly as Telegram
// reports them.
func (h *UpdateHandler) convertEntities(entities []tg.MessageEntityClass) []domain.Annotation {
	if len(entities) == 0 {
		return nil
	}

	anns := make([]domain.Annotation, 0, len(entities))
	for _, entity := range entities {
		switch ent := entity.(type) {
		case *tg.MessageEntityBold:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationBold, Offset: ent.Offset, Length: ent.Length})
		case *tg.MessageEntityItalic:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationItalic, Offset: ent.Offset, Length: ent.Length})
		case *tg.MessageEntityCode:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationCode, Offset: ent.Offset, Length: ent.Length})
		case *tg.MessageEntityStrike:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationStrikethrough, Offset: ent.Offset, Length: ent.Length})
		case *tg.MessageEntityUnderline:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationUnderline, Offset: ent.Offset, Length: ent.Length})
		case *tg.MessageEntityPre:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationPre, Offset: ent.Offset, Length: ent.Length, Language: ent.Language})
		case *tg.MessageEntityURL:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationURL, Offset: ent.Offset, Length: ent.Length})
		case *tg.MessageEntityTextURL:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationTextLink, Offset: ent.Offset, Length: ent.Length, URL: ent.URL})
		case *tg.MessageEntityMention:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationMention, Offset: ent.Offset, Length: ent.Length})
		case *tg.MessageEntityMentionName:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationMentionName, Offset: ent.Offset, Length: ent.Length, UserID: ent.UserID})
		default:
			anns = append(anns, domain.Annotation{Type: domain.AnnotationUnknown, Offset: entity.GetOffset(), Length: entity.GetLength()})
		}
	}

	return anns
}

// convertForward captures the forward header with the access hashes needed
// for a later origin lookup
func (h *UpdateHandler) convertForward(msg *tg.Message, e tg.Entities) *domain.ForwardHeader {
	fwd, ok := msg.GetFwdFrom()
	if !ok {
		return nil
	}

	header := &domain.ForwardHeader{
		FromName:   fwd.FromName,
		PostAuthor: fwd.PostAuthor,
	}

	if from, ok := fwd.GetFromID(); ok {
		switch peer := from.(type) {
		case *tg.PeerUser:
			header.FromUserID = peer.UserID
			if user, ok := e.Users[peer.UserID]; ok {
				header.FromUserAccess = user.AccessHash
			}
		case *tg.PeerChannel:
			header.FromChannelID = peer.ChannelID
			if channel, ok := e.Channels[peer.ChannelID]; ok {
				header.FromChannelAccess = channel.AccessHash
			}
		}
	}

	return header
}

// convertMedia maps message media onto a downloadable location. Web page
// previews are marked preview-only: their photo belongs to the linked site,
// not the message.
func (h *UpdateHandler) convertMedia(media tg.MessageMediaClass) *domain.Media {
	if media == nil {
		return nil
	}

	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil
		}
		return &domain.Media{
			Location: &tg.InputPhotoFileLocation{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
				ThumbSize:     largestPhotoSize(photo.Sizes),
			},
			Ext:      ".jpg",
			MimeType: "image/jpeg",
		}

	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return nil
		}
		return &domain.Media{
			Location: &tg.InputDocumentFileLocation{
				ID:            doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
			},
			Ext:      documentExt(doc),
			MimeType: doc.MimeType,
			Size:     doc.Size,
		}

	case *tg.MessageMediaWebPage:
		return &domain.Media{PreviewOnly: true, Location: struct{}{}}

	default:
		return nil
	}
}

// largestPhotoSize picks the thumb type of the biggest available size
func largestPhotoSize(sizes []tg.PhotoSizeClass) string {
	thumbType := ""
	best := -1
	for _, s := range sizes {
		switch size := s.(type) {
		case *tg.PhotoSize:
			if size.Size > best {
				best = size.Size
				thumbType = size.Type
			}
		case *tg.PhotoSizeProgressive:
			total := 0
			for _, b := range size.Sizes {
				if b > total {
					total = b
				}
			}
			if total > best {
				best = total
				thumbType = size.Type
			}
		}
	}
	return thumbType
}

// documentExt derives the file extension from the filename attribute,
// falling back to the MIME type
func documentExt(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if filename, ok := attr.(*tg.DocumentAttributeFilename); ok {
			if ext := filepath.Ext(filename.FileName); ext != "" {
				return ext
			}
		}
	}

	if exts, err := mime.ExtensionsByType(doc.MimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}

	// Common Telegram types mime misses
	switch {
	case strings.HasPrefix(doc.MimeType, "video/"):
		return ".mp4"
	case strings.HasPrefix(doc.MimeType, "audio/"):
		return ".ogg"
	}
	return ".bin"
}
