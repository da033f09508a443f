package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
	"github.com/internationalcrisis/tgbridge/internal/infrastructure/metrics"
	"github.com/internationalcrisis/tgbridge/internal/translator"
)

type mockWatchRepo struct {
	resolveFunc func(ctx context.Context, channelID int64) ([]domain.Webhook, error)
	resolved    int
}

func (m *mockWatchRepo) ResolveDestinations(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
	m.resolved++
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, channelID)
	}
	return nil, nil
}

func (m *mockWatchRepo) GetChannel(ctx context.Context, id int64) (*domain.Channel, error) {
	return nil, domain.ErrChannelNotFound
}

func (m *mockWatchRepo) EnsureChannel(ctx context.Context, id int64, name string) error {
	return nil
}

type mockLedger struct {
	mu            sync.Mutex
	ensureFunc    func(ctx context.Context, channelID int64, messageID int) (*domain.SourceMessage, bool, error)
	hasFunc       func(ctx context.Context, sourceMessageID uint, webhookID string) (bool, error)
	recordFunc    func(ctx context.Context, sourceMessageID uint, webhookID, resultMessageID string) error
	ensuredMsgIDs []int
	recorded      []string
}

func (m *mockLedger) EnsureSourceMessage(ctx context.Context, channelID int64, messageID int) (*domain.SourceMessage, bool, error) {
	m.mu.Lock()
	m.ensuredMsgIDs = append(m.ensuredMsgIDs, messageID)
	m.mu.Unlock()
	if m.ensureFunc != nil {
		return m.ensureFunc(ctx, channelID, messageID)
	}
	return &domain.SourceMessage{ID: 1, ChannelID: channelID, MessageID: messageID}, true, nil
}

func (m *mockLedger) HasDelivered(ctx context.Context, sourceMessageID uint, webhookID string) (bool, error) {
	if m.hasFunc != nil {
		return m.hasFunc(ctx, sourceMessageID, webhookID)
	}
	return false, nil
}

func (m *mockLedger) RecordDelivery(ctx context.Context, sourceMessageID uint, webhookID, resultMessageID string) error {
	m.mu.Lock()
	m.recorded = append(m.recorded, webhookID)
	m.mu.Unlock()
	if m.recordFunc != nil {
		return m.recordFunc(ctx, sourceMessageID, webhookID, resultMessageID)
	}
	return nil
}

type mockRelocator struct {
	mediaFunc  func(ctx context.Context, msg *domain.Message) (string, error)
	avatarFunc func(ctx context.Context, chat domain.ChatInfo) (string, error)
}

func (m *mockRelocator) RelocateMessageMedia(ctx context.Context, msg *domain.Message) (string, error) {
	if m.mediaFunc != nil {
		return m.mediaFunc(ctx, msg)
	}
	return "", nil
}

func (m *mockRelocator) RelocateChatAvatar(ctx context.Context, chat domain.ChatInfo) (string, error) {
	if m.avatarFunc != nil {
		return m.avatarFunc(ctx, chat)
	}
	return "", nil
}

type mockOrigins struct {
	lookupFunc func(ctx context.Context, header *domain.ForwardHeader) (*domain.ForwardOrigin, error)
}

func (m *mockOrigins) LookupForwardOrigin(ctx context.Context, header *domain.ForwardHeader) (*domain.ForwardOrigin, error) {
	if m.lookupFunc != nil {
		return m.lookupFunc(ctx, header)
	}
	return &domain.ForwardOrigin{Kind: domain.OriginHidden, Name: "someone"}, nil
}

type mockSender struct {
	mu       sync.Mutex
	sendFunc func(ctx context.Context, url string, params domain.SendParams) (string, error)
	sent     []domain.SendParams
	sentURLs []string
}

func (m *mockSender) Send(ctx context.Context, url string, params domain.SendParams) (string, error) {
	m.mu.Lock()
	m.sent = append(m.sent, params)
	m.sentURLs = append(m.sentURLs, url)
	m.mu.Unlock()
	if m.sendFunc != nil {
		return m.sendFunc(ctx, url, params)
	}
	return "result-1", nil
}

type fixture struct {
	watchRepo *mockWatchRepo
	ledger    *mockLedger
	relocator *mockRelocator
	origins   *mockOrigins
	sender    *mockSender
	uc        *BridgeUseCase
}

func newFixture() *fixture {
	f := &fixture{
		watchRepo: &mockWatchRepo{},
		ledger:    &mockLedger{},
		relocator: &mockRelocator{},
		origins:   &mockOrigins{},
		sender:    &mockSender{},
	}
	f.uc = NewBridgeUseCase(
		f.watchRepo,
		f.ledger,
		f.relocator,
		translator.New(zerolog.Nop()),
		f.origins,
		f.sender,
		&config.BridgeConfig{EventTimeout: 5 * time.Second, SendConcurrency: 2},
		zerolog.Nop(),
		metrics.GetDefaultMetrics(),
	)
	return f
}

func twoWebhooks() []domain.Webhook {
	return []domain.Webhook{
		{ID: "wh-1", URL: "https://sink.example.com/1", Active: true},
		{ID: "wh-2", URL: "https://sink.example.com/2", Active: true},
	}
}

func TestProcessMessage_SystemChannelDiscarded(t *testing.T) {
	f := newFixture()

	msg := &domain.Message{ChannelID: systemChannelID, MessageID: 1, Text: "login code"}
	if err := f.uc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	if len(f.ledger.ensuredMsgIDs) != 0 {
		t.Error("system channel message must not touch the ledger")
	}
	if f.watchRepo.resolved != 0 {
		t.Error("system channel message must not resolve destinations")
	}
}

func TestProcessMessage_RejectsAlbumMember(t *testing.T) {
	f := newFixture()

	msg := &domain.Message{ChannelID: 100, MessageID: 1, GroupedID: 555}
	if err := f.uc.ProcessMessage(context.Background(), msg); !errors.Is(err, domain.ErrGroupedMessage) {
		t.Fatalf("ProcessMessage() error = %v, want ErrGroupedMessage", err)
	}
}

func TestProcessMessage_NoDestinations(t *testing.T) {
	f := newFixture()

	msg := &domain.Message{ChannelID: 100, MessageID: 1, Text: "hello"}
	if err := f.uc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	if len(f.sender.sent) != 0 {
		t.Errorf("sends = %d, want 0", len(f.sender.sent))
	}
}

func TestProcessMessage_DeliversToAllDestinations(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks(), nil
	}

	msg := &domain.Message{
		ChannelID: 100,
		MessageID: 7,
		Text:      "hello",
		Chat:      domain.ChatInfo{ID: 100, Title: "Some Channel"},
	}
	if err := f.uc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	if len(f.sender.sent) != 2 {
		t.Fatalf("sends = %d, want 2", len(f.sender.sent))
	}
	if len(f.ledger.recorded) != 2 {
		t.Fatalf("recorded deliveries = %d, want 2", len(f.ledger.recorded))
	}
	for _, params := range f.sender.sent {
		if params.Content != "hello" {
			t.Errorf("content = %q, want %q", params.Content, "hello")
		}
		if params.Username != "Some Channel" {
			t.Errorf("username = %q, want %q", params.Username, "Some Channel")
		}
	}
}

func TestProcessMessage_SkipsDeliveredDestination(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks(), nil
	}
	f.ledger.ensureFunc = func(ctx context.Context, channelID int64, messageID int) (*domain.SourceMessage, bool, error) {
		return &domain.SourceMessage{ID: 1, ChannelID: channelID, MessageID: messageID}, false, nil
	}
	f.ledger.hasFunc = func(ctx context.Context, sourceMessageID uint, webhookID string) (bool, error) {
		return webhookID == "wh-1", nil
	}

	msg := &domain.Message{ChannelID: 100, MessageID: 7, Text: "hello"}
	if err := f.uc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	if len(f.sender.sentURLs) != 1 {
		t.Fatalf("sends = %d, want 1", len(f.sender.sentURLs))
	}
	if f.sender.sentURLs[0] != "https://sink.example.com/2" {
		t.Errorf("sent to %q, want wh-2 only", f.sender.sentURLs[0])
	}
}

func TestProcessMessage_ConcurrentRecordIsNotAnError(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks()[:1], nil
	}
	f.ledger.recordFunc = func(ctx context.Context, sourceMessageID uint, webhookID, resultMessageID string) error {
		return domain.ErrAlreadyDelivered
	}

	msg := &domain.Message{ChannelID: 100, MessageID: 7, Text: "hello"}
	if err := f.uc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
}

func TestProcessMessage_RecordFailureIsAnError(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks()[:1], nil
	}
	f.ledger.recordFunc = func(ctx context.Context, sourceMessageID uint, webhookID, resultMessageID string) error {
		return domain.ErrDatabaseOperation
	}

	msg := &domain.Message{ChannelID: 100, MessageID: 7, Text: "hello"}
	if err := f.uc.ProcessMessage(context.Background(), msg); err == nil {
		t.Fatal("ProcessMessage() expected error when ledger write fails after send")
	}
}

func TestProcessMessage_SendFailureLeavesNoLedgerRow(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks()[:1], nil
	}
	f.sender.sendFunc = func(ctx context.Context, url string, params domain.SendParams) (string, error) {
		return "", errors.New("503 service unavailable")
	}

	msg := &domain.Message{ChannelID: 100, MessageID: 7, Text: "hello"}
	if err := f.uc.ProcessMessage(context.Background(), msg); err == nil {
		t.Fatal("ProcessMessage() expected error when send fails")
	}
	if len(f.ledger.recorded) != 0 {
		t.Error("failed send must not be recorded in the ledger")
	}
}

func TestProcessMessage_ForwardAttribution(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks()[:1], nil
	}
	f.origins.lookupFunc = func(ctx context.Context, header *domain.ForwardHeader) (*domain.ForwardOrigin, error) {
		return &domain.ForwardOrigin{Kind: domain.OriginChannel, Title: "Origin News", Handle: "originnews"}, nil
	}

	msg := &domain.Message{
		ChannelID: 100,
		MessageID: 7,
		Text:      "forwarded text",
		Forward:   &domain.ForwardHeader{FromChannelID: 200},
	}
	if err := f.uc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	content := f.sender.sent[0].Content
	if !strings.Contains(content, "[Origin News](https://t.me/originnews)") {
		t.Errorf("content missing attribution: %q", content)
	}
	if !strings.Contains(content, "forwarded text") {
		t.Errorf("content missing body: %q", content)
	}
}

func TestProcessMessage_AttributionLookupFailure(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks()[:1], nil
	}
	f.origins.lookupFunc = func(ctx context.Context, header *domain.ForwardHeader) (*domain.ForwardOrigin, error) {
		return nil, errors.New("CHANNEL_PRIVATE")
	}

	msg := &domain.Message{
		ChannelID: 100,
		MessageID: 7,
		Text:      "forwarded text",
		Forward:   &domain.ForwardHeader{FromChannelID: 200},
	}
	if err := f.uc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	if !strings.Contains(f.sender.sent[0].Content, translator.AttributionLookupFailed) {
		t.Errorf("content missing fallback attribution: %q", f.sender.sent[0].Content)
	}
}

func TestProcessMessage_FailingDestinationDoesNotCancelSiblings(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks(), nil
	}
	f.sender.sendFunc = func(ctx context.Context, url string, params domain.SendParams) (string, error) {
		if url == "https://sink.example.com/1" {
			return "", errors.New("503 service unavailable")
		}
		// The slow sibling must still get its full attempt
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "result-2", nil
	}

	msg := &domain.Message{ChannelID: 100, MessageID: 7, Text: "hello"}
	if err := f.uc.ProcessMessage(context.Background(), msg); err == nil {
		t.Fatal("ProcessMessage() expected error when a destination fails")
	}

	if len(f.sender.sentURLs) != 2 {
		t.Fatalf("sends = %d, want both destinations attempted", len(f.sender.sentURLs))
	}
	if len(f.ledger.recorded) != 1 || f.ledger.recorded[0] != "wh-2" {
		t.Errorf("recorded = %v, want wh-2 delivered despite wh-1 failing", f.ledger.recorded)
	}
}

func TestProcessMessage_MediaFailureDeliversTextOnly(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks()[:1], nil
	}
	f.relocator.mediaFunc = func(ctx context.Context, msg *domain.Message) (string, error) {
		return "", errors.New("FILE_REFERENCE_EXPIRED")
	}

	msg := &domain.Message{
		ChannelID: 100,
		MessageID: 7,
		Text:      "photo description",
		Media:     &domain.Media{Location: struct{}{}, Ext: ".jpg"},
	}
	if err := f.uc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	if len(f.sender.sent) != 1 {
		t.Fatalf("sends = %d, want 1 text-only send", len(f.sender.sent))
	}
	if got := f.sender.sent[0].Content; got != "photo description" {
		t.Errorf("content = %q, want text without media URL", got)
	}
}

func TestProcessMessage_OversizedMediaDeliveredWithoutIt(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks()[:1], nil
	}
	f.relocator.mediaFunc = func(ctx context.Context, msg *domain.Message) (string, error) {
		return "", domain.ErrMediaTooLarge
	}

	msg := &domain.Message{
		ChannelID: 100,
		MessageID: 7,
		Text:      "video description",
		Media:     &domain.Media{Location: struct{}{}, Size: 1 << 30},
	}
	if err := f.uc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	if got := f.sender.sent[0].Content; got != "video description" {
		t.Errorf("content = %q, want text without media URL", got)
	}
}

func TestProcessAlbum_LeadAndMediaGathering(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks()[:1], nil
	}
	f.relocator.mediaFunc = func(ctx context.Context, msg *domain.Message) (string, error) {
		if msg.Media == nil {
			return "", nil
		}
		return msg.Media.Ext, nil
	}

	msgs := []*domain.Message{
		{ChannelID: 100, MessageID: 12, GroupedID: 5, Media: &domain.Media{Location: struct{}{}, Ext: "u2"}},
		{ChannelID: 100, MessageID: 10, GroupedID: 5, Text: "album caption", Media: &domain.Media{Location: struct{}{}, Ext: "u0"}},
		{ChannelID: 100, MessageID: 11, GroupedID: 5, Media: &domain.Media{Location: struct{}{}, Ext: "u1"}},
	}

	if err := f.uc.ProcessAlbum(context.Background(), msgs); err != nil {
		t.Fatalf("ProcessAlbum() error = %v", err)
	}

	if len(f.ledger.ensuredMsgIDs) != 1 || f.ledger.ensuredMsgIDs[0] != 10 {
		t.Errorf("ledger keyed on %v, want lead message 10", f.ledger.ensuredMsgIDs)
	}

	content := f.sender.sent[0].Content
	if !strings.Contains(content, "album caption") {
		t.Errorf("content missing caption: %q", content)
	}
	for _, u := range []string{"u0", "u1", "u2"} {
		if !strings.Contains(content, u) {
			t.Errorf("content missing media %q: %q", u, content)
		}
	}
}

func TestProcessAlbum_CaptionOnNonLeadMember(t *testing.T) {
	f := newFixture()
	f.watchRepo.resolveFunc = func(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
		return twoWebhooks()[:1], nil
	}

	var relocations int
	f.relocator.mediaFunc = func(ctx context.Context, msg *domain.Message) (string, error) {
		if msg.Media == nil {
			return "", nil
		}
		relocations++
		return "https://cdn/" + msg.Media.Ext, nil
	}

	msgs := []*domain.Message{
		{ChannelID: 100, MessageID: 10, GroupedID: 5, Media: &domain.Media{Location: struct{}{}, Ext: "lead.jpg"}},
		{ChannelID: 100, MessageID: 11, GroupedID: 5, Text: "caption on second", Media: &domain.Media{Location: struct{}{}, Ext: "second.jpg"}},
	}

	if err := f.uc.ProcessAlbum(context.Background(), msgs); err != nil {
		t.Fatalf("ProcessAlbum() error = %v", err)
	}

	if f.ledger.ensuredMsgIDs[0] != 10 {
		t.Errorf("ledger keyed on %d, want lead message 10", f.ledger.ensuredMsgIDs[0])
	}

	content := f.sender.sent[0].Content
	if !strings.Contains(content, "caption on second") {
		t.Errorf("content missing caption from second member: %q", content)
	}
	// Adopting the caption must not duplicate the lead: each member's media
	// is relocated once and its URL appears once.
	if relocations != 2 {
		t.Errorf("media relocations = %d, want 2", relocations)
	}
	for _, u := range []string{"https://cdn/lead.jpg", "https://cdn/second.jpg"} {
		if got := strings.Count(content, u); got != 1 {
			t.Errorf("content has %d occurrences of %q, want 1: %q", got, u, content)
		}
	}
}

func TestProcessAlbum_Empty(t *testing.T) {
	f := newFixture()
	if err := f.uc.ProcessAlbum(context.Background(), nil); err != nil {
		t.Fatalf("ProcessAlbum() error = %v", err)
	}
}
