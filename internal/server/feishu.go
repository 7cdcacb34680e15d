package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"
	"github.com/butlerbot/relay/internal/infra/feishu"
)

// Ingestor accepts inbound chat messages
type Ingestor interface {
	OnMessageArrived(ctx context.Context, in domain.Inbound) (int64, error)
}

const (
	seenTTL             = 5 * time.Minute
	memberRefresh       = 10 * time.Minute
	memberLookupTimeout = 5 * time.Second
)

// FeishuServer feeds Feishu messages into the scheduler
type FeishuServer struct {
	feishuClient *feishu.Client
	memberRepo   repo.MemberRepo
	ingestor     Ingestor
	logger       *slog.Logger

	// Message deduplication cache, Feishu redelivers events it thinks were not ACKed
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp

	namesMu sync.Mutex
	names   map[string]*memberNames // chatID -> names
}

type memberNames struct {
	byID      map[string]string
	fetchedAt time.Time
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(feishuClient *feishu.Client, memberRepo repo.MemberRepo, ingestor Ingestor, logger *slog.Logger) *FeishuServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeishuServer{
		feishuClient: feishuClient,
		memberRepo:   memberRepo,
		ingestor:     ingestor,
		logger:       logger.With("component", "feishu_server"),
		seenMsgs:     make(map[string]time.Time),
		names:        make(map[string]*memberNames),
	}
}

// Start listens for Feishu messages until ctx ends
func (s *FeishuServer) Start(ctx context.Context) error {
	s.feishuClient.OnMessage(s.handleMessage)
	return s.feishuClient.Start(ctx)
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	s.feishuClient.Stop()
}

// handleMessage handles Feishu messages
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	if !s.markMessageSeen(msg.MsgID) {
		s.logger.Debug("duplicate message ignored", "msg_id", msg.MsgID)
		return
	}

	ctx := context.Background()
	in := domain.Inbound{
		ChatID:   msg.ChatID,
		UserID:   msg.SenderID,
		Username: s.senderName(ctx, msg.ChatID, msg.SenderID),
		Text:     msg.Content,
	}

	if _, err := s.ingestor.OnMessageArrived(ctx, in); err != nil {
		s.logger.Error("failed to accept message", "chat_id", msg.ChatID, "msg_id", msg.MsgID, "error", err)
	}
}

// senderName resolves a display name, falling back to the open_id.
// The member lookup runs outside namesMu so a slow chat does not hold up the others.
func (s *FeishuServer) senderName(ctx context.Context, chatID, senderID string) string {
	s.namesMu.Lock()
	cached, ok := s.names[chatID]
	s.namesMu.Unlock()

	if ok {
		if name, found := cached.byID[senderID]; found {
			return name
		}
		// Unknown sender in a recently fetched chat: do not refetch on every message
		if time.Since(cached.fetchedAt) < memberRefresh {
			return senderID
		}
	}

	if s.memberRepo == nil {
		return senderID
	}

	lookupCtx, cancel := context.WithTimeout(ctx, memberLookupTimeout)
	defer cancel()
	members, err := s.memberRepo.GetChatMembers(lookupCtx, chatID)
	if err != nil {
		s.logger.Warn("failed to get chat members", "chat_id", chatID, "error", err)
		return senderID
	}

	fetched := &memberNames{byID: make(map[string]string, len(members)), fetchedAt: time.Now()}
	for _, m := range members {
		if m.Name != "" {
			fetched.byID[m.UserID] = m.Name
		}
	}

	s.namesMu.Lock()
	s.names[chatID] = fetched
	s.namesMu.Unlock()

	if name, found := fetched.byID[senderID]; found {
		return name
	}
	return senderID
}

// markMessageSeen records a message and reports whether it was new
func (s *FeishuServer) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	if msgID == "" {
		return true
	}
	if _, exists := s.seenMsgs[msgID]; exists {
		return false
	}
	s.seenMsgs[msgID] = time.Now()

	// Expire old records on write to keep the map bounded
	cutoff := time.Now().Add(-seenTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	return true
}
