package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"
	"github.com/butlerbot/relay/internal/biz/usecase"
	"github.com/butlerbot/relay/internal/calc"
)

// Ingestor accepts inbound chat messages
type Ingestor interface {
	OnMessageArrived(ctx context.Context, in domain.Inbound) (int64, error)
}

// Server provides the HTTP ingest and inspection API
type Server struct {
	ingestor    Ingestor
	messageRepo repo.MessageRepo
	contextUC   *usecase.ContextBuilderUsecase
	logger      *slog.Logger

	server *http.Server
	addr   string
}

// NewServer creates a new API server
func NewServer(ingestor Ingestor, messageRepo repo.MessageRepo, contextUC *usecase.ContextBuilderUsecase, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ingestor:    ingestor,
		messageRepo: messageRepo,
		contextUC:   contextUC,
		addr:        addr,
		logger:      logger.With("component", "api"),
	}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Inbound messages from any transport
	mux.HandleFunc("/api/messages", s.handleMessages)

	// Chat inspection
	mux.HandleFunc("/api/chat/", s.handleChat)

	// Tool executor
	mux.HandleFunc("/api/eval", s.handleEval)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ============ Message Handlers ============

// InboundRequest is the body of POST /api/messages
type InboundRequest struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req InboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ChatID == "" || req.UserID == "" {
		http.Error(w, "chat_id and user_id are required", http.StatusBadRequest)
		return
	}
	if req.UserID == domain.BotID {
		http.Error(w, "user_id is reserved", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		req.Username = req.UserID
	}

	seq, err := s.ingestor.OnMessageArrived(r.Context(), domain.Inbound{
		ChatID:   req.ChatID,
		UserID:   req.UserID,
		Username: req.Username,
		Text:     req.Text,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"seq": seq})
}

// ============ Chat Handlers ============

// MessageView is the JSON form of a stored message
type MessageView struct {
	Seq        int64     `json:"seq"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// EntryView is the JSON form of a transcript entry
type EntryView struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/chat/{chat_id}/history or /api/chat/{chat_id}/transcript
	path := strings.TrimPrefix(r.URL.Path, "/api/chat/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	chatID := parts[0]
	switch parts[1] {
	case "history":
		s.handleChatHistory(w, r, chatID)
	case "transcript":
		s.handleChatTranscript(w, r, chatID)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request, chatID string) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages, err := s.messageRepo.Fetch(r.Context(), chatID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, MessageView{
			Seq:        m.Seq,
			AuthorID:   m.AuthorID,
			AuthorName: m.AuthorName,
			Text:       m.Text,
			CreatedAt:  m.CreatedAt,
		})
	}
	s.writeJSON(w, map[string]interface{}{"messages": views})
}

// handleChatTranscript shows what the next pass would send to the reasoning service
func (s *Server) handleChatTranscript(w http.ResponseWriter, r *http.Request, chatID string) {
	key := domain.ConversationKey{ChatID: chatID, UserID: r.URL.Query().Get("user_id")}

	transcript, err := s.contextUC.Build(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]EntryView, 0, len(transcript))
	for _, e := range transcript {
		views = append(views, EntryView{Role: e.Role, Content: e.Content})
	}
	s.writeJSON(w, map[string]interface{}{"entries": views})
}

// ============ Eval Handler ============

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var expression string
	switch r.Method {
	case http.MethodGet:
		expression = r.URL.Query().Get("expression")
	case http.MethodPost:
		var args calc.Arguments
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		expression = args.Expression
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, err := calc.Evaluate(expression)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, calc.Result{Result: v})
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrEvaluation) || errors.Is(err, domain.ErrToolArgument) {
		status = http.StatusBadRequest
	} else {
		s.logger.Error("request failed", "reason", domain.Reason(err), "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
