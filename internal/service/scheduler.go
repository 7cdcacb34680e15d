package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"
	"github.com/butlerbot/relay/internal/biz/usecase"
)

const (
	// DefaultDebounceWindow is the quiet period after the last arrival before a pass
	DefaultDebounceWindow = 3 * time.Second
	// DefaultPassTimeout bounds one generation pass
	DefaultPassTimeout = 2 * time.Minute
)

// ErrSchedulerClosed is returned for arrivals after Close
var ErrSchedulerClosed = errors.New("scheduler closed")

// SchedulerConfig contains scheduler configuration
type SchedulerConfig struct {
	DebounceWindow time.Duration
	PassTimeout    time.Duration
}

// OutcomeFunc observes the outcome of every generation pass
type OutcomeFunc func(key domain.ConversationKey, outcome domain.GenerationOutcome)

// Scheduler decides when a conversation gets a generation pass. Arrivals for one key
// are debounced into a single pass, and passes for one key never overlap.
type Scheduler struct {
	messageRepo  repo.MessageRepo
	deliveryRepo repo.DeliveryRepo
	contextUC    *usecase.ContextBuilderUsecase
	resolverUC   *usecase.ResolverUsecase

	cfg    SchedulerConfig
	slots  *slotRegistry
	logger *slog.Logger

	lifecycle sync.Mutex // Guards closed and wg.Add
	closed    bool
	wg        sync.WaitGroup

	outcomeMu sync.RWMutex
	onOutcome OutcomeFunc
}

// NewScheduler creates a new scheduler
func NewScheduler(
	messageRepo repo.MessageRepo,
	deliveryRepo repo.DeliveryRepo,
	contextUC *usecase.ContextBuilderUsecase,
	resolverUC *usecase.ResolverUsecase,
	cfg SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = DefaultPassTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		messageRepo:  messageRepo,
		deliveryRepo: deliveryRepo,
		contextUC:    contextUC,
		resolverUC:   resolverUC,
		cfg:          cfg,
		slots:        newSlotRegistry(),
		logger:       logger.With("component", "scheduler"),
	}
}

// OnOutcome registers an observer called after every pass, in the pass goroutine
func (s *Scheduler) OnOutcome(fn OutcomeFunc) {
	s.outcomeMu.Lock()
	defer s.outcomeMu.Unlock()
	s.onOutcome = fn
}

// OnMessageArrived stores the message and enrolls its conversation for a pass.
// The message is stored before anything else; a store failure is returned and
// nothing is scheduled.
func (s *Scheduler) OnMessageArrived(ctx context.Context, in domain.Inbound) (int64, error) {
	key := in.Key()
	if !key.Valid() {
		return 0, fmt.Errorf("invalid conversation key %q", key.String())
	}

	s.lifecycle.Lock()
	closed := s.closed
	s.lifecycle.Unlock()
	if closed {
		return 0, ErrSchedulerClosed
	}

	seq, err := s.messageRepo.Append(ctx, in.ChatID, in.UserID, in.Username, in.Text)
	if err != nil {
		if !errors.Is(err, domain.ErrStore) {
			err = fmt.Errorf("%w: %w", domain.ErrStore, err)
		}
		return 0, fmt.Errorf("append message: %w", err)
	}

	slot := s.slots.get(key)
	slot.enroll(seq, s.cfg.DebounceWindow, func() { s.fire(slot) })

	s.logger.Debug("message enrolled", "chat_id", key.ChatID, "user_id", key.UserID, "seq", seq)
	return seq, nil
}

// Close stops pending quiet windows and waits for running passes to finish.
// Messages still inside a quiet window stay stored but get no pass.
func (s *Scheduler) Close() error {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		return nil
	}
	s.closed = true
	s.lifecycle.Unlock()

	dropped := 0
	for _, slot := range s.slots.all() {
		dropped += slot.stop()
	}
	s.wg.Wait()

	s.logger.Info("scheduler stopped", "conversations", s.slots.size(), "unscheduled_messages", dropped)
	return nil
}

// fire runs when a quiet window expires
func (s *Scheduler) fire(slot *conversationSlot) {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		return
	}
	s.wg.Add(1)
	s.lifecycle.Unlock()
	defer s.wg.Done()

	s.flush(slot)
}

// flush waits for the slot, then runs a pass over everything that arrived so far.
// An empty batch means an earlier pass already covered these arrivals.
func (s *Scheduler) flush(slot *conversationSlot) {
	slot.acquire()
	defer slot.release()

	batch := slot.drain()
	if len(batch) == 0 {
		s.logger.Debug("arrivals coalesced into previous pass", "chat_id", slot.key.ChatID, "user_id", slot.key.UserID)
		return
	}

	s.runPass(slot.key, batch)
}

func (s *Scheduler) runPass(key domain.ConversationKey, batch []int64) {
	logger := s.logger.With("pass_id", uuid.NewString(), "chat_id", key.ChatID, "user_id", key.UserID)
	start := time.Now()

	var outcome domain.GenerationOutcome
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pass panicked", "panic", r)
			outcome = domain.Failed(fmt.Errorf("pass panicked: %v", r))
		}
		s.notify(key, outcome)
	}()

	logger.Debug("pass started", "batch", len(batch), "first_seq", batch[0], "last_seq", batch[len(batch)-1])

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PassTimeout)
	defer cancel()

	outcome = s.generate(ctx, key).Suppress()

	switch outcome.Kind {
	case domain.OutcomeFinal:
		if err := s.publish(context.Background(), key, outcome.Text, logger); err != nil {
			outcome = domain.Failed(err)
			logger.Warn("pass failed", "reason", domain.Reason(err), "error", err, "elapsed", time.Since(start))
			return
		}
		logger.Info("pass replied", "chars", len(outcome.Text), "elapsed", time.Since(start))
	case domain.OutcomeSuppressed:
		logger.Debug("pass suppressed", "elapsed", time.Since(start))
	case domain.OutcomeFailed:
		logger.Warn("pass failed", "reason", domain.Reason(outcome.Err), "error", outcome.Err, "elapsed", time.Since(start))
	}
}

// generate assembles the transcript and resolves it under the pass deadline
func (s *Scheduler) generate(ctx context.Context, key domain.ConversationKey) domain.GenerationOutcome {
	transcript, err := s.contextUC.Build(ctx, key)
	if err != nil {
		return domain.Failed(withDeadline(ctx, err))
	}

	outcome := s.resolverUC.Resolve(ctx, key, transcript)
	if outcome.Kind == domain.OutcomeFailed {
		outcome.Err = withDeadline(ctx, outcome.Err)
	}
	return outcome
}

// publish stores the reply as a Bot message, then hands it to the transport.
// Delivery errors are logged only.
func (s *Scheduler) publish(ctx context.Context, key domain.ConversationKey, text string, logger *slog.Logger) error {
	seq, err := s.messageRepo.Append(ctx, key.ChatID, domain.BotID, s.contextUC.BotName(), text)
	if err != nil {
		if !errors.Is(err, domain.ErrStore) {
			err = fmt.Errorf("%w: %w", domain.ErrStore, err)
		}
		return fmt.Errorf("persist reply: %w", err)
	}

	if s.deliveryRepo != nil {
		if err := s.deliveryRepo.Deliver(ctx, key.ChatID, text); err != nil {
			logger.Warn("delivery failed", "seq", seq, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) notify(key domain.ConversationKey, outcome domain.GenerationOutcome) {
	s.outcomeMu.RLock()
	fn := s.onOutcome
	s.outcomeMu.RUnlock()
	if fn != nil {
		fn(key, outcome)
	}
}

// withDeadline marks errors caused by the pass deadline as timeouts
func withDeadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}
