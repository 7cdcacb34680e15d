package service

import (
	"sync"
	"time"

	"github.com/butlerbot/relay/internal/biz/domain"
)

// conversationSlot holds the per-key scheduling state.
// pass is the exclusive generation slot: holding its token means a pass is running.
// mu guards pending and timer only and is never held across a pass.
type conversationSlot struct {
	key  domain.ConversationKey
	pass chan struct{}

	mu      sync.Mutex
	pending []int64 // Sequence ids stored since the last pass started
	timer   *time.Timer
}

func newConversationSlot(key domain.ConversationKey) *conversationSlot {
	return &conversationSlot{
		key:  key,
		pass: make(chan struct{}, 1),
	}
}

// acquire blocks until the slot is free. Blocked senders are served in arrival order.
func (s *conversationSlot) acquire() {
	s.pass <- struct{}{}
}

func (s *conversationSlot) release() {
	<-s.pass
}

// enroll records a stored message and restarts the quiet window
func (s *conversationSlot) enroll(seq int64, window time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, seq)
	if s.timer == nil {
		s.timer = time.AfterFunc(window, fire)
		return
	}
	s.timer.Reset(window)
}

// drain takes the pending batch
func (s *conversationSlot) drain() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.pending
	s.pending = nil
	return batch
}

// stop cancels the quiet window and reports how many messages were waiting
func (s *conversationSlot) stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	return len(s.pending)
}

// slotRegistry owns every conversation slot. Slots are created on first use and live
// as long as the registry.
type slotRegistry struct {
	mu    sync.Mutex
	slots map[domain.ConversationKey]*conversationSlot
}

func newSlotRegistry() *slotRegistry {
	return &slotRegistry{slots: make(map[domain.ConversationKey]*conversationSlot)}
}

// get returns the slot for key, creating it if needed
func (r *slotRegistry) get(key domain.ConversationKey) *conversationSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[key]
	if !ok {
		slot = newConversationSlot(key)
		r.slots[key] = slot
	}
	return slot
}

func (r *slotRegistry) all() []*conversationSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*conversationSlot, 0, len(r.slots))
	for _, slot := range r.slots {
		out = append(out, slot)
	}
	return out
}

func (r *slotRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}
