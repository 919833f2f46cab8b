package broadcast

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

var (
	// ErrHubClosed is returned when subscribing to a hub that has stopped.
	ErrHubClosed = errors.New("broadcast hub closed")
	// ErrSubscriptionLagged ends a subscription whose buffer overflowed.
	ErrSubscriptionLagged = errors.New("subscription lagged behind and was dropped")
)

// DefaultSubscriptionBuffer is the per-subscription event buffer.
const DefaultSubscriptionBuffer = 64

// Hub fans row events out to per-room subscriptions.
type Hub struct {
	subs       map[string]*subscription            // subscriptionID -> subscription
	rooms      map[string]map[string]*subscription // roomID -> subscriptions
	broadcast  chan *roomEvent
	done       chan struct{}
	closed     bool
	bufferSize int
	mu         sync.RWMutex
}

type roomEvent struct {
	roomID string
	event  chat.RowEvent
}

// NewHub creates a new Hub. bufferSize <= 0 uses DefaultSubscriptionBuffer.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriptionBuffer
	}
	return &Hub{
		subs:       make(map[string]*subscription),
		rooms:      make(map[string]map[string]*subscription),
		broadcast:  make(chan *roomEvent, 256),
		done:       make(chan struct{}),
		bufferSize: bufferSize,
	}
}

// Run starts the hub's main loop. It accepts a context for graceful shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[hub] Shutting down...")
			h.closeAll()
			close(h.done)
			return
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// closeAll ends every subscription.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		sub.closeLocked(nil)
	}
	h.subs = make(map[string]*subscription)
	h.rooms = make(map[string]map[string]*subscription)
	h.closed = true
}

func (h *Hub) handleBroadcast(msg *roomEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.rooms[msg.roomID] {
		select {
		case sub.ch <- msg.event:
		default:
			log.Printf("[hub] Subscription %s in room %s lagged, dropping it", sub.id, msg.roomID)
			h.removeLocked(sub, ErrSubscriptionLagged)
		}
	}
}

// Subscribe opens a subscription to roomID.
func (h *Hub) Subscribe(roomID string) (chat.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &subscription{
		id:     uuid.NewString(),
		roomID: roomID,
		ch:     make(chan chat.RowEvent, h.bufferSize),
		hub:    h,
	}
	h.subs[sub.id] = sub
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*subscription)
	}
	h.rooms[roomID][sub.id] = sub
	log.Printf("[hub] Subscription %s opened for room %s", sub.id, roomID)
	return sub, nil
}

// Publish queues ev for every subscription of roomID. It drops the event
// once the hub has stopped.
func (h *Hub) Publish(roomID string, ev chat.RowEvent) {
	select {
	case h.broadcast <- &roomEvent{roomID: roomID, event: ev}:
	case <-h.done:
	}
}

func (h *Hub) removeLocked(sub *subscription, reason error) {
	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	if h.rooms[sub.roomID] != nil {
		delete(h.rooms[sub.roomID], sub.id)
		if len(h.rooms[sub.roomID]) == 0 {
			delete(h.rooms, sub.roomID)
		}
	}
	sub.closeLocked(reason)
}

// SubscriptionCount returns the number of open subscriptions.
func (h *Hub) SubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// RoomSubscriptionCount returns the number of subscriptions to a room.
func (h *Hub) RoomSubscriptionCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// RoomCount returns the number of rooms with at least one subscription.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// subscription is guarded by its hub's mutex.
type subscription struct {
	id     string
	roomID string
	ch     chan chat.RowEvent
	hub    *Hub
	closed bool
	err    error
}

func (s *subscription) Events() <-chan chat.RowEvent {
	return s.ch
}

// Unsubscribe is idempotent. No event is delivered after it returns.
func (s *subscription) Unsubscribe() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s, nil)
	s.closeLocked(nil)
	for range s.ch {
	}
}

func (s *subscription) Err() error {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.err
}

func (s *subscription) closeLocked(reason error) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = reason
	close(s.ch)
}
