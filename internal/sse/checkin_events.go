package sse

import (
	"context"
	"sync"

	"github.com/hurley87/irl-protocol/internal/models"
)

// CheckInEventEmitter manages SSE connections and fact broadcasting
// for live check-in feeds. Door dashboards subscribe per event; ops
// dashboards subscribe to everything.
type CheckInEventEmitter struct {
	// Per-event clients map - key: eventID, value: slice of client channels
	eventClients     map[uint64][]chan models.CheckInFact
	eventClientMutex sync.RWMutex

	// Firehose clients receiving every event's check-ins
	allClients     []chan models.CheckInFact
	allClientMutex sync.RWMutex
}

func NewCheckInEventEmitter() *CheckInEventEmitter {
	return &CheckInEventEmitter{
		eventClients: make(map[uint64][]chan models.CheckInFact),
	}
}

// SubscribeToEvent adds a client to one event's check-in feed. The
// channel closes when ctx ends.
func (e *CheckInEventEmitter) SubscribeToEvent(ctx context.Context, eventID uint64) chan models.CheckInFact {
	clientChan := make(chan models.CheckInFact, 10)

	e.eventClientMutex.Lock()
	e.eventClients[eventID] = append(e.eventClients[eventID], clientChan)
	e.eventClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeEventClient(eventID, clientChan)
	}()

	return clientChan
}

// SubscribeToAll adds a client to the firehose feed.
func (e *CheckInEventEmitter) SubscribeToAll(ctx context.Context) chan models.CheckInFact {
	clientChan := make(chan models.CheckInFact, 10)

	e.allClientMutex.Lock()
	e.allClients = append(e.allClients, clientChan)
	e.allClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeAllClient(clientChan)
	}()

	return clientChan
}

// EmitCheckIn broadcasts a check-in fact to every subscribed client.
// Sends never block; a client that cannot keep up misses facts rather
// than stalling the door. Sends happen under the read lock so a
// disconnect cannot close a channel mid-broadcast.
func (e *CheckInEventEmitter) EmitCheckIn(fact models.CheckInFact) {
	e.eventClientMutex.RLock()
	for _, clientChan := range e.eventClients[fact.EventID] {
		select {
		case clientChan <- fact:
		default:
			// Channel buffer full, skip this client
		}
	}
	e.eventClientMutex.RUnlock()

	e.allClientMutex.RLock()
	for _, clientChan := range e.allClients {
		select {
		case clientChan <- fact:
		default:
			// Channel buffer full, skip this client
		}
	}
	e.allClientMutex.RUnlock()
}

func (e *CheckInEventEmitter) removeEventClient(eventID uint64, clientChan chan models.CheckInFact) {
	e.eventClientMutex.Lock()
	defer e.eventClientMutex.Unlock()

	clients := e.eventClients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.eventClients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.eventClients[eventID]) == 0 {
		delete(e.eventClients, eventID)
	}
}

func (e *CheckInEventEmitter) removeAllClient(clientChan chan models.CheckInFact) {
	e.allClientMutex.Lock()
	defer e.allClientMutex.Unlock()

	for i, ch := range e.allClients {
		if ch == clientChan {
			e.allClients = append(e.allClients[:i], e.allClients[i+1:]...)
			close(clientChan)
			break
		}
	}
}

// GetEventClientCount returns how many clients watch one event's feed.
func (e *CheckInEventEmitter) GetEventClientCount(eventID uint64) int {
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()
	return len(e.eventClients[eventID])
}

// GetAllClientCount returns how many clients watch the firehose.
func (e *CheckInEventEmitter) GetAllClientCount() int {
	e.allClientMutex.RLock()
	defer e.allClientMutex.RUnlock()
	return len(e.allClients)
}
