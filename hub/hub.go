// Package hub maintains the registry of live subscribers and fans normalized
// snapshots out to all of them.
package hub

import (
	"encoding/json"
	"sync"

	"marketrelay/logger"
)

// Hub is the process-wide subscriber registry. Registration, removal and
// broadcast iteration are all safe under concurrent use; removal is
// idempotent since both the broadcast path and the connection close path may
// race to drop the same subscriber.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	log         *logger.Log
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		log:         logger.GetLogger(),
	}
}

// Register adds a subscriber and returns the resulting registry size.
func (h *Hub) Register(s *Subscriber) int {
	h.mu.Lock()
	h.subscribers[s.ID()] = s
	count := len(h.subscribers)
	h.mu.Unlock()

	logger.IncrementSubscriberAdd()
	h.log.WithComponent("hub").WithFields(logger.Fields{
		"subscriber":  s.ID(),
		"subscribers": count,
	}).Info("subscriber registered")
	return count
}

// Unregister removes a subscriber and closes its connection. Calling it for a
// subscriber that is already gone is a no-op, so the broadcast prune path and
// the connection close path can both trigger it safely.
func (h *Hub) Unregister(s *Subscriber) bool {
	h.mu.Lock()
	_, ok := h.subscribers[s.ID()]
	if ok {
		delete(h.subscribers, s.ID())
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if !ok {
		return false
	}

	s.close()
	logger.IncrementSubscriberGone()
	h.log.WithComponent("hub").WithFields(logger.Fields{
		"subscriber":  s.ID(),
		"subscribers": count,
	}).Info("subscriber removed")
	return true
}

// Count reports the current registry size.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast serializes the payload once and delivers it to every subscriber
// registered at call time. Subscribers whose delivery fails are pruned;
// delivery continues for the rest.
func (h *Hub) Broadcast(v interface{}) {
	log := h.log.WithComponent("hub")

	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("failed to serialize broadcast payload")
		return
	}

	// Stable view of the registry; late registrations miss this message and
	// concurrent removals are tolerated by the idempotent Unregister.
	h.mu.Lock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		if err := s.Send(data); err != nil {
			log.WithError(err).WithFields(logger.Fields{
				"subscriber": s.ID(),
			}).Warn("send failed, dropping subscriber")
			logger.IncrementBroadcastDrop()
			h.Unregister(s)
			continue
		}
		logger.IncrementBroadcastSend()
	}
}
