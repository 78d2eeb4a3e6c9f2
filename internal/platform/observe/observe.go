// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package observe provides the typed subscription hub behind every reactive
// value of the client (session, profile, route, resolved app state).
package observe

import "sync"

// Hub fans a value out to its subscribers.
//
// Publish calls subscribers synchronously, in subscription order, outside the
// hub's lock, so a subscriber may Subscribe or unsubscribe from inside its
// callback. Callers that need publishes to be ordered serialize them.
type Hub[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns its unsubscribe function. Unsubscribing
// twice is harmless.
func (hub *Hub[T]) Subscribe(fn func(T)) func() {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	hub.nextID++
	id := hub.nextID
	hub.subs = append(hub.subs, subscription[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { hub.remove(id) })
	}
}

func (hub *Hub[T]) remove(id uint64) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for i, sub := range hub.subs {
		if sub.id == id {
			hub.subs = append(hub.subs[:i:i], hub.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers value to every current subscriber.
func (hub *Hub[T]) Publish(value T) {
	hub.mu.Lock()
	subs := make([]subscription[T], len(hub.subs))
	copy(subs, hub.subs)
	hub.mu.Unlock()

	for _, sub := range subs {
		sub.fn(value)
	}
}

// Len returns the number of active subscribers.
func (hub *Hub[T]) Len() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.subs)
}
