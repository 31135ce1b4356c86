package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier fans out "this user's items changed" signals. Signals carry no
// payload; listeners re-read the store.
type Notifier interface {
	Notify(ctx context.Context, userID string) error
	Listen(ctx context.Context, userID string) (Listener, error)
}

// Listener receives coalesced change signals until closed.
type Listener interface {
	C() <-chan struct{}
	Close() error
}

// LocalHub is the in-process Notifier used when no Redis is configured.
type LocalHub struct {
	mu        sync.Mutex
	listeners map[string]map[*localListener]struct{}
}

func NewLocalHub() *LocalHub {
	return &LocalHub{listeners: make(map[string]map[*localListener]struct{})}
}

func (h *LocalHub) Notify(_ context.Context, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for l := range h.listeners[userID] {
		select {
		case l.ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (h *LocalHub) Listen(_ context.Context, userID string) (Listener, error) {
	l := &localListener{hub: h, userID: userID, ch: make(chan struct{}, 1)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listeners[userID] == nil {
		h.listeners[userID] = make(map[*localListener]struct{})
	}
	h.listeners[userID][l] = struct{}{}
	return l, nil
}

func (h *LocalHub) remove(l *localListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.listeners[l.userID]
	if !ok {
		return
	}
	if _, ok := set[l]; !ok {
		return
	}
	delete(set, l)
	if len(set) == 0 {
		delete(h.listeners, l.userID)
	}
	close(l.ch)
}

type localListener struct {
	hub    *LocalHub
	userID string
	ch     chan struct{}
	once   sync.Once
}

func (l *localListener) C() <-chan struct{} { return l.ch }

func (l *localListener) Close() error {
	l.once.Do(func() { l.hub.remove(l) })
	return nil
}

// RedisNotifier publishes changes on econglobe:dashboard:{userID} so every
// server instance sharing the Redis sees them.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, logger: logger}
}

func channelName(userID string) string {
	return "econglobe:dashboard:" + userID
}

func (n *RedisNotifier) Notify(ctx context.Context, userID string) error {
	if err := n.client.Publish(ctx, channelName(userID), "changed").Err(); err != nil {
		return fmt.Errorf("publish dashboard change: %w", err)
	}
	return nil
}

// Listen returns once the subscription is confirmed by the server, so no
// change published after Listen returns is missed.
func (n *RedisNotifier) Listen(ctx context.Context, userID string) (Listener, error) {
	pubsub := n.client.Subscribe(ctx, channelName(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe dashboard changes: %w", err)
	}

	l := &redisListener{
		pubsub: pubsub,
		ch:     make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.forward(pubsub.Channel())
	return l, nil
}

type redisListener struct {
	pubsub *redis.PubSub
	ch     chan struct{}
	done   chan struct{}
	once   sync.Once
	err    error
}

func (l *redisListener) forward(msgs <-chan *redis.Message) {
	defer close(l.done)
	defer close(l.ch)
	for range msgs {
		select {
		case l.ch <- struct{}{}:
		default:
		}
	}
}

func (l *redisListener) C() <-chan struct{} { return l.ch }

func (l *redisListener) Close() error {
	l.once.Do(func() {
		l.err = l.pubsub.Close()
		<-l.done
	})
	return l.err
}
