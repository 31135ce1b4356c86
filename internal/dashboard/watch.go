package dashboard

import (
	"context"

	"go.uber.org/zap"

	"econglobe.io/explorer/internal/state"
	"econglobe.io/explorer/internal/store"
)

// Watch is a live view of the current user's items.
type Watch struct {
	out    chan []store.SavedItem
	cancel context.CancelFunc
	done   chan struct{}
}

// WatchUserItems follows the session's current user. Each time the user
// changes, the previous user's feed is dropped and the new user's full item
// set is emitted; it is emitted again after every change to that set. A
// signed-out session sees an empty set. Only the latest set is buffered.
func (s *Service) WatchUserItems(ctx context.Context, users *state.Store[*store.User]) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		out:    make(chan []store.SavedItem, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sub := users.Subscribe()
	go s.runWatch(ctx, w, sub)
	return w
}

// C is closed once the watch stops.
func (w *Watch) C() <-chan []store.SavedItem { return w.out }

// Close stops the watch and waits for its goroutine to exit.
func (w *Watch) Close() {
	w.cancel()
	<-w.done
}

func (s *Service) runWatch(ctx context.Context, w *Watch, sub *state.Subscription[*store.User]) {
	defer close(w.done)
	defer close(w.out)
	defer sub.Close()

	var (
		userID   string
		listener Listener
	)
	drop := func() {
		if listener != nil {
			listener.Close()
			listener = nil
		}
	}
	defer drop()

	for {
		var changes <-chan struct{}
		if listener != nil {
			changes = listener.C()
		}

		select {
		case <-ctx.Done():
			return

		case user, ok := <-sub.C():
			if !ok {
				return
			}
			if user == nil {
				drop()
				userID = ""
				w.emit([]store.SavedItem{})
				continue
			}
			if user.ID == userID {
				continue
			}
			drop()
			userID = user.ID
			// Listen before the first read so nothing written in between is lost.
			l, err := s.notifier.Listen(ctx, userID)
			if err != nil {
				s.logger.Warn("dashboard watch without live updates", zap.String("user_id", userID), zap.Error(err))
			} else {
				listener = l
			}
			s.emitItems(ctx, w, userID)

		case _, ok := <-changes:
			if !ok {
				listener = nil
				continue
			}
			s.emitItems(ctx, w, userID)
		}
	}
}

func (s *Service) emitItems(ctx context.Context, w *Watch, userID string) {
	items, err := s.items.ListSavedItemsByUser(ctx, userID)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("dashboard watch reload failed", zap.String("user_id", userID), zap.Error(err))
		}
		return
	}
	w.emit(items)
}

// emit replaces any unread set. Only the watch goroutine sends.
func (w *Watch) emit(items []store.SavedItem) {
	select {
	case <-w.out:
	default:
	}
	w.out <- items
}
