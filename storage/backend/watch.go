package backend

import (
	"sync"
)

type watchEntry struct {
	id Subscription
	fn WatchFunc
}

// watcher is the subscription table for one atomic store instance. It
// maps encoded keys, and a global wildcard, to ordered callback lists.
// Each store owns its own watcher; registries are never shared between
// unrelated stores.
type watcher struct {
	mu     sync.Mutex
	nextID Subscription
	keyed  map[string][]watchEntry
	global []watchEntry
}

func newWatcher() *watcher {
	return &watcher{
		nextID: 1,
		keyed:  make(map[string][]watchEntry),
	}
}

func (w *watcher) watchKey(encodedKey []byte, fn WatchFunc) Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	w.keyed[string(encodedKey)] = append(w.keyed[string(encodedKey)], watchEntry{id: id, fn: fn})

	return id
}

func (w *watcher) watchAll(fn WatchFunc) Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	w.global = append(w.global, watchEntry{id: id, fn: fn})

	return id
}

func (w *watcher) unwatch(id Subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for key, entries := range w.keyed {
		if filtered, ok := remove(entries, id); ok {
			if len(filtered) == 0 {
				delete(w.keyed, key)
			} else {
				w.keyed[key] = filtered
			}

			return
		}
	}

	if filtered, ok := remove(w.global, id); ok {
		w.global = filtered
	}
}

// notify delivers event to the key's watchers in registration order,
// then to global watchers in registration order. It must be called
// only after the mutation is transport-confirmed. Callbacks run
// synchronously and sequentially on the calling goroutine with no
// isolation between them.
func (w *watcher) notify(encodedKey []byte, event Event) {
	w.mu.Lock()

	entries := make([]watchEntry, 0, len(w.keyed[string(encodedKey)])+len(w.global))
	entries = append(entries, w.keyed[string(encodedKey)]...)
	entries = append(entries, w.global...)

	w.mu.Unlock()

	for _, entry := range entries {
		entry.fn(event)
	}
}

func remove(entries []watchEntry, id Subscription) ([]watchEntry, bool) {
	for i, entry := range entries {
		if entry.id == id {
			return append(entries[:i:i], entries[i+1:]...), true
		}
	}

	return entries, false
}
