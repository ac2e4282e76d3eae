package config

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Manager holds the currently active Config and watches its backing file
// for changes, publishing only validated reloads. An invalid file on disk
// never replaces a good in-memory config — it's logged and skipped.
type Manager struct {
	path string
	log  zerolog.Logger

	mu       sync.RWMutex
	cfg      Config
	lastHash [32]byte

	subsMu sync.Mutex
	subs   []chan Config
}

// NewManager loads path (or defaults, if empty/missing) and returns a ready
// Manager. Call Watch to start hot-reloading.
func NewManager(path string, log zerolog.Logger) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path, log: log, cfg: cfg, lastHash: hashBytes(nil)}
	return m, nil
}

// Get returns the currently active config.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Subscribe returns a channel that receives successfully validated reloads
// whose content changed. When the buffer is full, one pending value is
// dropped to make room for the newest. The channel is never closed by
// Manager; callers own its lifetime.
func (m *Manager) Subscribe(buffer int) chan Config {
	ch := make(chan Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) publish(cfg Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- cfg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
			}
		}
	}
}

func hashBytes(b []byte) [32]byte { return sha256.Sum256(b) }

// Watch blocks, watching the config file's directory for changes and
// reloading on write/create/rename. It self-heals the underlying fsnotify
// watcher with exponential backoff if it breaks, and returns only when ctx
// is cancelled.
func (m *Manager) Watch(ctx context.Context) error {
	if strings.TrimSpace(m.path) == "" {
		<-ctx.Done()
		return nil
	}
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	const backoffBase = 250 * time.Millisecond
	const backoffMax = 5 * time.Second
	backoff := backoffBase

	var debounceMu sync.Mutex
	var debounce *time.Timer
	reload := func() {
		debounceMu.Lock()
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(200*time.Millisecond, func() {
			cfg, err := Load(m.path)
			if err != nil {
				m.log.Warn().Err(err).Str("path", m.path).Msg("config reload failed, keeping previous config")
				return
			}
			data, _ := yamlOrEmpty(cfg)
			h := hashBytes(data)
			m.mu.Lock()
			unchanged := h == m.lastHash
			m.lastHash = h
			m.cfg = cfg
			m.mu.Unlock()
			if unchanged {
				return
			}
			m.log.Info().Str("path", m.path).Msg("config reloaded")
			m.publish(cfg)
		})
		debounceMu.Unlock()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		w, err := fsnotify.NewWatcher()
		if err != nil {
			backoff = m.waitBackoff(ctx, backoff, backoffMax)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			backoff = m.waitBackoff(ctx, backoff, backoffMax)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		backoff = backoffBase

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					reload()
				}
			case _, ok := <-w.Errors:
				if !ok {
					broken = true
				}
			}
		}
		_ = w.Close()
	}
}

func (m *Manager) waitBackoff(ctx context.Context, backoff, max time.Duration) time.Duration {
	select {
	case <-ctx.Done():
		return backoff
	case <-time.After(backoff):
	}
	next := backoff * 2
	if next > max {
		next = max
	}
	return next
}

// yamlOrEmpty is a tiny seam so hashing the reloaded config doesn't need to
// re-marshal through the yaml package directly at every call site.
func yamlOrEmpty(cfg Config) ([]byte, error) {
	return marshalYAML(cfg)
}
