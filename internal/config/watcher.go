package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gyara/changeup/internal/logger"
)

// Watcher turns writes to the rule file into debounced reload requests.
// It watches the parent directory so editors that replace the file by
// rename are seen too.
type Watcher struct {
	target   string
	debounce time.Duration
	fs       *fsnotify.Watcher
	requests chan string
}

// NewWatcher starts watching path.
func NewWatcher(path string) (*Watcher, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	target = filepath.Clean(target)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}
	return &Watcher{
		target:   target,
		debounce: 250 * time.Millisecond,
		fs:       fsw,
		requests: make(chan string, 1),
	}, nil
}

// Path is the watched file.
func (w *Watcher) Path() string { return w.target }

// Requests delivers one value per settled burst of changes.
func (w *Watcher) Requests() <-chan string { return w.requests }

// Close stops the underlying watcher; Run returns afterwards.
func (w *Watcher) Close() error { return w.fs.Close() }

// Run forwards change bursts until ctx ends or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	log := logger.WithComponent("config-watcher")
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				// Go 1.23 timers drop a pending tick on Reset.
				timer.Reset(w.debounce)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case w.requests <- "config file updated":
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}
