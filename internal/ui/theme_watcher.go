package ui

import (
	"context"
	"log/slog"
	"sync"

	dark "github.com/thiagokokada/dark-mode-go"
)

// ThemeWatcher follows the OS light/dark setting for the "system" theme.
// Only transitions are forwarded: the OS watcher re-announces the current
// value on some desktops, and re-rendering an unchanged palette is wasted
// work at best and a visible flicker at worst.
type ThemeWatcher struct {
	changes   chan bool // latest-wins: true=dark, false=light
	stop      chan struct{}
	closeOnce sync.Once
}

// NewThemeWatcher starts watching the OS theme. Returns nil when the
// platform has no detectable dark mode; callers treat nil as "no watcher"
// and keep whatever theme the config resolved at startup.
func NewThemeWatcher(parentCtx context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parentCtx)

	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{
		changes: make(chan bool, 1),
		stop:    make(chan struct{}),
	}

	go tw.run(cancel, events, errs)
	return tw
}

func (tw *ThemeWatcher) run(cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()

	// Baseline from the current OS value so a startup re-announcement of
	// the already-active theme is swallowed.
	var last *bool
	if isDark, err := dark.IsDarkMode(); err == nil {
		last = &isDark
	}

	for {
		select {
		case <-tw.stop:
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			if last != nil && *last == isDark {
				continue
			}
			last = &isDark
			tw.publish(isDark)
		case err, ok := <-errs:
			if ok && err != nil {
				uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// publish overwrites any undelivered value so the reader always gets the
// newest state, same discipline as the index manager's build notifications.
func (tw *ThemeWatcher) publish(isDark bool) {
	for {
		select {
		case tw.changes <- isDark:
			return
		default:
			select {
			case <-tw.changes:
			default:
			}
		}
	}
}

// Changes delivers OS theme transitions, newest value only.
func (tw *ThemeWatcher) Changes() <-chan bool {
	return tw.changes
}

// Close stops the watcher. Safe to call multiple times.
func (tw *ThemeWatcher) Close() {
	tw.closeOnce.Do(func() {
		close(tw.stop)
	})
}
