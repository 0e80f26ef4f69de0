package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// WatchForEdits logs a notice whenever path changes on disk. SILC does
// not hot-reload configuration (spec is silent on hot-reload; a restart
// re-reads silc.toml), so this only surfaces that an edit happened
// rather than triggering one — an operator watching daemon.log knows a
// restart is needed to pick it up.
func WatchForEdits(path string, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					logrus.WithField("path", path).Info("configuration file changed; restart daemon to apply")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Warn("config watcher error")
			case <-stop:
				return
			}
		}
	}()
	return nil
}
