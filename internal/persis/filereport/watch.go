package filereport

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reports the ID of every report file created or replaced in the
// store's directory until ctx is done. The watch is established before Watch
// returns, so any report written afterwards is seen. An ID can be sent more
// than once; the first send may happen while the file is still empty.
//
// The returned channel is closed when ctx is done or the watch fails.
func (s *Store) Watch(ctx context.Context) (<-chan int64, <-chan error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("filereport: failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return nil, nil, fmt.Errorf("filereport: failed to watch %s: %w", s.dir, err)
	}

	ids := make(chan int64)
	errs := make(chan error, 1)
	go func() {
		defer close(ids)
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				id, ok := s.parseID(filepath.Base(event.Name))
				if !ok {
					continue
				}
				select {
				case ids <- id:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				select {
				case errs <- err:
				default:
				}
				return
			}
		}
	}()
	return ids, errs, nil
}
