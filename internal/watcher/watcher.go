package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"

	"github.com/toastate/toastpipe/internal/tlogger"
)

// StartWatcher watches every directory below roots, including directories
// created later, and sends the path of each written, created, removed or
// renamed file. The channel is closed once ctx is done.
func StartWatcher(ctx context.Context, roots []string) (<-chan string, error) {
	wch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "failed to create file watcher")
	}

	for _, root := range roots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			tlogger.Warn("msg", "Watch root does not exist", "path", root)
			continue
		}
		err = addTree(wch, root)
		if err != nil {
			wch.Close()
			return nil, err
		}
	}

	outCh := make(chan string, 100)

	go func() {
		defer close(outCh)
		defer wch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-wch.Events:
				if !ok {
					return
				}
				tlogger.Debug("msg", "event", "op", event.Op.String(), "path", event.Name)

				if event.Op&fsnotify.Create == fsnotify.Create {
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
						if err := addTree(wch, event.Name); err != nil {
							tlogger.Warn("msg", "Failed to watch new folder", "path", event.Name, "err", err)
						}
					}
				}

				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				tlogger.Info("msg", "Detected change", "path", event.Name)
				select {
				case outCh <- event.Name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-wch.Errors:
				if !ok {
					return
				}
				tlogger.Error("msg", "Watcher error", "err", err)
			}
		}
	}()

	return outCh, nil
}

func addTree(wch *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := wch.Add(path); err != nil {
				return eris.Wrapf(err, "failed to watch %s", path)
			}
		}
		return nil
	})
}
