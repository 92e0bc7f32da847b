package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

var waitFor = 100 * time.Millisecond

// Watch watches the catalog file at 'path' until the context is cancelled. Each time the file
// is written it is re-parsed and 'onChange' is called with the groups trimmed down to just the
// items whose identifiers were not in the file before. Items are never reported twice, so a
// caller can add whatever it is passed to an append-only catalog.
//
// The parent directory is watched rather than the file because editors often replace a file
// rather than writing it in place. fsnotify can emit several events for one save so events
// are debounced with a timer as in:
//
// https://github.com/fsnotify/fsnotify/blob/main/cmd/fsnotify/dedup.go
func Watch(ctx context.Context, path string, onChange func([]Group)) error {
	path = filepath.Clean(path)
	seen := make(map[string]bool)
	if groups, err := ParseFile(path); err == nil {
		for _, id := range Identifiers(groups) {
			seen[id] = true
		}
	} else {
		log.Warnf("catalog watcher initial parse of %s failed: %s", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	log.Debugf("watching catalog %s", path)

	reload := make(chan struct{}, 1)
	t := time.AfterFunc(time.Hour, func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	})
	t.Stop()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugf("terminating catalog watcher for %s", path)
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("catalog watcher error: %s", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			t.Reset(waitFor)
		case <-reload:
			groups, err := ParseFile(path)
			if err != nil {
				log.Errorf("error re-reading catalog %s: %s", path, err)
				continue
			}
			if added := unseen(groups, seen); len(added) != 0 {
				onChange(added)
			}
		}
	}
}

// unseen returns groups holding only the items not in 'seen', and adds them to 'seen'.
// Items without an identifier can't be tracked and are left out.
func unseen(groups []Group, seen map[string]bool) []Group {
	var added []Group
	for _, g := range groups {
		var items Items
		for _, item := range g.Items {
			if item == nil {
				continue
			}
			d, err := item.descriptor()
			if err != nil || seen[d.Identifier] {
				continue
			}
			seen[d.Identifier] = true
			items = append(items, item)
		}
		if len(items) != 0 {
			added = append(added, Group{Scene: g.Scene, Weight: g.Weight, Items: items})
		}
	}
	return added
}
