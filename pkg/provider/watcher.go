package provider

import (
	"context"
	"fmt"
	"path/filepath"

	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/rdgmed/pkg/logger"
	"github.com/coolbeans/rdgmed/pkg/metrics"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

// CatalogWatcher reloads the catalog file into a snapshot whenever it
// changes on disk. A catalog that fails to load leaves the previous one in
// place.
type CatalogWatcher struct {
	path     string
	ns       vocab.Namespaces
	snapshot *Snapshot
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewCatalogWatcher creates a watcher for the catalog at path. log and m may
// be nil.
func NewCatalogWatcher(path string, ns vocab.Namespaces, snapshot *Snapshot, log *logger.Logger, m *metrics.Metrics) *CatalogWatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &CatalogWatcher{
		path:     path,
		ns:       ns,
		snapshot: snapshot,
		log:      log.Component("catalog"),
		metrics:  m,
	}
}

// Reload loads the catalog file and installs it.
func (w *CatalogWatcher) Reload() error {
	catalog, err := LoadCatalogFile(w.path, w.ns)
	if w.metrics != nil {
		n := 0
		if catalog != nil {
			n = catalog.Len()
		}
		w.metrics.RecordCatalogReload(n, err)
	}
	if err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("catalog reload failed, keeping previous catalog")
		return err
	}

	w.snapshot.Swap(catalog)
	w.log.Info().Str("path", w.path).Int("offerings", catalog.Len()).Msg("catalog loaded")
	return nil
}

// Run watches the catalog's directory until ctx is done. Editors often
// replace a file instead of writing it, so creates and renames of the
// catalog name trigger a reload too.
func (w *CatalogWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}
	name := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			// errors are logged by Reload
			_ = w.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("catalog watcher error")
		}
	}
}
