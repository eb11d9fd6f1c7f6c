package restagecl

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/pkg/bard"
)

// keyDir resolves the on-disk directory for a canonical usage key.
func (r *RestageCL) keyDir(key string) (string, error) {
	p, err := bard.ParseKey(key)
	if err != nil {
		return "", err
	}
	name := bard.DirectoryName(p.QuotaType, p.Scheme, p.Node, r.cfg.Separators)
	return filepath.Join(r.cfg.StorageRoot, name), nil
}

// ForceRestage handles the administrative force_restage command by
// confirming that the key parses and maps to a directory on this
// link. It enqueues and moves no files; bundles are restaged only when
// the host enqueues them onto this link's Restager.
func (r *RestageCL) ForceRestage(key string) error {
	_, err := r.keyDir(key)
	return err
}

// Reload walks a key's directory and enqueues every restaged file it
// finds for reload. A bad NewDestEID is rejected up
// front rather than failing per file inside the worker.
func (r *RestageCL) Reload(key string, opts bard.ReloadOptions) error {
	if opts.NewDestEID != "" {
		if _, err := bard.ParseEndpointID(opts.NewDestEID); err != nil {
			return err
		}
	}
	dir, err := r.keyDir(key)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		r.reloader.Enqueue(ReloadEvent{
			Kind:          ReloadEventReload,
			Path:          filepath.Join(dir, e.Name()),
			NewExpiration: opts.NewExpiration,
			NewDestEID:    opts.NewDestEID,
		})
	}
	return nil
}

// DelRestagedBundles deletes every restaged file for one key.
func (r *RestageCL) DelRestagedBundles(key string) error {
	dir, err := r.keyDir(key)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		r.reloader.Enqueue(ReloadEvent{Kind: ReloadEventDelete, Path: filepath.Join(dir, e.Name())})
	}
	return nil
}

// reloadEverything enqueues a reload for every restaged file on this
// link, driven by the link's own auto_reload_interval timer rather than
// BARD's quota-triggered reload path.
func (r *RestageCL) reloadEverything() error {
	return r.walkRestaged(func(path string, _ bard.Descriptor) {
		r.reloader.Enqueue(ReloadEvent{Kind: ReloadEventReload, Path: path})
	})
}

// sweepExpired enqueues a delete for every restaged file whose encoded
// expiration has passed, or that is older than the retention bound.
func (r *RestageCL) sweepExpired(now time.Time) error {
	var maxAge time.Duration
	if r.cfg.DaysRetention > 0 {
		maxAge = time.Duration(r.cfg.DaysRetention) * 24 * time.Hour
	}
	return r.walkRestaged(func(path string, desc bard.Descriptor) {
		expired := desc.Expiration.Before(now)
		if !expired && maxAge > 0 {
			if info, err := os.Stat(path); err == nil && now.Sub(info.ModTime()) > maxAge {
				expired = true
			}
		}
		if expired {
			logger.Info("expiring restaged bundle", "link", r.cfg.Name, "path", path)
			r.reloader.Enqueue(ReloadEvent{Kind: ReloadEventDelete, Path: path})
		}
	})
}

// walkRestaged visits every parseable restaged file under the storage
// root, skipping the quarantine directory.
func (r *RestageCL) walkRestaged(visit func(path string, desc bard.Descriptor)) error {
	entries, err := os.ReadDir(r.cfg.StorageRoot)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "quarantine" {
			continue
		}
		dir := filepath.Join(r.cfg.StorageRoot, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			desc, err := bard.ParseFilename(f.Name(), r.cfg.Separators)
			if err != nil {
				continue
			}
			visit(filepath.Join(dir, f.Name()), desc)
		}
	}
	return nil
}

var (
	_ bard.RestageLink      = (*RestageCL)(nil)
	_ bard.RestageCommander = (*RestageCL)(nil)
)
