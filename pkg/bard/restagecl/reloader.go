package restagecl

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/internal/telemetry"
	"github.com/dtn-bard/bard/pkg/bard"
	"github.com/dtn-bard/bard/pkg/metrics"
)

// maxReloadAttempts is the number of consecutive failures a restaged
// file tolerates before it is quarantined rather than retried forever
// (persistent I/O errors are quarantined, not retried
// indefinitely).
const maxReloadAttempts = 3

// ReloadEventKind distinguishes a reload request from a delete
// request in the reload queue.
type ReloadEventKind int

const (
	ReloadEventReload ReloadEventKind = iota
	ReloadEventDelete
)

// ReloadEvent is one unit of work for the Reloader: reload one
// restaged file back into internal storage, or delete it outright
// (e.g. on operator command or expiry). NewExpiration and NewDestEID
// carry the reload command's optional overrides; both are ignored for
// delete events.
type ReloadEvent struct {
	Kind          ReloadEventKind
	Path          string
	NewExpiration time.Duration
	NewDestEID    string
}

// Reloader drains restaged files back into internal storage subject to
// internal-quota admission, or
// deletes them on request. Files that repeatedly fail to reload are
// quarantined under a "quarantine" subdirectory of the storage root so
// they stop being retried without being lost.
type Reloader struct {
	link *RestageCL

	mu       sync.Mutex
	paused   bool
	resumeC  chan struct{}
	attempts map[string]int

	queue chan ReloadEvent
	stop  chan struct{}
	done  chan struct{}
}

func newReloader(link *RestageCL) *Reloader {
	return &Reloader{
		link:     link,
		queue:    make(chan ReloadEvent, 256),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		resumeC:  make(chan struct{}),
		attempts: make(map[string]int),
	}
}

// Enqueue submits a reload or delete event.
func (r *Reloader) Enqueue(ev ReloadEvent) {
	select {
	case r.queue <- ev:
	case <-r.stop:
	}
}

// Run processes the queue until Stop is called.
func (r *Reloader) Run() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		case ev := <-r.queue:
			r.waitIfPaused()
			var err error
			switch ev.Kind {
			case ReloadEventReload:
				err = r.reloadOne(ev)
			case ReloadEventDelete:
				err = r.deleteOne(ev.Path)
			}
			if err != nil {
				logger.Error("reloader event failed", "link", r.link.Name(), "path", ev.Path, "error", err)
				metrics.IncReloadError(r.link.metrics, r.link.Name())
			}
		}
	}
}

func (r *Reloader) waitIfPaused() {
	for {
		r.mu.Lock()
		if !r.paused {
			r.mu.Unlock()
			return
		}
		ch := r.resumeC
		r.mu.Unlock()
		<-ch
	}
}

func (r *Reloader) pause() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
}

func (r *Reloader) resume() {
	r.mu.Lock()
	r.paused = false
	close(r.resumeC)
	r.resumeC = make(chan struct{})
	r.mu.Unlock()
}

// Stop halts the worker loop; safe to call once.
func (r *Reloader) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reloader) reloadOne(ev ReloadEvent) error {
	path := ev.Path
	ctx, span := telemetry.StartReloadSpan(context.Background(), r.link.Name(), path)
	defer span.End()

	name := filepath.Base(path)
	desc, err := bard.ParseFilename(name, r.link.cfg.Separators)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return r.quarantine(path, err)
	}

	dir := filepath.Dir(path)
	qt, scheme, node, err := bard.ParseDirectoryName(filepath.Base(dir), r.link.cfg.Separators)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return r.quarantine(path, err)
	}
	telemetry.SetAttributes(ctx, telemetry.QuotaType(string(qt)), telemetry.Scheme(string(scheme)))

	if !r.link.owner.QueryAcceptReloadBundle(qt, scheme, node, desc.PayloadLen) {
		// internal quota still full; leave the file in place, it will
		// be retried on the next reload sweep.
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return r.recordFailure(path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return r.recordFailure(path, err)
	}

	if ev.NewExpiration > 0 {
		if min := time.Now().Add(ev.NewExpiration); desc.Expiration.Before(min) {
			desc.Expiration = min
		}
	}
	if ev.NewDestEID != "" {
		dest, err := bard.ParseEndpointID(ev.NewDestEID)
		if err != nil {
			telemetry.RecordError(ctx, err)
			return err
		}
		desc.Destination = dest
	}

	if r.link.cfg.Inject != nil {
		if err := r.link.cfg.Inject(desc, data); err != nil {
			telemetry.RecordError(ctx, err)
			return r.recordFailure(path, err)
		}
	}

	if err := os.Remove(path); err != nil {
		telemetry.RecordError(ctx, err)
		return r.recordFailure(path, err)
	}

	r.clearFailures(path)
	usage := r.link.blockRound(uint64(info.Size()))
	r.link.subDiskUsage(usage)
	metrics.IncReloaded(r.link.metrics, r.link.Name())
	key := bard.CanonicalKey(qt, scheme, node)
	r.link.owner.RestagedBundleDeleted(key, usage, 1, uint64(info.Size()))
	return nil
}

func (r *Reloader) deleteOne(path string) error {
	ctx, span := telemetry.StartReloadSpan(context.Background(), r.link.Name(), path)
	defer span.End()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	name := filepath.Base(path)
	dir := filepath.Dir(path)
	qt, scheme, node, parseErr := bard.ParseDirectoryName(filepath.Base(dir), r.link.cfg.Separators)

	if err := os.Remove(path); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	r.clearFailures(path)
	usage := r.link.blockRound(uint64(info.Size()))
	r.link.subDiskUsage(usage)

	if parseErr == nil {
		key := bard.CanonicalKey(qt, scheme, node)
		r.link.owner.RestagedBundleDeleted(key, usage, 1, uint64(info.Size()))
	} else {
		logger.Error("deleted restaged file with unparseable directory", "path", path, "name", name)
	}
	return nil
}

func (r *Reloader) recordFailure(path string, cause error) error {
	r.mu.Lock()
	r.attempts[path]++
	n := r.attempts[path]
	r.mu.Unlock()

	if n >= maxReloadAttempts {
		return r.quarantine(path, cause)
	}
	return cause
}

func (r *Reloader) clearFailures(path string) {
	r.mu.Lock()
	delete(r.attempts, path)
	r.mu.Unlock()
}

func (r *Reloader) quarantine(path string, cause error) error {
	r.mu.Lock()
	delete(r.attempts, path)
	r.mu.Unlock()

	qdir := filepath.Join(r.link.cfg.StorageRoot, "quarantine")
	if err := os.MkdirAll(qdir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(qdir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return err
	}
	metrics.IncQuarantined(r.link.metrics, r.link.Name())
	logger.Error("restaged file quarantined after repeated failures",
		"link", r.link.Name(), "path", path, "cause", cause)
	return nil
}
