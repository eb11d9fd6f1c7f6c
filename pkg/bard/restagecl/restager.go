package restagecl

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/internal/telemetry"
	"github.com/dtn-bard/bard/pkg/bard"
	"github.com/dtn-bard/bard/pkg/bufpool"
	"github.com/dtn-bard/bard/pkg/metrics"
)

// restageJob is one bundle queued for restaging to external storage.
type restageJob struct {
	bundle *bard.Bundle
	data   []byte
}

// Restager drains a queue of bundles destined for external storage,
// writes each one to the link's storage root under the filename codec,
// and reports completion back to the owning BARD so the
// reserved-external charge can be promoted to in-use-external. Rate
// shaping is applied per write when the link is configured with a
// non-zero rate.
type Restager struct {
	link    *RestageCL
	queue   chan restageJob
	limiter bard.RateLimiter

	mu      sync.Mutex
	paused  bool
	resumeC chan struct{}

	stop chan struct{}
	done chan struct{}
}

func newRestager(link *RestageCL) *Restager {
	r := &Restager{
		link:    link,
		queue:   make(chan restageJob, 256),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		resumeC: make(chan struct{}),
	}
	if link.cfg.RateLimitBps > 0 {
		bitsPerSec := link.cfg.RateLimitBps * 8 // Send drains bits
		r.limiter = bard.NewTokenBucket(bitsPerSec, bitsPerSec)
	}
	return r
}

// Enqueue submits a bundle for restaging. data is the bundle's
// serialized payload (opaque to BARD; bundle-protocol encoding is out
// of scope).
func (r *Restager) Enqueue(b *bard.Bundle, data []byte) {
	select {
	case r.queue <- restageJob{bundle: b, data: data}:
	case <-r.stop:
	}
}

// Run processes the queue until Stop is called. Meant to be launched
// as a goroutine by the daemon's startup sequence.
func (r *Restager) Run() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		case job := <-r.queue:
			r.waitIfPaused()
			if err := r.restageOne(job); err != nil {
				logger.Error("restage failed", "link", r.link.Name(), "error", err)
				metrics.IncRestageError(r.link.metrics, r.link.Name())
			}
		}
	}
}

func (r *Restager) waitIfPaused() {
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

func (r *Restager) pause() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
}

func (r *Restager) resume() {
	r.mu.Lock()
	r.paused = false
	close(r.resumeC)
	r.resumeC = make(chan struct{})
	r.mu.Unlock()
}

// Stop halts the worker loop; safe to call once.
func (r *Restager) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Restager) restageOne(job restageJob) error {
	qt := bard.QuotaDst
	eid := job.bundle.Destination
	if job.bundle.RestageBySrc {
		qt = bard.QuotaSrc
		eid = job.bundle.Source
	}

	ctx, span := telemetry.StartRestageSpan(context.Background(), r.link.Name(),
		bard.CanonicalKey(qt, eid.Scheme, eid.Node))
	defer span.End()

	if r.limiter != nil {
		if err := bard.Send(r.limiter, len(job.data), true); err != nil {
			telemetry.RecordError(ctx, err)
			return err
		}
	}

	desc := bard.DescriptorOf(job.bundle)
	name := bard.FormatFilename(desc, r.link.cfg.Separators)

	dir := filepath.Join(r.link.cfg.StorageRoot,
		bard.DirectoryName(qt, eid.Scheme, eid.Node, r.link.cfg.Separators))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	path := filepath.Join(dir, name)

	// Duplicate detection: a restaged filename is a pure function of
	// the bundle's identity fields, so a pre-existing file at this path
	// means this exact bundle was already restaged (e.g. a retried
	// restage after a crash). The write is skipped, but the reservation
	// this call is settling is treated as though the write had
	// succeeded: the duplicate is the same logical bundle as whatever
	// produced the file on disk, so its external charge is promoted
	// rather than left dangling as a reservation nothing will ever
	// commit.
	if _, err := os.Stat(path); err == nil {
		logger.Info("restage duplicate suppressed", "link", r.link.Name(), "path", path)
		metrics.IncRestageDupe(r.link.metrics, r.link.Name())
		// The existing file already carries the disk charge; only the
		// bundle's reservation is settled.
		r.link.owner.BundleRestaged(job.bundle)
		return nil
	}

	buf := bufpool.Get(len(job.data))
	defer bufpool.Put(buf)
	copy(buf, job.data)

	if err := os.WriteFile(path, buf[:len(job.data)], 0o644); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	usage := r.link.blockRound(uint64(len(job.data)))
	r.link.addDiskUsage(usage)
	metrics.IncRestaged(r.link.metrics, r.link.Name())
	r.link.owner.BundleRestaged(job.bundle)
	return nil
}
