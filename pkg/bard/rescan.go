package bard

import (
	"context"
	"time"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/internal/telemetry"
)

// Rescan orchestrates a full filesystem rescan across every registered
// RestageCL. At most one rescan may run at a time. The sequence
// runs in order: pause every link's restager/reloader workers,
// snapshot each key's external in-use counters into LastInUseExternal
// so the acceptance oracle has a stable denominator while links
// re-enumerate their storage roots, then resume every link. A 300s
// safety timeout prevents a stuck link from wedging the daemon
// permanently in rescanning state.
func (b *BARD) Rescan() error {
	ctx, span := telemetry.StartRescanSpan(context.Background())
	defer span.End()

	b.mu.Lock()
	if b.rescanning {
		b.mu.Unlock()
		return ErrRescanInProgress
	}
	links := make([]RestageLink, 0, len(b.restagecls))
	for _, link := range b.restagecls {
		links = append(links, link)
	}
	// The oracle reads the snapshot as soon as rescanning is set.
	for _, u := range b.table.usageMap {
		u.LastInUseExternal = u.InUseExternal
	}
	b.rescanning = true
	b.rescanInitiated = time.Now()
	b.expectedRescanResponses = len(links)
	b.rescanResponses = 0
	b.mu.Unlock()

	for _, link := range links {
		link.PauseForRescan()
	}

	// With every link paused, snapshot external in-use for every key and
	// zero the live value: each link's rescan republishes its own
	// contribution additively, so a key whose files vanished from disk
	// settles at the correct lower count instead of retaining a stale
	// one. The snapshot keeps the acceptance oracle's denominator stable
	// in the meantime.
	b.mu.Lock()
	for _, u := range b.table.usageMap {
		u.LastInUseExternal = u.InUseExternal
		u.InUseExternal = Counters{}
	}
	b.mu.Unlock()

	telemetry.SetAttributes(ctx, telemetry.FileCount(len(links)))

	done := make(chan struct{})
	go func() {
		for _, link := range links {
			if err := link.Rescan(); err != nil {
				logger.Error("rescan failed for link", "link", link.Name(), "error", err)
				telemetry.AddEvent(ctx, "rescan link failed",
					telemetry.RestageLink(link.Name()))
			}
			<-link.RescanCompleted()
			b.mu.Lock()
			b.rescanResponses++
			b.mu.Unlock()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(rescanSafetyTimeout):
		logger.Error("rescan safety timeout exceeded; resuming links anyway",
			"elapsed", rescanSafetyTimeout)
		telemetry.AddEvent(ctx, "rescan safety timeout exceeded")
	}

	for _, link := range links {
		link.ResumeAfterRescan()
	}

	b.mu.Lock()
	b.rescanning = false
	b.mu.Unlock()
	return nil
}

// Rescanning reports whether a rescan is currently in progress, for
// status/health reporting.
func (b *BARD) Rescanning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rescanning
}

// ApplyRescanTotals adds a link's freshly enumerated totals into
// external in-use accounting. Called by a RestageCL once
// it finishes walking its storage root. Rescan zeroed every key's live
// count before fanning out, so summing each link's contribution
// rebuilds the correct totals even when a key is spread across links.
func (b *BARD) ApplyRescanTotals(totals map[string]Counters) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, c := range totals {
		u, ok := b.table.Get(key)
		if !ok {
			p, err := ParseKey(key)
			if err != nil {
				continue
			}
			u = b.table.GetOrCreate(p.QuotaType, p.Scheme, p.Node)
		}
		u.InUseExternal.add(c.Bundles, c.Bytes)
	}
	return nil
}
