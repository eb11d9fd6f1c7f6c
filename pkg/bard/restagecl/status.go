// Package restagecl implements one restage communication link: the
// worker pair (Restager, Reloader) that moves bundles between internal
// storage and one external storage root, plus the watermark-driven
// state machine that governs whether the link accepts new restage
// traffic.
package restagecl

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sys/unix"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/pkg/bard"
	"github.com/dtn-bard/bard/pkg/metrics"
)

// Watermark fractions: LOW/HIGH bound the disk-occupancy band
// in which the link is still ONLINE-equivalent but worth alerting on.
const (
	lowWatermark  = 0.25
	highWatermark = 0.75
)

// Config is the static configuration of one RestageCL.
type Config struct {
	Name         string
	StorageRoot  string
	RateLimitBps float64 // 0 disables rate shaping
	Separators   bard.Separators
	PollInterval time.Duration
	Email        EmailConfig

	// PartOfPool marks the link eligible for overflow routed away from
	// an unavailable preferred link.
	PartOfPool bool

	// RequireMountPoint makes CheckMount verify that StorageRoot sits on
	// a different device than its parent directory, i.e. that something
	// is actually mounted there. A storage root that is just a
	// subdirectory of the system disk fails validation and the link goes
	// to ERROR rather than silently filling the wrong filesystem.
	RequireMountPoint bool

	// DiskQuota caps the bytes of restaged data this link may hold,
	// counted in block-rounded disk usage. Zero means bounded only by
	// the volume itself. Hitting the cap moves the link to FULL_QUOTA.
	DiskQuota uint64

	// VolBlockSize is the allocation unit restaged file sizes are
	// rounded up to when charged against DiskQuota. Defaults to 4096.
	VolBlockSize uint64

	// ExpireBundles enables the periodic expiry sweep: restaged files
	// whose encoded expiration has passed, or that have sat on disk
	// longer than DaysRetention (when > 0), are deleted.
	ExpireBundles bool

	// DaysRetention bounds how long a restaged file may sit on disk
	// regardless of its own expiration. Zero means no age bound.
	DaysRetention int

	// AutoReloadInterval, when positive, periodically enqueues a reload
	// of everything on this link, independent of BARD's quota-driven
	// auto-reload trigger.
	AutoReloadInterval time.Duration

	// Inject hands a reloaded bundle's descriptor and serialized bytes
	// to the inbound bundle-protocol path. Nil means no inbound path is
	// wired (the reload still settles accounting and deletes the file).
	Inject func(desc bard.Descriptor, data []byte) error
}

// defaultVolBlockSize is the filesystem allocation unit assumed when a
// link's configuration doesn't name one.
const defaultVolBlockSize = 4096

// RestageCL ties together the state machine, the Restager and Reloader
// workers, and mount-point validation for one external storage root.
type RestageCL struct {
	cfg Config

	mu          sync.RWMutex
	state       bard.CLState
	mountDevice uint64
	diskTotal   uint64
	diskUsed    uint64

	diskQuotaInUse uint64
	diskNumFiles   uint64

	owner   *bard.BARD
	metrics metrics.RestageCLMetrics

	restager *Restager
	reloader *Reloader
	emailer  *Emailer

	paused          bool
	rescanCompleted chan struct{}
	stopPoll        chan struct{}
}

// New constructs a RestageCL bound to the given BARD instance. The
// link starts UNDEFINED until its mount point is validated by
// CheckMount, at startup.
func New(cfg Config, owner *bard.BARD) *RestageCL {
	if cfg.Separators == (bard.Separators{}) {
		cfg.Separators = bard.DefaultSeparators()
	}
	if cfg.VolBlockSize == 0 {
		cfg.VolBlockSize = defaultVolBlockSize
	}
	r := &RestageCL{
		cfg:             cfg,
		state:           bard.CLStateUndefined,
		owner:           owner,
		rescanCompleted: make(chan struct{}, 1),
		stopPoll:        make(chan struct{}),
	}
	r.restager = newRestager(r)
	r.reloader = newReloader(r)
	r.emailer = newEmailer(cfg.Email)
	return r
}

// SetMetrics attaches a metrics sink. Passing nil disables instrumentation.
func (r *RestageCL) SetMetrics(m metrics.RestageCLMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Name returns the link's configured name, satisfying bard.RestageLink.
func (r *RestageCL) Name() string { return r.cfg.Name }

// State returns the link's current state machine position.
func (r *RestageCL) State() bard.CLState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// StorageRoot returns the filesystem path backing this link.
func (r *RestageCL) StorageRoot() string { return r.cfg.StorageRoot }

// PartOfPool reports whether the link accepts overflow routed away from
// an unavailable preferred link, satisfying bard.RestageLink.
func (r *RestageCL) PartOfPool() bool { return r.cfg.PartOfPool }

// CheckMount validates the storage root and, when RequireMountPoint is
// set, verifies it is a distinct mounted filesystem by comparing the
// device number of the storage root against its parent directory: if
// they match, nothing is mounted there and the link goes to ERROR
// rather than silently writing to the wrong device. The device number
// is recorded in mountDevice; the periodic poll calls CheckMount on
// every tick.
func (r *RestageCL) CheckMount() error {
	var st unix.Stat_t
	if err := unix.Stat(r.cfg.StorageRoot, &st); err != nil {
		r.transition(bard.CLStateError)
		return fmt.Errorf("bard: stat storage root %s: %w", r.cfg.StorageRoot, err)
	}

	if r.cfg.RequireMountPoint {
		var parent unix.Stat_t
		if err := unix.Stat(filepath.Dir(r.cfg.StorageRoot), &parent); err != nil {
			r.transition(bard.CLStateError)
			return fmt.Errorf("bard: stat parent of storage root %s: %w", r.cfg.StorageRoot, err)
		}
		if parent.Dev == st.Dev {
			r.transition(bard.CLStateError)
			return fmt.Errorf("bard: storage root %s is not a mount point", r.cfg.StorageRoot)
		}
	}

	r.mu.Lock()
	r.mountDevice = uint64(st.Dev)
	r.mu.Unlock()

	return r.refreshDiskStats()
}

// refreshDiskStats polls disk usage for the storage root and drives
// watermark transitions.
func (r *RestageCL) refreshDiskStats() error {
	usage, err := disk.Usage(r.cfg.StorageRoot)
	if err != nil {
		r.transition(bard.CLStateError)
		return fmt.Errorf("bard: disk usage for %s: %w", r.cfg.StorageRoot, err)
	}

	r.mu.Lock()
	r.diskTotal = usage.Total
	r.diskUsed = usage.Used
	frac := 0.0
	if usage.Total > 0 {
		frac = float64(usage.Used) / float64(usage.Total)
	}
	r.mu.Unlock()

	metrics.SetDiskUsage(r.metrics, r.cfg.Name, usage.Used, usage.Total)

	switch {
	case r.quotaFull():
		r.transition(bard.CLStateFullQuota)
	case frac >= 1.0:
		r.transition(bard.CLStateFullDisk)
	case frac >= highWatermark:
		r.transition(bard.CLStateHigh)
	case frac >= lowWatermark:
		r.transition(bard.CLStateLow)
	default:
		r.transition(bard.CLStateOnline)
	}
	return nil
}

// blockRound rounds n up to the link's allocation unit, matching what
// the filesystem actually charges for the file.
func (r *RestageCL) blockRound(n uint64) uint64 {
	bs := r.cfg.VolBlockSize
	if n == 0 {
		return bs
	}
	return (n + bs - 1) / bs * bs
}

// quotaFull reports whether block-rounded restaged data has reached the
// configured disk quota.
func (r *RestageCL) quotaFull() bool {
	if r.cfg.DiskQuota == 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.diskQuotaInUse >= r.cfg.DiskQuota
}

// addDiskUsage charges one restaged file against the link's quota
// accounting and drives the FULL_QUOTA transition.
func (r *RestageCL) addDiskUsage(usage uint64) {
	r.mu.Lock()
	r.diskQuotaInUse += usage
	r.diskNumFiles++
	full := r.cfg.DiskQuota > 0 && r.diskQuotaInUse >= r.cfg.DiskQuota
	r.mu.Unlock()
	if full {
		r.transition(bard.CLStateFullQuota)
	}
}

// subDiskUsage reverses addDiskUsage for a deleted or reloaded file,
// clamping at zero: rescan may have rebuilt the counters underneath a
// delete that was already in flight. Dropping back under quota returns
// the link to ONLINE via the next watermark evaluation.
func (r *RestageCL) subDiskUsage(usage uint64) {
	r.mu.Lock()
	if r.diskQuotaInUse >= usage {
		r.diskQuotaInUse -= usage
	} else {
		r.diskQuotaInUse = 0
	}
	if r.diskNumFiles > 0 {
		r.diskNumFiles--
	}
	wasFull := r.state == bard.CLStateFullQuota
	stillFull := r.cfg.DiskQuota > 0 && r.diskQuotaInUse >= r.cfg.DiskQuota
	r.mu.Unlock()
	if wasFull && !stillFull {
		if err := r.refreshDiskStats(); err != nil {
			logger.Error("disk stat refresh after quota release failed", "link", r.cfg.Name, "error", err)
		}
	}
}

// setDiskUsageTotals replaces the quota accounting wholesale, used by
// rescan to rebuild from the directory walk.
func (r *RestageCL) setDiskUsageTotals(inUse, numFiles uint64) {
	r.mu.Lock()
	r.diskQuotaInUse = inUse
	r.diskNumFiles = numFiles
	r.mu.Unlock()
}

// QuotaStats returns the link's block-rounded restaged bytes and file
// count for status reporting.
func (r *RestageCL) QuotaStats() (inUse, numFiles uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.diskQuotaInUse, r.diskNumFiles
}

func (r *RestageCL) transition(next bard.CLState) {
	r.mu.Lock()
	prev := r.state
	r.state = next
	r.mu.Unlock()
	if prev != next {
		logger.Info("restagecl state transition", "link", r.cfg.Name, "from", prev, "to", next)
		// A transition into a non-good state fires a one-shot
		// notification; ONLINE/LOW/HIGH are not alert-worthy.
		if !next.Good() {
			r.emailer.Notify(r.cfg.Name, next,
				fmt.Sprintf("restage link %q transitioned from %s to %s", r.cfg.Name, prev, next))
		}
	}
	metrics.SetState(r.metrics, r.cfg.Name, clStateOrdinal(next))
}

// clStateOrdinal maps a CLState onto the gauge value a dashboard can
// alert on without parsing strings.
func clStateOrdinal(s bard.CLState) int {
	switch s {
	case bard.CLStateUndefined:
		return 0
	case bard.CLStateOnline:
		return 1
	case bard.CLStateLow:
		return 2
	case bard.CLStateHigh:
		return 3
	case bard.CLStateFullQuota:
		return 4
	case bard.CLStateFullDisk:
		return 5
	case bard.CLStateError:
		return 6
	case bard.CLStateShutdown:
		return 7
	default:
		return -1
	}
}

// DiskStats returns the last polled total/used bytes for status
// reporting.
func (r *RestageCL) DiskStats() (total, used uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.diskTotal, r.diskUsed
}

// PauseForRescan stops both workers from touching storage, satisfying
// bard.RestageLink.
func (r *RestageCL) PauseForRescan() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
	r.restager.pause()
	r.reloader.pause()
}

// ResumeAfterRescan restarts both workers.
func (r *RestageCL) ResumeAfterRescan() {
	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()
	r.restager.resume()
	r.reloader.resume()
}

// RescanCompleted returns the channel signaled when Rescan finishes.
func (r *RestageCL) RescanCompleted() <-chan struct{} {
	return r.rescanCompleted
}

// Start launches the link's worker goroutines and periodic disk-stat
// polling. The caller owns the lifetime of ctx-less shutdown via Stop.
func (r *RestageCL) Start() {
	go r.restager.Run()
	go r.reloader.Run()
	go r.pollLoop()
}

// Stop halts both workers. Safe to call once per Start.
func (r *RestageCL) Stop() {
	close(r.stopPoll)
	r.restager.Stop()
	r.reloader.Stop()
}

func (r *RestageCL) pollLoop() {
	interval := r.cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var reloadC <-chan time.Time
	if r.cfg.AutoReloadInterval > 0 {
		reloadTicker := time.NewTicker(r.cfg.AutoReloadInterval)
		defer reloadTicker.Stop()
		reloadC = reloadTicker.C
	}

	for {
		select {
		case <-r.stopPoll:
			return
		case <-ticker.C:
			if err := r.CheckMount(); err != nil {
				logger.Error("disk stat poll failed", "link", r.cfg.Name, "error", err)
			}
			if r.cfg.ExpireBundles {
				if err := r.sweepExpired(time.Now()); err != nil {
					logger.Error("expiry sweep failed", "link", r.cfg.Name, "error", err)
				}
			}
		case <-reloadC:
			if err := r.reloadEverything(); err != nil {
				logger.Error("periodic reload failed", "link", r.cfg.Name, "error", err)
			}
		}
	}
}

// Restager exposes the link's restage worker for direct enqueueing by
// the acceptance-oracle call site.
func (r *RestageCL) Restager() *Restager { return r.restager }

// Reloader exposes the link's reload worker, mainly for tests.
func (r *RestageCL) Reloader() *Reloader { return r.reloader }
