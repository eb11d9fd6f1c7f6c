package bard

import (
	"fmt"
	"sync"
	"time"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/pkg/metrics"
)

// reloadPercentThreshold is the committed-percent ceiling below which
// bundle_deleted may trigger an auto-reload.
const reloadPercentThreshold = 20

// reloadReArmPercentThreshold is the committed-percent floor above
// which bundle_accepted re-arms auto-reload by clearing the
// last-reload timestamp.
const reloadReArmPercentThreshold = 40

// minReloadInterval is the minimum spacing between auto-reload
// commands for a single key (at most one reload
// command per 600s per key).
const minReloadInterval = 600 * time.Second

// preferredLinkLogThrottle throttles "preferred link not found" error
// logging to at most once per ten minutes per link name.
const preferredLinkLogThrottle = 10 * time.Minute

// rescanSafetyTimeout is the hard upper bound on a rescan.
const rescanSafetyTimeout = 300 * time.Second

// ReloadIssuer is implemented by whatever owns RestageCL dispatch
// (normally BARD itself routes to the RestageCL registry). Kept as an
// interface seam so tests can observe reload/restage triggers without
// standing up real Restager/Reloader goroutines.
type ReloadIssuer interface {
	IssueReload(linkName string, key string)
}

// Store persists UsageRecord quota fields through the durable store's
// transactional add/update/del protocol. Implemented by
// pkg/durablestore.
type Store interface {
	PutQuota(key string, qt QuotaType, scheme Scheme, node string, q Quota) error
	DeleteQuota(key string) error
	LoadQuotas() (map[string]struct {
		QuotaType QuotaType
		Scheme    Scheme
		Node      string
		Quota     Quota
	}, error)
}

// BARD is the registry of usage records and RestageCLs and the
// acceptance oracle. A single mutex guards both the
// UsageTable and the RestageCL registry for the full duration of any
// compound reservation/accounting operation; it is never held
// across disk I/O.
type BARD struct {
	mu sync.Mutex

	table         *UsageTable
	restagecls    map[string]RestageLink
	store         Store
	separators    Separators

	rescanning             bool
	rescanInitiated        time.Time
	expectedRescanResponses int
	rescanResponses        int

	lastPreferredLinkLog map[string]time.Time

	onReload ReloadIssuer
	metrics  metrics.BARDMetrics
}

// RestageLink is the subset of a RestageCL's surface BARD needs for
// routing decisions and rescan coordination. Kept as an
// interface seam so tests can stand in a link without its workers.
type RestageLink interface {
	Name() string
	State() CLState
	// PartOfPool reports whether the link accepts overflow routed away
	// from an unavailable preferred link.
	PartOfPool() bool
	PauseForRescan()
	ResumeAfterRescan()
	Rescan() error
	RescanCompleted() <-chan struct{}
}

// New constructs an empty BARD instance backed by the given durable
// store (nil is allowed for tests that don't exercise persistence).
func New(store Store) *BARD {
	return &BARD{
		table:                 NewUsageTable(),
		restagecls:            make(map[string]RestageLink),
		store:                 store,
		separators:            DefaultSeparators(),
		lastPreferredLinkLog:  make(map[string]time.Time),
	}
}

// SetReloadIssuer wires the component that dispatches queued reload
// events to RestageCLs (normally the daemon's RestageCL registry).
func (b *BARD) SetReloadIssuer(r ReloadIssuer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReload = r
}

// SetMetrics attaches a metrics sink. Passing nil (the default) disables
// instrumentation with zero overhead.
func (b *BARD) SetMetrics(m metrics.BARDMetrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = m
}

// RegisterRestageCL adds a RestageCL to the registry (created
// when a link registers).
func (b *BARD) RegisterRestageCL(link RestageLink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restagecls[link.Name()] = link
}

// UnregisterRestageCL removes a RestageCL from the registry (removed
// when it unregisters).
func (b *BARD) UnregisterRestageCL(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.restagecls, name)
}

// LoadQuotasFromStore re-materializes quota records from the durable
// store at startup. The store always wins over any
// overlapping startup configuration record.
func (b *BARD) LoadQuotasFromStore() error {
	if b.store == nil {
		return nil
	}
	rows, err := b.store.LoadQuotas()
	if err != nil {
		return fmt.Errorf("bard: loading quotas from store: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, row := range rows {
		row.Quota.InDatastore = true
		b.table.SetQuota(row.QuotaType, row.Scheme, row.Node, row.Quota)
	}
	return nil
}

// AddQuota installs or updates a quota record, persisting it through
// the durable store. It always writes through, replacing any record
// already stored for the key. Store precedence at startup is applied
// by the caller, which skips configured quotas whose key
// LoadQuotasFromStore already loaded.
func (b *BARD) AddQuota(qt QuotaType, scheme Scheme, node string, q Quota) error {
	b.mu.Lock()
	q.InDatastore = true
	u := b.table.SetQuota(qt, scheme, node, q)
	key := u.Key
	b.mu.Unlock()

	metrics.SetQuotaBytes(b.metrics, key, q.InternalBytes, q.ExternalBytes)

	if b.store != nil {
		if err := b.store.PutQuota(key, qt, scheme, node, q); err != nil {
			return fmt.Errorf("bard: persisting quota %s: %w", key, err)
		}
	}
	return nil
}

// DelQuota clears a quota's configured fields; the record remains in
// usageMap for accounting.
func (b *BARD) DelQuota(qt QuotaType, scheme Scheme, node string) error {
	key := CanonicalKey(qt, scheme, node)
	b.mu.Lock()
	ok := b.table.ClearQuota(key)
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no quota for %s", ErrNotFound, key)
	}
	if b.store != nil {
		if err := b.store.DeleteQuota(key); err != nil {
			return fmt.Errorf("bard: deleting quota %s: %w", key, err)
		}
	}
	return nil
}

// UnlimitedQuota sets all limits to zero (unlimited), overriding any
// startup configuration.
func (b *BARD) UnlimitedQuota(qt QuotaType, scheme Scheme, node string) error {
	return b.AddQuota(qt, scheme, node, Quota{})
}

// Usage returns a snapshot of every known UsageRecord's identity and
// accounting fields, for the `usage`/`dump` command surface.
func (b *BARD) Usage() []*UsageRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table.AllUsage()
}

// Quotas returns a snapshot of every configured quota, for the
// `quotas` command surface.
func (b *BARD) Quotas() []*UsageRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table.AllQuotas()
}

// quotaTest evaluates the admission inequality: committed+delta ≤
// quota, only enforced when quota > 0 (0 ⇒ unlimited).
func quotaTest(committed Counters, delta Counters, quota Quota, external bool) bool {
	qBundles, qBytes := quota.InternalBundles, quota.InternalBytes
	if external {
		qBundles, qBytes = quota.ExternalBundles, quota.ExternalBytes
	}
	if qBundles > 0 && committed.Bundles+delta.Bundles > qBundles {
		return false
	}
	if qBytes > 0 && committed.Bytes+delta.Bytes > qBytes {
		return false
	}
	return true
}

// QueryAcceptBundle is the acceptance oracle. It is evaluated
// independently for the destination key and the source key; both must
// return true for the bundle to be admitted.
func (b *BARD) QueryAcceptBundle(bundle *Bundle) bool {
	dstOK := b.queryAcceptSide(bundle, QuotaDst, bundle.Destination)
	srcOK := b.queryAcceptSide(bundle, QuotaSrc, bundle.Source)
	accepted := dstOK && srcOK
	metrics.IncAcceptDecision(b.metrics, accepted)
	return accepted
}

func (b *BARD) queryAcceptSide(bundle *Bundle, qt QuotaType, eid EndpointID) bool {
	length := bundle.chargeLength()
	side := bundle.side(qt)

	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.table.GetOrCreate(qt, eid.Scheme, eid.Node)

	// Regardless of the verdict below, the internal reservation is
	// always placed for this side: the bundle is physically resident in
	// internal storage until it is restaged or deleted, so even a
	// refused bundle must be counted or committed_internal under-reports
	// and the next admission over-admits. The scalar guard makes
	// repeated calls for the same bundle/side charge at most once.
	reserveInternal := func() {
		if side.reservedFor(length) || side.inUseFor(length) {
			return
		}
		u.ReservedInternal.add(1, length)
		side.quotaReserved = length
	}

	if !u.HasQuota() {
		reserveInternal()
		return true
	}

	// On a repeated call this side's own charge is already inside the
	// committed totals; exclude it so the verdict is idempotent rather
	// than counting the bundle against itself.
	committedInternal := u.CommittedInternal()
	if side.reservedFor(length) || side.inUseFor(length) {
		committedInternal.sub(1, length)
	}
	if quotaTest(committedInternal, Counters{1, length}, u.Quota, false) {
		reserveInternal()
		return true
	}

	if u.RefuseBundle {
		reserveInternal()
		return false
	}

	var committedExternal Counters
	if b.rescanning {
		committedExternal = u.LastCommittedExternal()
	} else {
		committedExternal = u.CommittedExternal()
	}
	if side.extReservedFor(length) {
		committedExternal.sub(1, length)
	}

	if !quotaTest(committedExternal, Counters{1, length}, u.Quota, true) {
		reserveInternal()
		return false
	}

	link, linkName, ok := b.findRestageLinkInGoodState(u.RestageLinkName)
	if !ok {
		reserveInternal()
		return false
	}
	_ = link

	reserveInternal()
	if !side.extReservedFor(length) {
		u.ReservedExternal.add(1, length)
		side.extQuotaReserved = length
	}

	bundle.RestageLinkName = linkName
	bundle.RestageBySrc = qt == QuotaSrc

	return true
}

// findRestageLinkInGoodState resolves the link-selection
// policy: prefer the named link when ONLINE, else any ONLINE pool
// member. Must be called with b.mu held.
func (b *BARD) findRestageLinkInGoodState(preferred string) (RestageLink, string, bool) {
	if preferred != "" {
		if link, ok := b.restagecls[preferred]; ok && link.State().Good() {
			return link, preferred, true
		}
		b.logPreferredLinkUnavailable(preferred)
	}
	for name, link := range b.restagecls {
		if link.PartOfPool() && link.State().Good() {
			return link, name, true
		}
	}
	return nil, "", false
}

func (b *BARD) logPreferredLinkUnavailable(name string) {
	last, seen := b.lastPreferredLinkLog[name]
	if seen && time.Since(last) < preferredLinkLogThrottle {
		return
	}
	b.lastPreferredLinkLog[name] = time.Now()
	logger.Error("preferred restage link unavailable", "link", name)
}

// BundleAccepted moves reservations to in-use on both sides.
func (b *BARD) BundleAccepted(bundle *Bundle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commitSide(bundle, QuotaDst, bundle.Destination)
	b.commitSide(bundle, QuotaSrc, bundle.Source)
}

func (b *BARD) commitSide(bundle *Bundle, qt QuotaType, eid EndpointID) {
	length := bundle.chargeLength()
	side := bundle.side(qt)
	if !side.reservedFor(length) {
		return
	}
	u := b.table.GetOrCreate(qt, eid.Scheme, eid.Node)

	u.ReservedInternal.sub(1, length)
	u.InUseInternal.add(1, length)
	side.quotaReserved = 0
	side.inUse = length

	if side.extReservedFor(length) {
		// external reservation stays a reservation until bundle_restaged
		// actually promotes it; nothing to do here.
	}

	committed := u.CommittedInternal()
	if u.InUseExternal.Bundles > 0 || u.InUseExternal.Bytes > 0 {
		if percentOf(committed, u.Quota) >= reloadReArmPercentThreshold {
			u.LastReloadCommandTime = time.Time{}
		}
	}
	metrics.SetCommittedPercent(b.metrics, u.Key,
		percentOf(committed, u.Quota), percentOfExternal(u.CommittedExternal(), u.Quota))
}

// BundleRestaged moves the external reservation into external in-use,
// on the side matching bundle.RestageBySrc only — the other side's
// external reservation (if any) was never promoted.
func (b *BARD) BundleRestaged(bundle *Bundle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	qt := QuotaDst
	eid := bundle.Destination
	if bundle.RestageBySrc {
		qt = QuotaSrc
		eid = bundle.Source
	}
	length := bundle.chargeLength()
	side := bundle.side(qt)
	if !side.extReservedFor(length) {
		return
	}
	u := b.table.GetOrCreate(qt, eid.Scheme, eid.Node)
	u.ReservedExternal.sub(1, length)
	u.InUseExternal.add(1, length)
	// The external charge now lives in in-use, tracked per key rather
	// than per bundle (restaged_bundle_deleted reverses it); clearing
	// the scalar keeps bundle_deleted from unwinding it a second time.
	side.extQuotaReserved = 0
}

// BundleDeleted reverses any live reservation or in-use charge on both
// sides, and may trigger an auto-reload.
func (b *BARD) BundleDeleted(bundle *Bundle) {
	b.mu.Lock()
	triggerKey, triggerLink := "", ""
	needReload := false

	for _, side := range []struct {
		qt  QuotaType
		eid EndpointID
	}{{QuotaDst, bundle.Destination}, {QuotaSrc, bundle.Source}} {
		length := bundle.chargeLength()
		rs := bundle.side(side.qt)
		u := b.table.GetOrCreate(side.qt, side.eid.Scheme, side.eid.Node)

		if rs.reservedFor(length) {
			clamped := u.ReservedInternal.sub(1, length)
			Assert(!clamped, "reserved internal underflow for %s", u.Key)
			rs.quotaReserved = 0
		} else if rs.inUseFor(length) {
			clamped := u.InUseInternal.sub(1, length)
			Assert(!clamped, "in-use internal underflow for %s", u.Key)
			rs.inUse = 0
		}

		if rs.extReservedFor(length) {
			clamped := u.ReservedExternal.sub(1, length)
			Assert(!clamped, "reserved external underflow for %s", u.Key)
			rs.extQuotaReserved = 0
		}

		if u.InUseExternal.Bundles > 0 && u.AutoReload {
			committed := u.CommittedInternal()
			pct := percentOf(committed, u.Quota)
			sinceLast := time.Since(u.LastReloadCommandTime)
			if pct <= reloadPercentThreshold && sinceLast >= minReloadInterval {
				u.LastReloadCommandTime = time.Now()
				needReload = true
				triggerKey = u.Key
				triggerLink = u.RestageLinkName
			}
		}
	}
	onReload := b.onReload
	b.mu.Unlock()

	if needReload && onReload != nil {
		onReload.IssueReload(triggerLink, triggerKey)
	}
}

// RestagedBundleDeleted decrements external in-use for a file deleted
// by a Reloader, expiry sweep, or user command, tolerating counts that
// fell out of sync with a concurrent rescan (clamped at zero, logged
// at info).
func (b *BARD) RestagedBundleDeleted(key string, diskUsage uint64, bundles, bytes uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.table.Get(key)
	if !ok {
		return
	}
	if clamped := u.InUseExternal.sub(bundles, bytes); clamped {
		logger.Info("rescan/reload clamp: external in-use underflow", "key", key)
	}
}

func percentOf(c Counters, q Quota) float64 {
	if q.InternalBundles == 0 && q.InternalBytes == 0 {
		return 0
	}
	var pctBundles, pctBytes float64
	if q.InternalBundles > 0 {
		pctBundles = float64(c.Bundles) / float64(q.InternalBundles) * 100
	}
	if q.InternalBytes > 0 {
		pctBytes = float64(c.Bytes) / float64(q.InternalBytes) * 100
	}
	if pctBundles > pctBytes {
		return pctBundles
	}
	return pctBytes
}

func percentOfExternal(c Counters, q Quota) float64 {
	if q.ExternalBundles == 0 && q.ExternalBytes == 0 {
		return 0
	}
	var pctBundles, pctBytes float64
	if q.ExternalBundles > 0 {
		pctBundles = float64(c.Bundles) / float64(q.ExternalBundles) * 100
	}
	if q.ExternalBytes > 0 {
		pctBytes = float64(c.Bytes) / float64(q.ExternalBytes) * 100
	}
	if pctBundles > pctBytes {
		return pctBundles
	}
	return pctBytes
}

// QueryAcceptReloadBundle checks only internal quota: external
// capacity is irrelevant once a bundle is already resident on disk
// awaiting reload. It is a pure read — no reservation is placed here.
// The reloaded bundle re-enters through the normal inbound path, whose
// own QueryAcceptBundle/BundleAccepted sequence does the charging; a
// reservation placed here would never be promoted or unwound and
// would leak one unit per reloaded file.
func (b *BARD) QueryAcceptReloadBundle(qt QuotaType, scheme Scheme, node string, payloadLen uint64) bool {
	length := payloadLen
	if length == 0 {
		length = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.table.GetOrCreate(qt, scheme, node)
	if !u.HasQuota() {
		return true
	}
	return quotaTest(u.CommittedInternal(), Counters{1, length}, u.Quota, false)
}
