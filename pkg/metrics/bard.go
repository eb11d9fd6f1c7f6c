package metrics

// BARDMetrics reports per-key quota/usage accounting state. Implementations
// are optional: a nil BARDMetrics is always safe to call into, so callers
// that don't care about metrics can wire in nil at construction time with
// zero overhead.
type BARDMetrics interface {
	// SetCommittedPercent records the committed-against-quota percentage
	// for one canonical key, separately for internal and external quota
	SetCommittedPercent(key string, internalPct, externalPct float64)

	// SetQuotaBytes records the configured quota for one canonical key.
	SetQuotaBytes(key string, internalBytes, externalBytes uint64)

	// IncAcceptDecision counts one query_accept_bundle outcome, labeled
	// by whether the bundle was accepted.
	IncAcceptDecision(accepted bool)
}

// SetCommittedPercent is a nil-safe wrapper so call sites never need to
// check for a nil BARDMetrics before reporting.
func SetCommittedPercent(m BARDMetrics, key string, internalPct, externalPct float64) {
	if m != nil {
		m.SetCommittedPercent(key, internalPct, externalPct)
	}
}

// SetQuotaBytes is the nil-safe wrapper for BARDMetrics.SetQuotaBytes.
func SetQuotaBytes(m BARDMetrics, key string, internalBytes, externalBytes uint64) {
	if m != nil {
		m.SetQuotaBytes(key, internalBytes, externalBytes)
	}
}

// IncAcceptDecision is the nil-safe wrapper for BARDMetrics.IncAcceptDecision.
func IncAcceptDecision(m BARDMetrics, accepted bool) {
	if m != nil {
		m.IncAcceptDecision(accepted)
	}
}
