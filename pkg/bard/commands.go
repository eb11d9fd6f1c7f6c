package bard

import (
	"fmt"
	"time"
)

// ReloadOptions carries the optional per-command overrides a reload
// request may apply to every bundle it brings back: extending the
// expiration so nearly-expired bundles survive long enough to be
// forwarded, and redirecting the destination when the original
// endpoint is known to be unreachable.
type ReloadOptions struct {
	// NewExpiration, when positive, extends each reloaded bundle's
	// expiration to at least now+NewExpiration.
	NewExpiration time.Duration
	// NewDestEID, when non-empty, replaces each reloaded bundle's
	// destination. Must parse via ParseEndpointID.
	NewDestEID string
}

// RestageCommander is the subset of a RestageCL's surface needed to
// service the administrative command surface: forcing a
// restage, reloading specific or all restaged bundles for a key, and
// deleting restaged files outright.
type RestageCommander interface {
	RestageLink
	ForceRestage(key string) error
	Reload(key string, opts ReloadOptions) error
	DelRestagedBundles(key string) error
}

// ForceRestage resolves the restage link for a key and has that link
// confirm the key. An empty linkName resolves to the key's configured
// restage link. It does not sweep internal storage and moves no
// bundles: bundles reach the link's Restager only when the host
// enqueues them.
func (b *BARD) ForceRestage(key string, linkName string) error {
	b.mu.Lock()
	if linkName == "" {
		if u, ok := b.table.Get(key); ok {
			linkName = u.RestageLinkName
		}
	}
	link, ok := b.restagecls[linkName]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: restage link %q", ErrNotFound, linkName)
	}
	commander, ok := link.(RestageCommander)
	if !ok {
		return fmt.Errorf("bard: link %q does not support force_restage", linkName)
	}
	return commander.ForceRestage(key)
}

// Reload requests that the owning link reload every restaged bundle
// for one key.
func (b *BARD) Reload(key string, opts ReloadOptions) error {
	b.mu.Lock()
	u, ok := b.table.Get(key)
	var linkName string
	if ok {
		linkName = u.RestageLinkName
	}
	link, linkOK := b.restagecls[linkName]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: usage record %q", ErrNotFound, key)
	}
	if !linkOK {
		return fmt.Errorf("%w: restage link %q", ErrNotFound, linkName)
	}
	commander, ok := link.(RestageCommander)
	if !ok {
		return fmt.Errorf("bard: link %q does not support reload", linkName)
	}
	return commander.Reload(key, opts)
}

// ReloadAll requests every registered link reload all of its restaged
// bundles.
func (b *BARD) ReloadAll(opts ReloadOptions) []error {
	b.mu.Lock()
	links := make([]RestageCommander, 0, len(b.restagecls))
	for _, link := range b.restagecls {
		if c, ok := link.(RestageCommander); ok {
			links = append(links, c)
		}
	}
	keys := make([]string, 0, len(b.table.usageMap))
	for k := range b.table.usageMap {
		keys = append(keys, k)
	}
	b.mu.Unlock()

	var errs []error
	for _, link := range links {
		for _, key := range keys {
			if err := link.Reload(key, opts); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// DelRestagedBundles deletes every restaged file for one key from its
// owning link's storage root.
func (b *BARD) DelRestagedBundles(key string) error {
	b.mu.Lock()
	u, ok := b.table.Get(key)
	var linkName string
	if ok {
		linkName = u.RestageLinkName
	}
	link, linkOK := b.restagecls[linkName]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: usage record %q", ErrNotFound, key)
	}
	if !linkOK {
		return fmt.Errorf("%w: restage link %q", ErrNotFound, linkName)
	}
	commander, ok := link.(RestageCommander)
	if !ok {
		return fmt.Errorf("bard: link %q does not support del_restaged_bundles", linkName)
	}
	return commander.DelRestagedBundles(key)
}

// DelAllRestagedBundles deletes every restaged file across every
// registered link.
func (b *BARD) DelAllRestagedBundles() []error {
	b.mu.Lock()
	links := make([]RestageCommander, 0, len(b.restagecls))
	for _, link := range b.restagecls {
		if c, ok := link.(RestageCommander); ok {
			links = append(links, c)
		}
	}
	keys := make([]string, 0, len(b.table.usageMap))
	for k := range b.table.usageMap {
		keys = append(keys, k)
	}
	b.mu.Unlock()

	var errs []error
	for _, link := range links {
		for _, key := range keys {
			if err := link.DelRestagedBundles(key); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// DumpRecord is a flattened snapshot of one UsageRecord for the
// operator-facing `dump` command.
type DumpRecord struct {
	Key              string
	QuotaType        QuotaType
	Scheme           Scheme
	Node             string
	HasQuota         bool
	InternalBundles  uint64
	InternalBytes    uint64
	ExternalBundles  uint64
	ExternalBytes    uint64
	InUseInternal    Counters
	InUseExternal    Counters
	ReservedInternal Counters
	ReservedExternal Counters
	RestageLinkName  string
	AutoReload       bool
	RefuseBundle     bool
}

// Dump returns a full flattened snapshot of every usage record, for
// the `dump` command's diagnostic output.
func (b *BARD) Dump() []DumpRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DumpRecord, 0, len(b.table.usageMap))
	for _, u := range b.table.usageMap {
		node := u.NodeName
		out = append(out, DumpRecord{
			Key:              u.Key,
			QuotaType:        u.QuotaType,
			Scheme:           u.Scheme,
			Node:             node,
			HasQuota:         u.HasQuota(),
			InternalBundles:  u.InternalBundles,
			InternalBytes:    u.InternalBytes,
			ExternalBundles:  u.ExternalBundles,
			ExternalBytes:    u.ExternalBytes,
			InUseInternal:    u.InUseInternal,
			InUseExternal:    u.InUseExternal,
			ReservedInternal: u.ReservedInternal,
			ReservedExternal: u.ReservedExternal,
			RestageLinkName:  u.RestageLinkName,
			AutoReload:       u.AutoReload,
			RefuseBundle:     u.RefuseBundle,
		})
	}
	return out
}
