package bard

import "github.com/dtn-bard/bard/internal/logger"

// selfReloadIssuer is the default ReloadIssuer: BARD dispatches its
// own auto-reload trigger back through Reload, which already resolves
// a key's owning link from the usage table (the reload re-arm
// fires this exact path). linkName is accepted to satisfy the
// interface but unused, since Reload looks the link up itself.
type selfReloadIssuer struct {
	b *BARD
}

// NewSelfReloadIssuer returns the ReloadIssuer every BARD should be
// wired with unless a caller needs to intercept reload dispatch (for
// example to batch it): b.SetReloadIssuer(bard.NewSelfReloadIssuer(b)).
func NewSelfReloadIssuer(b *BARD) ReloadIssuer {
	return &selfReloadIssuer{b: b}
}

// IssueReload runs off the goroutine that detected the trigger
// (BundleDeleted), since Reload enqueues reload jobs rather than
// waiting for them to complete, but it still shouldn't run while
// BundleDeleted holds b.mu.
func (s *selfReloadIssuer) IssueReload(linkName, key string) {
	go func() {
		if err := s.b.Reload(key, ReloadOptions{}); err != nil {
			logger.Warn("auto-reload dispatch failed", "key", key, "link", linkName, "error", err)
		}
	}()
}
