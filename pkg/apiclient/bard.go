package apiclient

import (
	"net/url"
	"strconv"
)

// AddQuotaRequest is the request body for AddQuota, mirroring
// handlers.addQuotaRequest.
type AddQuotaRequest struct {
	QuotaType       string `json:"quota_type"`
	Scheme          string `json:"scheme"`
	Node            string `json:"node"`
	InternalBundles uint64 `json:"internal_bundles"`
	InternalBytes   uint64 `json:"internal_bytes"`
	ExternalBundles uint64 `json:"external_bundles"`
	ExternalBytes   uint64 `json:"external_bytes"`
	RefuseBundle    bool   `json:"refuse_bundle"`
	AutoReload      bool   `json:"auto_reload"`
	RestageLinkName string `json:"restage_link_name"`
}

// Counters mirrors bard.Counters for client-side decoding.
type Counters struct {
	Bundles uint64 `json:"Bundles"`
	Bytes   uint64 `json:"Bytes"`
}

// DumpRecord mirrors bard.DumpRecord for client-side decoding.
type DumpRecord struct {
	Key              string   `json:"Key"`
	QuotaType        string   `json:"QuotaType"`
	Scheme           string   `json:"Scheme"`
	Node             string   `json:"Node"`
	HasQuota         bool     `json:"HasQuota"`
	InternalBundles  uint64   `json:"InternalBundles"`
	InternalBytes    uint64   `json:"InternalBytes"`
	ExternalBundles  uint64   `json:"ExternalBundles"`
	ExternalBytes    uint64   `json:"ExternalBytes"`
	InUseInternal    Counters `json:"InUseInternal"`
	InUseExternal    Counters `json:"InUseExternal"`
	ReservedInternal Counters `json:"ReservedInternal"`
	ReservedExternal Counters `json:"ReservedExternal"`
	RestageLinkName  string   `json:"RestageLinkName"`
	AutoReload       bool     `json:"AutoReload"`
	RefuseBundle     bool     `json:"RefuseBundle"`
}

// AddQuota calls POST /api/v1/quotas.
func (c *Client) AddQuota(req AddQuotaRequest) error {
	return postAction(c, "/api/v1/quotas", req)
}

// DelQuota calls DELETE /api/v1/quotas/{type}/{scheme}/{node}.
func (c *Client) DelQuota(quotaType, scheme, node string) error {
	return deleteAction(c, resourcePath("/api/v1/quotas/%s/%s/%s",
		quotaType, scheme, url.PathEscape(node)))
}

// UnlimitedQuota calls POST .../unlimited.
func (c *Client) UnlimitedQuota(quotaType, scheme, node string) error {
	return postAction(c, resourcePath("/api/v1/quotas/%s/%s/%s/unlimited",
		quotaType, scheme, url.PathEscape(node)), nil)
}

// Quotas calls GET /api/v1/quotas.
func (c *Client) Quotas() ([]DumpRecord, error) {
	return listResources[DumpRecord](c, "/api/v1/quotas")
}

// Usage calls GET /api/v1/usage.
func (c *Client) Usage() ([]DumpRecord, error) {
	return listResources[DumpRecord](c, "/api/v1/usage")
}

// Dump calls GET /api/v1/dump.
func (c *Client) Dump() ([]DumpRecord, error) {
	return listResources[DumpRecord](c, "/api/v1/dump")
}

// HealthStatus is the readiness payload bardd serves at /health/ready.
type HealthStatus struct {
	Quotas     int    `json:"quotas"`
	Rescanning bool   `json:"rescanning"`
	StartedAt  string `json:"started_at"`
	Uptime     string `json:"uptime"`
}

// Health calls GET /health/ready.
func (c *Client) Health() (*HealthStatus, error) {
	return getResource[HealthStatus](c, "/health/ready")
}

// Rescan calls POST /api/v1/rescan.
func (c *Client) Rescan() error {
	return postAction(c, "/api/v1/rescan", nil)
}

// ReloadOptions mirrors bard.ReloadOptions at the wire level: seconds
// and a raw EID string, both optional.
type ReloadOptions struct {
	NewExpirationSecs uint64
	NewDestEID        string
}

func (o ReloadOptions) query() string {
	v := url.Values{}
	if o.NewExpirationSecs > 0 {
		v.Set("new_expiration_secs", strconv.FormatUint(o.NewExpirationSecs, 10))
	}
	if o.NewDestEID != "" {
		v.Set("new_dest_eid", o.NewDestEID)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// ForceRestage calls POST /api/v1/keys/{key}/force_restage?link=NAME
func (c *Client) ForceRestage(key, link string) error {
	return postAction(c, resourcePath("/api/v1/keys/%s/force_restage?link=%s",
		url.PathEscape(key), url.QueryEscape(link)), nil)
}

// Reload calls POST /api/v1/keys/{key}/reload.
func (c *Client) Reload(key string, opts ReloadOptions) error {
	return postAction(c, resourcePath("/api/v1/keys/%s/reload%s",
		url.PathEscape(key), opts.query()), nil)
}

// ReloadAll calls POST /api/v1/reload_all.
func (c *Client) ReloadAll(opts ReloadOptions) ([]string, error) {
	return postActionResult[[]string](c, "/api/v1/reload_all"+opts.query(), nil)
}

// DelRestagedBundles calls DELETE /api/v1/keys/{key}/restaged_bundles
func (c *Client) DelRestagedBundles(key string) error {
	return deleteAction(c, resourcePath("/api/v1/keys/%s/restaged_bundles", url.PathEscape(key)))
}

// DelAllRestagedBundles calls DELETE /api/v1/restaged_bundles
func (c *Client) DelAllRestagedBundles() ([]string, error) {
	return deleteActionResult[[]string](c, "/api/v1/restaged_bundles")
}
