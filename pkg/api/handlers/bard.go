package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dtn-bard/bard/pkg/bard"
)

// BARDHandler exposes the administrative command surface over HTTP: every
// bardctl subcommand is a thin wrapper around one of these methods.
type BARDHandler struct {
	owner *bard.BARD
}

// NewBARDHandler binds the command surface to a running BARD instance.
func NewBARDHandler(owner *bard.BARD) *BARDHandler {
	return &BARDHandler{owner: owner}
}

// addQuotaRequest is the JSON body for POST /api/v1/quotas.
type addQuotaRequest struct {
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

// AddQuota handles POST /api/v1/quotas.
func (h *BARDHandler) AddQuota(w http.ResponseWriter, r *http.Request) {
	var req addQuotaRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	qt, scheme, ok := parseIdentity(w, req.QuotaType, req.Scheme)
	if !ok {
		return
	}
	q := bard.Quota{
		InternalBundles: req.InternalBundles,
		InternalBytes:   req.InternalBytes,
		ExternalBundles: req.ExternalBundles,
		ExternalBytes:   req.ExternalBytes,
		RefuseBundle:    req.RefuseBundle,
		AutoReload:      req.AutoReload,
		RestageLinkName: req.RestageLinkName,
	}
	if err := h.owner.AddQuota(qt, scheme, req.Node, q); err != nil {
		BadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okResponse(nil))
}

// DelQuota handles DELETE /api/v1/quotas/{type}/{scheme}/{node}.
func (h *BARDHandler) DelQuota(w http.ResponseWriter, r *http.Request) {
	qt, scheme, ok := parseIdentity(w, chi.URLParam(r, "type"), chi.URLParam(r, "scheme"))
	if !ok {
		return
	}
	if err := h.owner.DelQuota(qt, scheme, chi.URLParam(r, "node")); err != nil {
		BadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okResponse(nil))
}

// UnlimitedQuota handles POST /api/v1/quotas/{type}/{scheme}/{node}/unlimited
func (h *BARDHandler) UnlimitedQuota(w http.ResponseWriter, r *http.Request) {
	qt, scheme, ok := parseIdentity(w, chi.URLParam(r, "type"), chi.URLParam(r, "scheme"))
	if !ok {
		return
	}
	if err := h.owner.UnlimitedQuota(qt, scheme, chi.URLParam(r, "node")); err != nil {
		BadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okResponse(nil))
}

// Quotas handles GET /api/v1/quotas.
func (h *BARDHandler) Quotas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(h.owner.Quotas()))
}

// Usage handles GET /api/v1/usage.
func (h *BARDHandler) Usage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(h.owner.Usage()))
}

// Dump handles GET /api/v1/dump.
func (h *BARDHandler) Dump(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(h.owner.Dump()))
}

// Rescan handles POST /api/v1/rescan.
func (h *BARDHandler) Rescan(w http.ResponseWriter, r *http.Request) {
	if err := h.owner.Rescan(); err != nil {
		if errors.Is(err, bard.ErrRescanInProgress) {
			Conflict(w, err.Error())
			return
		}
		InternalServerError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okResponse(nil))
}

// ForceRestage handles POST /api/v1/keys/{key}/force_restage?link=NAME
func (h *BARDHandler) ForceRestage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	link := r.URL.Query().Get("link")
	if err := h.owner.ForceRestage(key, link); err != nil {
		if errors.Is(err, bard.ErrNotFound) {
			NotFound(w, err.Error())
			return
		}
		BadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okResponse(nil))
}

// Reload handles POST /api/v1/keys/{key}/reload.
// Optional query parameters: new_expiration_secs extends each reloaded
// bundle's expiration, new_dest_eid redirects it.
func (h *BARDHandler) Reload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	opts, ok := parseReloadOptions(w, r)
	if !ok {
		return
	}
	if err := h.owner.Reload(key, opts); err != nil {
		if errors.Is(err, bard.ErrNotFound) {
			NotFound(w, err.Error())
			return
		}
		BadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okResponse(nil))
}

// ReloadAll handles POST /api/v1/reload_all.
func (h *BARDHandler) ReloadAll(w http.ResponseWriter, r *http.Request) {
	opts, ok := parseReloadOptions(w, r)
	if !ok {
		return
	}
	errs := h.owner.ReloadAll(opts)
	writeJSON(w, http.StatusOK, okResponse(errStrings(errs)))
}

// parseReloadOptions decodes the optional reload overrides from query
// parameters, writing a 400 response on malformed input.
func parseReloadOptions(w http.ResponseWriter, r *http.Request) (bard.ReloadOptions, bool) {
	var opts bard.ReloadOptions
	if s := r.URL.Query().Get("new_expiration_secs"); s != "" {
		secs, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			BadRequest(w, "invalid new_expiration_secs: "+s)
			return opts, false
		}
		opts.NewExpiration = time.Duration(secs) * time.Second
	}
	opts.NewDestEID = r.URL.Query().Get("new_dest_eid")
	return opts, true
}

// DelRestagedBundles handles DELETE /api/v1/keys/{key}/restaged_bundles
func (h *BARDHandler) DelRestagedBundles(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.owner.DelRestagedBundles(key); err != nil {
		if errors.Is(err, bard.ErrNotFound) {
			NotFound(w, err.Error())
			return
		}
		BadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okResponse(nil))
}

// DelAllRestagedBundles handles DELETE /api/v1/restaged_bundles
func (h *BARDHandler) DelAllRestagedBundles(w http.ResponseWriter, r *http.Request) {
	errs := h.owner.DelAllRestagedBundles()
	writeJSON(w, http.StatusOK, okResponse(errStrings(errs)))
}

func errStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

func parseIdentity(w http.ResponseWriter, quotaType, scheme string) (bard.QuotaType, bard.Scheme, bool) {
	qt, err := bard.ParseQuotaType(quotaType)
	if err != nil {
		BadRequest(w, err.Error())
		return "", "", false
	}
	s, err := bard.ParseScheme(scheme)
	if err != nil {
		BadRequest(w, err.Error())
		return "", "", false
	}
	return qt, s, true
}
