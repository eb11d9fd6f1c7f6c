package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for BARD/RestageCL spans. These follow OpenTelemetry
// convention (dotted, lower-case namespaces) scoped to the quota
// accounting and restage/reload control flow.
const (
	AttrCanonicalKey = "bard.key"          // canonical quota/usage key
	AttrQuotaType    = "bard.quota_type"   // SRC or DST
	AttrScheme       = "bard.scheme"       // ipn, imc, dtn
	AttrRestageLink  = "bard.restage_link" // RestageCL name
	AttrPayloadLen   = "bard.payload_len"  // bundle payload length charged
	AttrDiskUsage    = "bard.disk_usage"   // block-rounded on-disk size
	AttrFileCount    = "bard.file_count"   // files touched by a rescan/reload sweep
)

// Span names for the operations worth tracing end-to-end: a rescan's
// 300s safety timeout and a reload sweep's 3-failure quarantine
// threshold are both easier to diagnose from a trace than from logs
// alone.
const (
	SpanRescan       = "bard.rescan"
	SpanRestage      = "restagecl.restage"
	SpanReload       = "restagecl.reload"
	SpanAcceptBundle = "bard.query_accept_bundle"
)

// CanonicalKey returns an attribute for a quota/usage canonical key.
func CanonicalKey(key string) attribute.KeyValue {
	return attribute.String(AttrCanonicalKey, key)
}

// QuotaType returns an attribute for a quota-type (SRC/DST).
func QuotaType(qt string) attribute.KeyValue {
	return attribute.String(AttrQuotaType, qt)
}

// Scheme returns an attribute for an endpoint-ID naming scheme.
func Scheme(scheme string) attribute.KeyValue {
	return attribute.String(AttrScheme, scheme)
}

// RestageLink returns an attribute for a RestageCL link name.
func RestageLink(name string) attribute.KeyValue {
	return attribute.String(AttrRestageLink, name)
}

// PayloadLen returns an attribute for a bundle's charged payload length.
func PayloadLen(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrPayloadLen, int64(n))
}

// DiskUsage returns an attribute for a block-rounded on-disk size.
func DiskUsage(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrDiskUsage, int64(n))
}

// FileCount returns an attribute for the number of files a sweep touched.
func FileCount(n int) attribute.KeyValue {
	return attribute.Int(AttrFileCount, n)
}

// StartRescanSpan starts the root span for one BARD-wide rescan.
func StartRescanSpan(ctx context.Context) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRescan)
}

// StartRestageSpan starts a span for one Restager write.
func StartRestageSpan(ctx context.Context, link, key string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRestage, trace.WithAttributes(RestageLink(link), CanonicalKey(key)))
}

// StartReloadSpan starts a span for one Reloader event.
func StartReloadSpan(ctx context.Context, link, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanReload, trace.WithAttributes(RestageLink(link), attribute.String("bard.path", path)))
}
