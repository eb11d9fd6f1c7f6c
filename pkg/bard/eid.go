// Package bard implements the Bundle Archival Restaging Daemon: the
// quota/usage accounting core, acceptance oracle, and RestageCL
// coordination for a DTN node's in-flight bundle storage.
package bard

import (
	"fmt"
	"strconv"
	"strings"
)

// Scheme identifies the endpoint-ID naming scheme.
type Scheme string

const (
	SchemeIPN Scheme = "ipn"
	SchemeIMC Scheme = "imc"
	SchemeDTN Scheme = "dtn"
)

// ParseScheme validates and normalizes a scheme string.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(s)) {
	case SchemeIPN:
		return SchemeIPN, nil
	case SchemeIMC:
		return SchemeIMC, nil
	case SchemeDTN:
		return SchemeDTN, nil
	default:
		return "", fmt.Errorf("%w: unknown scheme %q", ErrConfiguration, s)
	}
}

// QuotaType identifies whether a record governs traffic keyed by the
// bundle's source or destination endpoint.
type QuotaType string

const (
	QuotaSrc QuotaType = "SRC"
	QuotaDst QuotaType = "DST"
)

// ParseQuotaType validates and normalizes a quota-type string.
func ParseQuotaType(s string) (QuotaType, error) {
	switch QuotaType(strings.ToUpper(s)) {
	case QuotaSrc:
		return QuotaSrc, nil
	case QuotaDst:
		return QuotaDst, nil
	default:
		return "", fmt.Errorf("%w: unknown quota type %q", ErrConfiguration, s)
	}
}

// nodeFieldWidth is the fixed width numeric node identifiers are
// right-justified into when building a canonical key .
const nodeFieldWidth = 20

// CanonicalKey builds the canonical quota/usage map key for a
// (quota-type, scheme, node-identifier) triple:
//
//	<src|dst> "_" <ipn|dtn|imc> "_" <20-char-right-justified node identifier>
//
// Numeric schemes (IPN, IMC) are right-justified with spaces; DTN is
// left-justified. The result is stable and case-sensitive.
func CanonicalKey(qt QuotaType, scheme Scheme, node string) string {
	var field string
	switch scheme {
	case SchemeDTN:
		field = padRight(node, nodeFieldWidth)
	default:
		field = padLeft(node, nodeFieldWidth)
	}
	return string(qt) + "_" + string(scheme) + "_" + field
}

// CanonicalKeyNumeric builds a canonical key from a numeric node number,
// used by the IPN and IMC schemes.
func CanonicalKeyNumeric(qt QuotaType, scheme Scheme, nodeNumber uint64) string {
	return CanonicalKey(qt, scheme, strconv.FormatUint(nodeNumber, 10))
}

// ParsedKey is the decomposition of a canonical key string.
type ParsedKey struct {
	QuotaType QuotaType
	Scheme    Scheme
	Node      string
}

// ParseKey decomposes a canonical key string produced by CanonicalKey.
// ParseKey(CanonicalKey(...)) round-trips field-for-field, and
// CanonicalKey(ParseKey(k)) reproduces k exactly.
func ParseKey(key string) (ParsedKey, error) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 {
		return ParsedKey{}, fmt.Errorf("%w: malformed canonical key %q", ErrConfiguration, key)
	}
	qt, err := ParseQuotaType(parts[0])
	if err != nil {
		return ParsedKey{}, err
	}
	scheme, err := ParseScheme(parts[1])
	if err != nil {
		return ParsedKey{}, err
	}
	node := parts[2]
	if scheme == SchemeDTN {
		node = strings.TrimRight(node, " ")
	} else {
		node = strings.TrimLeft(node, " ")
	}
	return ParsedKey{QuotaType: qt, Scheme: scheme, Node: node}, nil
}

// MakeKey reconstructs the canonical key string for a ParsedKey.
func MakeKey(p ParsedKey) string {
	return CanonicalKey(p.QuotaType, p.Scheme, p.Node)
}

// ParseEndpointID parses a URI-form endpoint ID into its components:
// "ipn:<node>.<service>", "imc:<group>.<service>", or
// "dtn://<authority>/<rest>". For DTN the authority becomes the node
// identifier and everything after it the service component.
func ParseEndpointID(s string) (EndpointID, error) {
	colon := strings.Index(s, ":")
	if colon < 0 {
		return EndpointID{}, fmt.Errorf("%w: malformed endpoint ID %q", ErrConfiguration, s)
	}
	scheme, err := ParseScheme(s[:colon])
	if err != nil {
		return EndpointID{}, err
	}
	ssp := s[colon+1:]

	if scheme == SchemeDTN {
		ssp = strings.TrimPrefix(ssp, "//")
		if ssp == "" {
			return EndpointID{}, fmt.Errorf("%w: empty DTN authority in %q", ErrConfiguration, s)
		}
		if slash := strings.Index(ssp, "/"); slash >= 0 {
			return EndpointID{Scheme: scheme, Node: ssp[:slash], Service: ssp[slash+1:]}, nil
		}
		return EndpointID{Scheme: scheme, Node: ssp}, nil
	}

	dot := strings.LastIndex(ssp, ".")
	if dot < 0 {
		return EndpointID{}, fmt.Errorf("%w: missing service number in %q", ErrConfiguration, s)
	}
	node, service := ssp[:dot], ssp[dot+1:]
	if _, err := strconv.ParseUint(node, 10, 64); err != nil {
		return EndpointID{}, fmt.Errorf("%w: non-numeric node in %q", ErrConfiguration, s)
	}
	if _, err := strconv.ParseUint(service, 10, 64); err != nil {
		return EndpointID{}, fmt.Errorf("%w: non-numeric service in %q", ErrConfiguration, s)
	}
	return EndpointID{Scheme: scheme, Node: node, Service: service}, nil
}

// padLeft pads s to width with leading spaces. Identifiers already at or
// beyond width are left untouched rather than truncated, so CanonicalKey
// never loses information the round-trip depends on.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
