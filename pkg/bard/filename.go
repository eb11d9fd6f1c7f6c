package bard

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dtnEpoch is the reference epoch for DTN bundle creation timestamps
// (2000-01-01T00:00:00Z), matching the bundle protocol's "seconds
// since the DTN epoch" convention.
var dtnEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Separators configures the on-disk filename encoding. They
// are fixed for the lifetime of a storage root: changing them after
// files exist would make those files unparseable.
type Separators struct {
	// Field is the separator between descriptor fields. Default "_".
	Field string
	// EID is the separator used inside an endpoint-ID's fields.
	// Default "-".
	EID string
}

// DefaultSeparators returns the default separators.
func DefaultSeparators() Separators {
	return Separators{Field: "_", EID: "-"}
}

// Descriptor is the parsed form of a restaged file's name: enough to
// reconstruct the fields needed to re-inject the bundle on reload
// without touching the bundle protocol codec.
type Descriptor struct {
	Source       EndpointID
	Destination  EndpointID
	CreationTS   time.Time
	CreationMS   bool // true if the timestamp was encoded in milliseconds
	SequenceNum  uint64
	Fragment     *Fragment
	PayloadLen   uint64
	Expiration   time.Time
}

func encodeEID(e EndpointID, sep Separators) string {
	node := e.Node
	svc := e.Service
	if svc == "" {
		svc = "0"
	}
	return fmt.Sprintf("%s%s%s%s%s", e.Scheme, sep.EID, node, sep.EID, svc)
}

// decodeEID splits "<scheme>-<node>-<service>". The node component may
// itself contain the EID separator (DTN authority strings commonly
// do), so only the first occurrence (ending the scheme) and the last
// occurrence (starting the service) are treated as delimiters; any
// interior separators are preserved as part of the node.
func decodeEID(s string, sep Separators) (EndpointID, error) {
	first := strings.Index(s, sep.EID)
	last := strings.LastIndex(s, sep.EID)
	if first < 0 || first == last {
		return EndpointID{}, fmt.Errorf("%w: malformed EID field %q", ErrConfiguration, s)
	}
	scheme, err := ParseScheme(s[:first])
	if err != nil {
		return EndpointID{}, err
	}
	node := s[first+len(sep.EID) : last]
	service := s[last+len(sep.EID):]
	return EndpointID{Scheme: scheme, Node: node, Service: service}, nil
}

// FormatFilename encodes a Descriptor into the restaged-file name
// tuple: source EID, destination EID, creation timestamp,
// sequence number, optional fragment, payload length, expiration.
func FormatFilename(d Descriptor, sep Separators) string {
	fields := []string{
		encodeEID(d.Source, sep),
		encodeEID(d.Destination, sep),
		formatTimestamp(d.CreationTS, d.CreationMS),
		strconv.FormatUint(d.SequenceNum, 10),
		formatFragment(d.Fragment),
		strconv.FormatUint(d.PayloadLen, 10),
		formatTimestamp(d.Expiration, d.CreationMS),
	}
	return strings.Join(fields, sep.Field)
}

// ParseFilename is the inverse of FormatFilename, except that an empty
// Service is written as "0" and timestamps keep only the precision
// FormatFilename writes.
func ParseFilename(name string, sep Separators) (Descriptor, error) {
	fields := strings.Split(name, sep.Field)
	if len(fields) != 7 {
		return Descriptor{}, fmt.Errorf("%w: expected 7 fields, got %d in %q", ErrConfiguration, len(fields), name)
	}

	src, err := decodeEID(fields[0], sep)
	if err != nil {
		return Descriptor{}, err
	}
	dst, err := decodeEID(fields[1], sep)
	if err != nil {
		return Descriptor{}, err
	}
	creation, isMS, err := parseTimestamp(fields[2])
	if err != nil {
		return Descriptor{}, err
	}
	seq, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: bad sequence number %q", ErrConfiguration, fields[3])
	}
	frag, err := parseFragment(fields[4])
	if err != nil {
		return Descriptor{}, err
	}
	payloadLen, err := strconv.ParseUint(fields[5], 10, 64)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: bad payload length %q", ErrConfiguration, fields[5])
	}
	expiration, _, err := parseTimestamp(fields[6])
	if err != nil {
		return Descriptor{}, err
	}

	return Descriptor{
		Source:      src,
		Destination: dst,
		CreationTS:  creation,
		CreationMS:  isMS,
		SequenceNum: seq,
		Fragment:    frag,
		PayloadLen:  payloadLen,
		Expiration:  expiration,
	}, nil
}

func formatTimestamp(t time.Time, ms bool) string {
	d := t.Sub(dtnEpoch)
	if ms {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	return strconv.FormatInt(int64(d.Seconds()), 10)
}

func parseTimestamp(s string) (time.Time, bool, error) {
	if strings.HasSuffix(s, "ms") {
		n, err := strconv.ParseInt(strings.TrimSuffix(s, "ms"), 10, 64)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: bad timestamp %q", ErrConfiguration, s)
		}
		return dtnEpoch.Add(time.Duration(n) * time.Millisecond), true, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: bad timestamp %q", ErrConfiguration, s)
	}
	return dtnEpoch.Add(time.Duration(n) * time.Second), false, nil
}

func formatFragment(f *Fragment) string {
	if f == nil {
		return "none"
	}
	return fmt.Sprintf("%d.%d", f.Offset, f.Length)
}

func parseFragment(s string) (*Fragment, error) {
	if s == "none" {
		return nil, nil
	}
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: malformed fragment field %q", ErrConfiguration, s)
	}
	offset, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad fragment offset %q", ErrConfiguration, s)
	}
	length, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad fragment length %q", ErrConfiguration, s)
	}
	return &Fragment{Offset: offset, Length: length}, nil
}

// DescriptorOf projects a Bundle down to its restaged-file Descriptor.
func DescriptorOf(b *Bundle) Descriptor {
	return Descriptor{
		Source:      b.Source,
		Destination: b.Destination,
		CreationTS:  b.CreationTS,
		SequenceNum: b.SequenceNum,
		Fragment:    b.Fragment,
		PayloadLen:  b.chargeLength(),
		Expiration:  b.Expiration,
	}
}

// DirectoryName encodes (quota-type, scheme, node) into the per-key
// subdirectory name RestageCL storage roots use.
func DirectoryName(qt QuotaType, scheme Scheme, node string, sep Separators) string {
	return strings.Join([]string{string(qt), string(scheme), node}, sep.Field)
}

// ParseDirectoryName is the inverse of DirectoryName.
func ParseDirectoryName(dir string, sep Separators) (QuotaType, Scheme, string, error) {
	parts := strings.SplitN(dir, sep.Field, 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: malformed directory name %q", ErrConfiguration, dir)
	}
	qt, err := ParseQuotaType(parts[0])
	if err != nil {
		return "", "", "", err
	}
	scheme, err := ParseScheme(parts[1])
	if err != nil {
		return "", "", "", err
	}
	return qt, scheme, parts[2], nil
}
