package bard

import "time"

// EndpointID identifies a bundle's source or destination endpoint.
type EndpointID struct {
	Scheme Scheme
	// Node is the scheme-specific node identifier: a decimal node
	// number for IPN/IMC, the authority/SSP string for DTN.
	Node string
	// Service is the service number (IPN/IMC) or the remainder of the
	// DTN SSP after the node authority. Carried for the filename codec
	// but not part of the canonical quota key.
	Service string
}

// Fragment describes a bundle fragment's offset and total ADU length.
// Present only for fragmented bundles.
type Fragment struct {
	Offset uint64
	Length uint64
}

// reservationState tracks the per-side scalars that make
// double-charging provably impossible: a reservation or in-use charge
// is already applied iff its scalar equals the bundle's payload length.
type reservationState struct {
	quotaReserved    uint64
	extQuotaReserved uint64
	inUse            uint64
}

func (r *reservationState) reservedFor(length uint64) bool { return r.quotaReserved == length }
func (r *reservationState) extReservedFor(length uint64) bool {
	return r.extQuotaReserved == length
}
func (r *reservationState) inUseFor(length uint64) bool { return r.inUse == length }

// Bundle is the bundle protocol unit accepted by BARD's acceptance
// oracle. Only the fields
// the quota core needs are modeled; payload bytes and block-level
// fields belong to the bundle protocol codec (out of scope).
type Bundle struct {
	Source      EndpointID
	Destination EndpointID
	CreationTS  time.Time
	SequenceNum uint64
	Fragment    *Fragment
	PayloadLen  uint64
	Expiration  time.Time

	// RestageBySrc records which side (src or dst) triggered a restage
	// decision, so bundle_restaged / restaged_bundle_deleted promote
	// or reverse only the matching side's external reservation.
	RestageBySrc    bool
	RestageLinkName string

	src reservationState
	dst reservationState
}

// chargeLength returns the payload length with a floor: a
// zero-length payload is charged as 1 byte so accounting never stalls
// at zero for an admitted bundle.
func (b *Bundle) chargeLength() uint64 {
	if b.PayloadLen == 0 {
		return 1
	}
	return b.PayloadLen
}

func (b *Bundle) side(qt QuotaType) *reservationState {
	if qt == QuotaSrc {
		return &b.src
	}
	return &b.dst
}

// NewBundle constructs a Bundle with the given endpoints, payload
// length, and expiration, ready to be passed to QueryAcceptBundle.
func NewBundle(src, dst EndpointID, payloadLen uint64, expiration time.Time) *Bundle {
	return &Bundle{
		Source:      src,
		Destination: dst,
		CreationTS:  time.Now(),
		PayloadLen:  payloadLen,
		Expiration:  expiration,
	}
}
