package bard

// CLState is a RestageCL's position in the state machine:
// UNDEFINED -> ONLINE -> {LOW, HIGH} -> {FULL_QUOTA, FULL_DISK, ERROR} -> SHUTDOWN.
// BARD's acceptance oracle only ever routes to a link in CLStateOnline,
// CLStateLow, or CLStateHigh (collectively "good state");
// the watermark states exist for operator visibility and alerting, not
// for admission control.
type CLState string

const (
	CLStateUndefined CLState = "UNDEFINED"
	CLStateOnline    CLState = "ONLINE"
	CLStateLow       CLState = "LOW"
	CLStateHigh      CLState = "HIGH"
	CLStateFullQuota CLState = "FULL_QUOTA"
	CLStateFullDisk  CLState = "FULL_DISK"
	CLStateError     CLState = "ERROR"
	CLStateShutdown  CLState = "SHUTDOWN"
)

// Good reports whether a link in this state may still accept restaged
// writes (ONLINE or within a watermark band, not a
// terminal/full/error state).
func (s CLState) Good() bool {
	switch s {
	case CLStateOnline, CLStateLow, CLStateHigh:
		return true
	default:
		return false
	}
}
