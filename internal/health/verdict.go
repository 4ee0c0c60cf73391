package health

// Verdict is the combined health judgement for one candidate.
type Verdict struct {
	Healthy bool
	Message string
}

// Verdict messages. The table below is exhaustive over the signal
// combinations; new signal sources must extend it explicitly instead of
// relying on a catch-all branch.
const (
	msgReachableTracked   = "Endpoint reachable and tracked by observability"
	msgTrackedOnly        = "Tracked by observability sources"
	msgReachableUntracked = "Endpoint reachable but no observability tracking"
	msgDoubleNegative     = "No observability sources and endpoint unreachable"
	msgNoSources          = "No observability sources configured"
	msgUnreachable        = "Endpoint unreachable"
)

// Synthesize combines the passive tracking signal with the active
// reachability signal into a single verdict. Either signal alone is enough
// for a healthy judgement.
//
// probed says whether a live network probe was actually attempted; for
// candidate types without active probing the reachable value is the tracked
// value inherited by the caller. probeErr is the probe's failure reason, empty
// when the probe succeeded or never ran.
func Synthesize(tracked, reachable, probed bool, probeErr string) Verdict {
	v := Verdict{Healthy: tracked || reachable}
	switch {
	case tracked && reachable:
		v.Message = msgReachableTracked
	case tracked:
		v.Message = msgTrackedOnly
	case reachable:
		v.Message = msgReachableUntracked
	case probed && probeErr != "":
		// Both signals came up empty: nothing tracks the candidate and
		// the endpoint gave no answer at all.
		v.Message = msgDoubleNegative
	case !probed && probeErr != "":
		// A probe was warranted but could not even start (e.g. no
		// application URL); surface its own reason.
		v.Message = probeErr
	case !probed:
		v.Message = msgNoSources
	default:
		// Probed and answered, but with a server error status.
		v.Message = msgUnreachable
	}
	return v
}
