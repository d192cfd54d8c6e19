// Package device decides which capture device a recording session should
// use, given the set of devices the host reports and an optional caller
// preference. The decision is pure: enumeration, retries and backoff
// belong to the caller.
package device

import "fmt"

// FallbackReason says why a substitute device was chosen.
type FallbackReason int

const (
	// NoDeviceSelected means the caller expressed no preference.
	NoDeviceSelected FallbackReason = iota
	// PreferredUnavailable means the preferred device was not among the
	// enumerated devices.
	PreferredUnavailable
)

func (r FallbackReason) String() string {
	switch r {
	case NoDeviceSelected:
		return "no device selected"
	case PreferredUnavailable:
		return "preferred device unavailable"
	default:
		return "unknown"
	}
}

// Outcome is the result of a successful acquisition. When Fallback is
// false the preferred device was found and DeviceID echoes it; otherwise
// DeviceID is the substitute and Reason says why one was needed.
type Outcome struct {
	DeviceID string
	Fallback bool
	Reason   FallbackReason
}

// NoDevicesError reports that enumeration returned no devices at all.
// Preferred is retained so the caller can distinguish "no microphone
// connected" from "your selected microphone is gone" in its messaging.
type NoDevicesError struct {
	Preferred string
}

func (e *NoDevicesError) Error() string {
	if e.Preferred != "" {
		return fmt.Sprintf("no recording devices available (preferred device %q cannot be used)", e.Preferred)
	}
	return "no recording devices available"
}

// Acquire picks the device a session should bind to. The substitute on
// the fallback paths is always the first enumerated device; there is no
// similarity ranking and no randomness.
func Acquire(devices []string, preferred string) (Outcome, error) {
	if len(devices) == 0 {
		return Outcome{}, &NoDevicesError{Preferred: preferred}
	}

	if preferred == "" {
		return Outcome{
			DeviceID: devices[0],
			Fallback: true,
			Reason:   NoDeviceSelected,
		}, nil
	}

	for _, id := range devices {
		if id == preferred {
			return Outcome{DeviceID: preferred}, nil
		}
	}

	return Outcome{
		DeviceID: devices[0],
		Fallback: true,
		Reason:   PreferredUnavailable,
	}, nil
}
