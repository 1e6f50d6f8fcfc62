package audioeq

import (
	"golang.org/x/time/rate"

	"github.com/tphakala/go-audio-eq/internal/apply"
)

// Coordinator defaults.
const (
	DefaultWriteTimeout = apply.DefaultWriteTimeout
	DefaultRefreshRate  = rate.Limit(2) // refreshes per second
	DefaultRefreshBurst = 1
)

// Worker queue sizing.
const (
	requestQueue = 8
)

// RateDAT is the DAT/DVD sample rate, the default processing rate.
const RateDAT = 48000

// selectionKeyPrefix namespaces handle-based selection keys for devices
// that report no UID.
const selectionKeyPrefix = "handle:"
