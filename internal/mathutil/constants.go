package mathutil

// Decibel conversion constants.
// Amplitude ratios use 20·log10, power ratios 10·log10. The cookbook
// shelving/peaking amplitude A uses gain/40 because it is the square root
// of the amplitude ratio at the band center.
const (
	amplitudeDBFactor = 20.0 // dB = 20·log10(amplitude)
	powerDBFactor     = 10.0 // dB = 10·log10(power)
	cookbookDBFactor  = 40.0 // A = 10^(gain/40)
	decibelBase       = 10.0
)

// Floors used when converting to dB so that silence maps to a finite value.
const (
	// SilenceDB is returned for amplitudes or powers at or below zero.
	SilenceDB = -240.0

	minPower = 1e-24 // 10·log10(1e-24) = -240 dB
)
