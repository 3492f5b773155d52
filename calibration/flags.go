package calibration

import "strings"

// Bit values shared with OpenCV calibration files.
const (
	FlagFixAspectRatio    = 2
	FlagFixPrincipalPoint = 4
	FlagZeroTangentDist   = 8
	FlagFixK4             = 2048
	FlagFixK5             = 4096
)

// Flags are the solver constraints selected in the settings.
type Flags struct {
	FixAspectRatio    bool
	ZeroTangentDist   bool
	FixPrincipalPoint bool
}

// FixK4 is always set; the fourth radial coefficient stays zero.
func (f Flags) FixK4() bool { return true }

// FixK5 is always set; the fifth radial coefficient stays zero.
func (f Flags) FixK5() bool { return true }

// Bits encodes the configured flags the way calibration files record them. The always on
// FixK4 and FixK5 are not included.
func (f Flags) Bits() int {
	bits := 0
	if f.FixAspectRatio {
		bits |= FlagFixAspectRatio
	}
	if f.FixPrincipalPoint {
		bits |= FlagFixPrincipalPoint
	}
	if f.ZeroTangentDist {
		bits |= FlagZeroTangentDist
	}
	return bits
}

// FlagsFromBits is the inverse of Bits.
func FlagsFromBits(bits int) Flags {
	return Flags{
		FixAspectRatio:    bits&FlagFixAspectRatio != 0,
		FixPrincipalPoint: bits&FlagFixPrincipalPoint != 0,
		ZeroTangentDist:   bits&FlagZeroTangentDist != 0,
	}
}

func (f Flags) String() string {
	var parts []string
	if f.FixAspectRatio {
		parts = append(parts, "+fix_aspectRatio")
	}
	if f.FixPrincipalPoint {
		parts = append(parts, "+fix_principal_point")
	}
	if f.ZeroTangentDist {
		parts = append(parts, "+zero_tangent_dist")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
