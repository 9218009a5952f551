package textparse

import "strings"

// Transmission classes produced by ClassifyTransmission.
const (
	TransmissionManual    = "manual"
	TransmissionCVT       = "cvt"
	TransmissionAutomatic = "automatic"
)

// ClassifyTransmission maps a transmission description to manual, cvt or
// automatic. Manual is checked before cvt. Text with no recognised keyword is
// classified as automatic; there is no unknown class.
func ClassifyTransmission(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "manual"), strings.Contains(t, "m/t"):
		return TransmissionManual
	case strings.Contains(t, "cvt"):
		return TransmissionCVT
	default:
		return TransmissionAutomatic
	}
}
