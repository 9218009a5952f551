package textparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// horsepowerRegexp captures "250HP", "300.0HP", "180 HP"
	horsepowerRegexp = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*HP`)
	// litersRegexp captures "3.5L" but not the L of "LITER" or "L4"
	litersRegexp = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*L\b`)
	// cylinderRegexp captures "6 CYL", "8 CYLINDER"
	cylinderRegexp = regexp.MustCompile(`\b([3-9]|10|12)\s*CYL`)
	// vCylinderRegexp captures "V6", "V12"
	vCylinderRegexp = regexp.MustCompile(`\bV(\d{1,2})\b`)
)

// Engine is the structured view of one engine description. Numeric fields
// are NaN when the text carries no matching token; the flags are never
// missing and default to false.
type Engine struct {
	Horsepower float64
	Liters     float64
	Cylinders  float64
	Turbo      bool
	Hybrid     bool
}

// MissingEngine returns an Engine with every numeric field missing.
func MissingEngine() Engine {
	return Engine{
		Horsepower: math.NaN(),
		Liters:     math.NaN(),
		Cylinders:  math.NaN(),
	}
}

// ParseEngine extracts horsepower, displacement, cylinder count and the
// turbo/hybrid flags from a free-text engine description. Each numeric field
// is matched independently. An explicit "<N> CYL" token wins over a "V<N>"
// layout token.
func ParseEngine(text string) Engine {
	e := MissingEngine()
	t := strings.ToUpper(text)
	if t == "" {
		return e
	}

	if v, ok := firstFloat(horsepowerRegexp, t); ok {
		e.Horsepower = v
	}
	if v, ok := firstFloat(litersRegexp, t); ok {
		e.Liters = v
	}
	if v, ok := firstFloat(cylinderRegexp, t); ok {
		e.Cylinders = v
	} else if v, ok := firstFloat(vCylinderRegexp, t); ok {
		e.Cylinders = v
	}

	e.Turbo = strings.Contains(t, "TURBO")
	e.Hybrid = strings.Contains(t, "HYBRID")
	return e
}

// TurboFlag returns 1 when the engine is turbocharged, 0 otherwise.
func (e Engine) TurboFlag() float64 { return flag(e.Turbo) }

// HybridFlag returns 1 when the engine is a hybrid, 0 otherwise.
func (e Engine) HybridFlag() float64 { return flag(e.Hybrid) }

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func firstFloat(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
