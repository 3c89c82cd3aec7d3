package srs

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidArgument is returned when a quality value cannot be interpreted
// as a number at all (e.g. NaN). Out-of-range numbers are clamped instead.
var ErrInvalidArgument = errors.New("srs: invalid argument")

// Quality is a 0-5 self-assessment of recall, 0 being total failure and
// 5 perfect instant recall.
type Quality int

// The answer buttons offered by the game.
const (
	Again Quality = 0
	Hard  Quality = 2
	Good  Quality = 4
	Easy  Quality = 5
)

const (
	MinQuality Quality = 0
	MaxQuality Quality = 5
)

// Buttons lists the qualities the review screen offers, worst first.
var Buttons = []Quality{Again, Hard, Good, Easy}

var qualityByLabel = map[string]Quality{
	"again": Again,
	"hard":  Hard,
	"good":  Good,
	"easy":  Easy,
}

// Clamp forces q into [MinQuality, MaxQuality].
func (q Quality) Clamp() Quality {
	return max(MinQuality, min(MaxQuality, q))
}

// String returns the button label for the four button values and the bare
// number otherwise.
func (q Quality) String() string {
	switch q {
	case Again:
		return "Again"
	case Hard:
		return "Hard"
	case Good:
		return "Good"
	case Easy:
		return "Easy"
	}
	return strconv.Itoa(int(q))
}

// QualityFromFloat converts a JSON-ish number into a Quality. NaN is
// rejected; everything else is rounded and clamped.
func QualityFromFloat(f float64) (Quality, error) {
	switch {
	case math.IsNaN(f):
		return 0, fmt.Errorf("%w: quality is NaN", ErrInvalidArgument)
	case f <= float64(MinQuality):
		return MinQuality, nil
	case f >= float64(MaxQuality):
		return MaxQuality, nil
	}
	return Quality(math.Round(f)), nil
}

// ParseQuality accepts a number ("4", "4.0", "-3") or a button label
// ("good", "Easy"). Labels are case-insensitive.
func ParseQuality(s string) (Quality, error) {
	s = strings.TrimSpace(s)
	if q, ok := qualityByLabel[strings.ToLower(s)]; ok {
		return q, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	// ErrRange comes with ±Inf, which clamps like any other large value.
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: quality %q", ErrInvalidArgument, s)
	}
	return QualityFromFloat(f)
}

// UnmarshalJSON accepts either a number or a label string.
func (q *Quality) UnmarshalJSON(data []byte) error {
	s := string(data)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := ParseQuality(s)
	if err != nil {
		return err
	}
	*q = v
	return nil
}
