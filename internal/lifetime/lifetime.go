// Package lifetime parses lifetime tags such as "1d 12h 30m" and computes
// the instant at which a resource tagged with one expires.
//
// A tag is a succession of "<value><unit>" stanzas. Recognized units are
// y (years), mo (months), d (days), h (hours) and m (minutes). Years and
// months use fixed averages, not calendar arithmetic. Stanzas with an
// unknown unit contribute nothing, and repeated units add up.
package lifetime

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Unit is a recognized lifetime unit token.
type Unit string

const (
	Years   Unit = "y"
	Months  Unit = "mo"
	Days    Unit = "d"
	Hours   Unit = "h"
	Minutes Unit = "m"
)

// minutesPerUnit is the whitelist of units the parser accepts.
var minutesPerUnit = map[Unit]float64{
	Years:   365.25 * 24 * 60,
	Months:  30.44 * 24 * 60,
	Days:    24 * 60,
	Hours:   60,
	Minutes: 1,
}

var stanzaPattern = regexp.MustCompile(`(\d+)\s*([a-zA-Z]+)`)

// maxExpirySeconds bounds the offset Expiry adds so it stays inside int64.
const maxExpirySeconds = 1 << 60

// Stanza is a single recognized "<value><unit>" pair.
type Stanza struct {
	Value int64
	Unit  Unit
}

// Minutes returns the stanza length in minutes.
func (s Stanza) Minutes() float64 {
	return float64(s.Value) * minutesPerUnit[s.Unit]
}

func (s Stanza) String() string {
	return strconv.FormatInt(s.Value, 10) + string(s.Unit)
}

// Spec is the parsed form of a lifetime tag.
type Spec struct {
	// Stanzas holds the recognized stanzas in tag order.
	Stanzas []Stanza
	// Ignored holds the raw text of matched stanzas whose unit is unknown.
	Ignored []string
}

// Parse extracts every stanza from tag. It never fails: text that does not
// match, and stanzas with unknown units, are left out of Stanzas. A value
// too large for int64 saturates at math.MaxInt64.
func Parse(tag string) Spec {
	var spec Spec
	for _, m := range stanzaPattern.FindAllStringSubmatch(tag, -1) {
		unit := Unit(m[2])
		if _, ok := minutesPerUnit[unit]; !ok {
			spec.Ignored = append(spec.Ignored, m[0])
			continue
		}
		value, err := strconv.ParseInt(m[1], 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			value = math.MaxInt64
		} else if err != nil {
			spec.Ignored = append(spec.Ignored, m[0])
			continue
		}
		spec.Stanzas = append(spec.Stanzas, Stanza{Value: value, Unit: unit})
	}
	return spec
}

// Empty reports whether the tag held no recognized stanza. An empty spec
// has a zero length, the same as an explicit "0m".
func (s Spec) Empty() bool {
	return len(s.Stanzas) == 0
}

// Minutes returns the total length of all stanzas in minutes.
func (s Spec) Minutes() float64 {
	var total float64
	for _, st := range s.Stanzas {
		total += st.Minutes()
	}
	return total
}

// Duration converts Minutes to a time.Duration, rounded to the nanosecond.
// Lengths beyond the range of time.Duration (about 292 years) saturate.
func (s Spec) Duration() time.Duration {
	ns := s.Minutes() * float64(time.Minute)
	if ns >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(math.Round(ns))
}

// Expiry returns the instant a resource created at createdAt expires.
// Lengths too long for a time.Duration are added in whole seconds.
func (s Spec) Expiry(createdAt time.Time) time.Time {
	if ns := s.Minutes() * float64(time.Minute); ns < float64(math.MaxInt64) {
		return createdAt.Add(time.Duration(math.Round(ns)))
	}
	secs := int64(math.Min(s.Minutes()*60, maxExpirySeconds))
	return time.Unix(createdAt.Unix()+secs, int64(createdAt.Nanosecond())).In(createdAt.Location())
}

func (s Spec) String() string {
	parts := make([]string, 0, len(s.Stanzas))
	for _, st := range s.Stanzas {
		parts = append(parts, st.String())
	}
	return strings.Join(parts, " ")
}

// ParseMinutes is shorthand for Parse(tag).Minutes().
func ParseMinutes(tag string) float64 {
	return Parse(tag).Minutes()
}

// Expiry parses tag and adds its length to createdAt.
func Expiry(createdAt time.Time, tag string) time.Time {
	return Parse(tag).Expiry(createdAt)
}
