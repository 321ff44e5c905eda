// Package platform describes the social networks posts can target and the
// per-network content rules used while drafting and publishing.
package platform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Platform identifies a target social network.
type Platform string

// Supported platforms.
const (
	Twitter  Platform = "twitter"
	LinkedIn Platform = "linkedin"
)

// ErrUnknown is returned when a platform name is not registered.
var ErrUnknown = errors.New("unknown platform")

// Policy holds the content rules for one platform.
type Policy struct {
	Platform    Platform
	DisplayName string
	MaxLength   int
	MaxHashtags int
	// Style is substituted into the drafting prompt.
	Style string
}

var policies = map[Platform]Policy{
	Twitter: {
		Platform:    Twitter,
		DisplayName: "Twitter/X",
		MaxLength:   280,
		MaxHashtags: 3,
		Style:       "concise, punchy, and engaging. Stay under 280 characters",
	},
	LinkedIn: {
		Platform:    LinkedIn,
		DisplayName: "LinkedIn",
		MaxLength:   3000,
		MaxHashtags: 5,
		Style:       "professional, insightful, and value-driven. Use short paragraphs",
	},
}

// Lookup returns the policy for p.
func Lookup(p Platform) (Policy, error) {
	pol, ok := policies[p]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknown, string(p))
	}
	return pol, nil
}

// MustLookup is Lookup for platforms known at compile time.
func MustLookup(p Platform) Policy {
	pol, err := Lookup(p)
	if err != nil {
		panic(err)
	}
	return pol
}

// Parse converts user input (case-insensitive, "x" accepted for Twitter)
// into a Platform.
func Parse(s string) (Platform, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "x" {
		name = string(Twitter)
	}
	p := Platform(name)
	if _, ok := policies[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return p, nil
}

// All returns every registered platform in name order.
func All() []Platform {
	out := make([]Platform, 0, len(policies))
	for p := range policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether p is registered.
func (p Platform) Valid() bool {
	_, ok := policies[p]
	return ok
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// NormalizeHashtags strips '#' and inner whitespace from each tag, drops
// empty and case-insensitive duplicate tags, and keeps at most MaxHashtags
// in order.
func (p Policy) NormalizeHashtags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimLeft(strings.TrimSpace(t), "#")
		t = strings.Join(strings.Fields(t), "")
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if p.MaxHashtags > 0 && len(out) == p.MaxHashtags {
			break
		}
	}
	return out
}
