// Package world holds location metadata and the world clock.
package world

import (
	"fmt"
	"strings"
)

// Location tags used by mechanics and presence resolution.
const (
	TagTavern     = "tavern"
	TagMarket     = "market"
	TagTemple     = "temple"
	TagRoad       = "road"
	TagWilderness = "wilderness"
	TagGarrison   = "garrison"
	TagDocks      = "docks"
)

// Location is a place the party can be.
type Location struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Tags      []string `json:"tags,omitempty"`
	Armed     bool     `json:"armed"` // guards or weapons on open display
	Neighbors []string `json:"neighbors,omitempty"`
}

// HasTag reports whether the location carries tag.
func (l Location) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Matches reports whether a free-text reference names this location.
func (l Location) Matches(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return false
	}
	if ref == strings.ToLower(l.ID) {
		return true
	}
	name := strings.ToLower(l.Name)
	return strings.Contains(name, ref) || strings.Contains(ref, name)
}

// Clone returns a deep copy of l.
func (l Location) Clone() Location {
	l.Tags = append([]string(nil), l.Tags...)
	l.Neighbors = append([]string(nil), l.Neighbors...)
	return l
}

// String implements fmt.Stringer.
func (l Location) String() string {
	return fmt.Sprintf("%s (%s)", l.Name, l.ID)
}
