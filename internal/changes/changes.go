// Package changes compares two snapshots of a thread's mutable properties
// and reports the minimal set of changed fields. Pure, no I/O.
package changes

import (
	"github.com/fragbridge/pkg/models"
)

// Field names reported by Detect.
const (
	FieldTitle = "title"
	FieldTags  = "tags"
)

// Detect returns the names of fields that differ between before and after.
// Title is exact string inequality; tags compare as sets, order-independent.
// Archive and lock state are observable on threads but deliberately not
// compared here.
func Detect(before, after models.ThreadSnapshot) []string {
	var changed []string
	if before.Name != after.Name {
		changed = append(changed, FieldTitle)
	}
	if !sameTagSet(before.Tags, after.Tags) {
		changed = append(changed, FieldTags)
	}
	return changed
}

func sameTagSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, tag := range a {
		seen[tag]++
	}
	for _, tag := range b {
		seen[tag]--
		if seen[tag] < 0 {
			return false
		}
	}
	return true
}
