// Package analytics reconciles offers against period targets and derives
// the achievement, pacing and rollup views built on top of them.
//
// Every function in this package is pure: inputs are never mutated and each
// call allocates its own result, so concurrent report requests share nothing.
package analytics

import (
	"time"

	"github.com/google/uuid"
)

// ExpectedProbabilityCutoff is the probability an open offer must exceed to
// count towards expected achievement. Offers at or below it are ignored.
const ExpectedProbabilityCutoff = 50

// Options carries the context that would otherwise come from process globals.
type Options struct {
	// Location resolves period boundaries and month buckets. Defaults to UTC.
	Location *time.Location
	// Now is the clock used for pacing. Defaults to time.Now.
	Now func() time.Time
	// FallbackZoneID is the home zone assumed for users without one.
	FallbackZoneID *uuid.UUID
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now().In(o.location())
	}
	return o.Now().In(o.location())
}

// HomeZone returns the zone a user reports under
func (o Options) HomeZone(zoneID *uuid.UUID) (uuid.UUID, bool) {
	if zoneID != nil && *zoneID != uuid.Nil {
		return *zoneID, true
	}
	if o.FallbackZoneID != nil {
		return *o.FallbackZoneID, true
	}
	return uuid.Nil, false
}
