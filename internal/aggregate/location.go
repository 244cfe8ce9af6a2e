// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import "github.com/pdiddy/trialscout/pkg/types"

// Filter applies the location policy. With global set, or with no location
// query, records pass through untouched. Otherwise a record passes when each
// of its set fields (city, country) contains the corresponding query field,
// case-insensitively; unset record fields and unset query fields never
// exclude. Records with no location at all always pass.
func Filter(records []types.Record, loc *types.Location, global bool) []types.Record {
	if global || loc == nil || loc.IsZero() {
		return records
	}
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		if r.Place().Matches(*loc) {
			out = append(out, r)
		}
	}
	return out
}
