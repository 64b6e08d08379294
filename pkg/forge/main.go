// Project: Cardano Forge
package forge

import "golang.org/x/exp/constraints"

type (
	// CourseID names a namespace of assets under one policy. Together with
	// the issuer address it parameterizes the store and mint validators.
	CourseID string

	PolicyID string

	// Metadata is the key/value payload stored in a reference token's
	// inline datum. The reserved OwnerKey field is managed by the builder
	// and may not be supplied by callers.
	Metadata map[string]string
)

// OwnerKey is the reserved datum field holding the issuer's payment
// public-key hash as raw bytes (hex over the API, never UTF-8).
const OwnerKey = "_pk"

func SliceDiff[T constraints.Ordered](listA []T, listB []T) []T {
	ma := make(map[T]struct{}, len(listA))
	var diffs []T

	for _, ka := range listA {
		ma[ka] = struct{}{}
	}

	for _, kb := range listB {
		if _, ok := ma[kb]; !ok {
			diffs = append(diffs, kb)
		}
	}

	return diffs
}

func SliceMatches[T constraints.Ordered](listA []T, listB []T) []T {
	ma := make(map[T]struct{}, len(listA))
	var sames []T

	for _, ka := range listA {
		ma[ka] = struct{}{}
	}

	for _, kb := range listB {
		if _, ok := ma[kb]; ok {
			sames = append(sames, kb)
		}
	}

	return sames
}

func TruncateMiddle(s string, max int) string {
	if len(s) <= max {
		return s
	}

	// Reserve characters for the beginning and end
	startLen := (max - 3) / 2
	endLen := max - 3 - startLen

	return s[:startLen] + "..." + s[len(s)-endLen:]
}
