// Package ir provides the column value model shared by the unit-of-work
// packages.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Rows are plain maps; use SortedKeys for deterministic iteration
//   - Canonical JSON is the only encoding used for fingerprints and plans
package ir
