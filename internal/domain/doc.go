// Package domain models NSF grant award data and its reconciliation.
//
// # Data Source
//
// Award rows originate from the NSF Award Search portal exports, merged
// upstream into a single working CSV covering award years 2020-2024. A second
// export covers grants cancelled during 2017-2021. Both tables share the same
// key convention: a two-letter state code column and a four-digit year column,
// with a dollar-amount measure column and arbitrary passthrough columns
// (award id, directorate, institution, and so on).
//
// # State Codes
//
// The authoritative list of valid state identifiers lives in a separate
// abbreviations CSV mapping full state names to USPS two-letter codes
// ("California" -> "CA"). Grant rows normally carry the two-letter code; a
// full name is accepted when it resolves through the reference list, but any
// identifier that resolves to neither form is rejected rather than guessed
// at, since a mismatch almost always means the two source files disagree on
// naming convention.
//
// # Reconciliation
//
// Downstream visualizations plot every state on a shared axis, so the cleaned
// table must contain one row per (state, year) for every state in the
// reference list and every year present anywhere in the input. [Reconcile]
// synthesizes the missing combinations with a zero measure and neutral
// passthrough defaults, never modifying or dropping an input row. Output is
// sorted by (year, state) so repeated runs diff cleanly.
//
// # The Year-0 Convention
//
// Aggregate queries use year 0 to mean "all years combined". This mirrors the
// upstream dashboards, which concatenate per-year aggregates with a year-0
// total so a single dataset drives both views. Year 0 never appears in raw
// data; a literal 0 in a year column is a coerced missing value and is
// rejected as malformed.
//
// # Money
//
// Award amounts are dollar values with at most two decimal places. They are
// carried as [decimal.Decimal] and persisted as integer cents to keep sums
// exact.
package domain
