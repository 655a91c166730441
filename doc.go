// Package vegasetl implements a batch ETL pipeline for Las Vegas
// real-estate listings: it fetches active listings from the property
// search API, normalizes them onto a fixed canonical schema, and loads
// them idempotently into Postgres with per-run history semantics.
//
// The pipeline runs as three sequential stages wired by the
// pkg/pipeline coordinator:
//
//   - extract: one bounded-concurrency fetch per configured location,
//     deduplicated by property id (pkg/extract)
//   - transform: address parsing, field normalization, district
//     classification, and quality filtering (pkg/transform)
//   - load: a single transaction that provisions the destination table
//     if absent and stages-and-merges the batch, skipping rows whose
//     identity key already exists (pkg/schema, pkg/load)
//
// Stage outputs are persisted as timestamped CSV artifacts with a
// fixed "latest" copy (pkg/artifacts), so each stage can also be run
// standalone from the previous stage's output via the CLI in
// cmd/vegasetl.
package vegasetl
