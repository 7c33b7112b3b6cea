// Package sweep drives the calcsfh depth test.
//
// It is intentionally split into:
//   - Grid model (Grid, GridPoint): pure, deterministic enumeration of
//     depth offsets and run ids
//   - Preparation (Driver.Prepare): writes one pars file per grid point and
//     builds the invocation for it, before anything is executed
//   - Dispatch (Driver.Run, Dispatch): runs every invocation in a bounded
//     pool and collects one outcome per grid point
//
// Grid points are independent: each writes only its own files, so the pool
// needs no coordination beyond the concurrency limit, and completion order
// never affects the report, which is ordered by run id.
package sweep
