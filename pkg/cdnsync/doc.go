// Package cdnsync bulk-loads blocks from a CDN into a ledger.
//
// The CDN serves immutable bundles of consecutive blocks at
// {base}/{start}.{end}.blocks plus a latest.json metadata object
// advertising the highest available height. The pipeline downloads a
// bounded number of bundles concurrently, re-sorts out-of-order
// arrivals in a shared buffer, and drains a strictly contiguous prefix
// into an apply function one block at a time. Memory is bounded by a
// backpressure ceiling on buffered-but-unapplied blocks, transient
// download failures are retried with linear backoff, and cancellation
// is cooperative via context.
//
// Sync ties the pipeline to a Ledger; LoadRange is the
// storage-agnostic entry point coupled only through an ApplyFunc.
package cdnsync
