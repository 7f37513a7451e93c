// Package broker implements the host side of multi-terminal trust: it
// issues, tracks and revokes the time-bound connection tokens that let
// client terminals attach to the host's shared data store, capped by the
// host license's device quota.
//
// The device-count invariant is the one genuine concurrency hazard in the
// subsystem: RequestToken serializes its check-count-then-insert sequence
// under a single lock so two simultaneous requests can never both observe a
// free slot and overshoot the quota.
package broker
