// Package onboarding sequences first-run setup for a POS terminal: choose
// standalone (activate a scratch card against this machine) or join an
// existing host (request a connection token over the LAN), then persist the
// resulting mode so later launches can unlock without re-running setup.
//
// The flow is a small state machine. Nothing is persisted until the machine
// reaches Activated; an abandoned or failed attempt leaves no partial
// connection state behind. Every later launch re-checks entitlement through
// Unlock rather than trusting a cached flag.
package onboarding
