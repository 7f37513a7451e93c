// Package app wires the daemon together: configuration, logging, metrics,
// the licensing services, the trust broker and the HTTP server. The
// entrypoint in cmd/posd stays a thin shell around Application.Run.
//
// Startup is gated on entitlement. An unconfigured terminal serves only the
// local license API so the UI can run first-time setup; a host additionally
// serves the LAN trust API; a client validates its connection token against
// the host and keeps a heartbeat running for as long as the process lives.
package app
