// Package http exposes the daemon's HTTP surface: the local license API
// used by the terminal UI, the LAN trust API served in host mode, and the
// health and metrics endpoints. Handlers stay thin; they bind and validate
// payloads, delegate to the license and broker services, and translate
// sentinel errors into structured API errors with stable codes.
package http
