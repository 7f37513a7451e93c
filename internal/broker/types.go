package broker

import "time"

// ConnectionToken is the credential a client terminal presents to use the
// host's shared data store. It is bound to the requesting machine's
// fingerprint and usable only until ExpiresAt.
type ConnectionToken struct {
	Token             string    `json:"token"`
	HostIP            string    `json:"host_ip"`
	HostName          string    `json:"host_name"`
	DatabasePath      string    `json:"database_path"`
	DatabaseShareName string    `json:"database_share_name"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	ClientFingerprint string    `json:"client_fingerprint"`
	PlanID            string    `json:"plan_id"`
	MaxPOSDevices     int       `json:"max_pos_devices"`
}

// ConnectedClient is the host-side bookkeeping row for one attached
// terminal. Rows are deactivated, never hard-deleted, so the history stays
// available for audit and a returning terminal reclaims its row.
type ConnectedClient struct {
	Fingerprint string    `json:"fingerprint"`
	DisplayName string    `json:"display_name"`
	IPAddress   string    `json:"ip_address"`
	Token       string    `json:"token"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	IsActive    bool      `json:"is_active"`
}

// TokenRequest is what a client terminal submits to attach to a host.
type TokenRequest struct {
	ClientFingerprint string `json:"client_fingerprint" validate:"required"`
	DisplayName       string `json:"display_name" validate:"required"`
	IPAddress         string `json:"ip_address"`
}

// HostInfo describes how clients reach this host's shared store. The
// values are copied into every issued token.
type HostInfo struct {
	HostName          string
	HostIP            string
	DatabasePath      string
	DatabaseShareName string
}
