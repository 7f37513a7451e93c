package onboarding

import (
	"time"

	"poscli/internal/broker"
)

// State is a position in the onboarding state machine.
type State string

const (
	StateNoLicense            State = "no_license"
	StateChoosingMode         State = "choosing_mode"
	StateActivatingStandalone State = "activating_standalone"
	StateConnectingToHost     State = "connecting_to_host"
	StateActivated            State = "activated"
	StateFailed               State = "failed"
)

// Mode is the persisted role of this installation.
type Mode string

const (
	ModeHost   Mode = "host"
	ModeClient Mode = "client"
)

// ConnectionConfig is the per-installation record of how this terminal
// reaches its data store. Exactly one of IsClient/IsHost is true. It is
// written only on a successful transition into Activated and is otherwise
// replaced wholesale, never edited in place.
type ConnectionConfig struct {
	IsClient     bool                    `json:"is_client"`
	IsHost       bool                    `json:"is_host"`
	HostIP       string                  `json:"host_ip,omitempty"`
	DatabasePath string                  `json:"database_path,omitempty"`
	Token        *broker.ConnectionToken `json:"token,omitempty"`
	ConfiguredAt time.Time               `json:"configured_at"`
}

// Mode reports the configured role.
func (c *ConnectionConfig) Mode() Mode {
	if c.IsClient {
		return ModeClient
	}
	return ModeHost
}
