// Package license implements machine-bound licensing for POS terminals.
//
// A license originates from an offline scratch card: the card code is
// redeemed through a CardAuthority, bound to the current machine's hardware
// fingerprint and persisted as an opaque, tamper-evident string produced by
// the Codec. Verification is a pure local computation — decode, fingerprint
// match, expiry — and never requires a network connection, so a terminal can
// prove rightful possession (for example during password recovery) while
// fully offline.
//
// # Components
//
//	- Codec: versioned, HMAC-authenticated encoding of license records
//	- ActivationService: scratch-card redemption and local re-verification
//	- CardAuthority: the issuing authority enforcing single-use redemption
//	- Store: persistence of the encoded license and the sales-key audit marker
//
// # Threat model
//
// The HMAC key is embedded in the distributed binary. This protects the
// license file against casual editing — any field change invalidates the
// whole token — but not against an adversary who extracts the key from the
// binary. That limitation is inherent to fully offline license verification;
// there is no key server to defer to.
package license
