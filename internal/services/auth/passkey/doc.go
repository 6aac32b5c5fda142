// Package passkey configures WebAuthn passkey support.
//
// It models device-bound credentials and ceremony session timing so identity
// can rest on hardware-backed keys instead of shared secrets.
package passkey
