// Package auth defines the identity boundary for the exchange.
//
// It is the single place that owns account lifecycle, authentication
// factors, and session issuance so other services can depend on stable
// account IDs instead of re-implementing identity rules.
//
// Subpackages:
//   - app: auth server wiring and lifecycle
//   - api/httpapi: HTTP handlers for registration, login, and verification
//   - account: account domain model and identifier validation
//   - session: signed bearer token issuing and verification
//   - verification: one-time phone verification codes
//   - wallet: blockchain wallet signature verification
//   - passkey: WebAuthn relying-party configuration
//   - notify: email and SMS delivery providers
//   - storage: persistence interfaces and the SQLite implementation
package auth
