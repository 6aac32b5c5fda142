// Package server wires the auth service storage, token issuing, delivery
// providers, and HTTP API into a runnable server.
package server
