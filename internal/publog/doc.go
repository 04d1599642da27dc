// Package publog is the public log: the append-only store where issuers
// publish witness records and holders append audit events.
//
// Witness records travel as deterministic CBOR and are signed by the
// issuer over a domain-tagged encoding, so any holder can check a record
// fetched from an untrusted server. Memory is the in-process log used by
// the server and by tests; HTTP is the client the CLI uses. Audit events
// carry no share material.
package publog
