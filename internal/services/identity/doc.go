// Package identity manages creation, encryption and loading of the issuer
// identity.
//
// It enforces passphrase policy, generates the Ed25519 key pair that signs
// witness records, and persists it via the domain.IdentityStore.
package identity
