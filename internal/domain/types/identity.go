package types

// Identity is the issuer's long-term signing key pair.
type Identity struct {
	Name   string         `json:"name"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}
