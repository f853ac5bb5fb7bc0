package model

// MaxPseudoLen is the maximum pseudo length in bytes.
const MaxPseudoLen = 31

// Account is a registered player identity.
// PasswordHash is an encoded Argon2id string, never the plaintext.
type Account struct {
	Pseudo       string
	PasswordHash string
}
