package crypto

import "golang.org/x/crypto/bcrypt"

// ErrPasswordTooLong is returned for secrets bcrypt cannot hash (over 72 bytes).
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// Bcrypt hashes and verifies passwords. The zero value uses bcrypt.DefaultCost.
type Bcrypt struct {
	Cost int
}

// Hash returns a salted bcrypt digest of plain.
func (b Bcrypt) Hash(plain string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plain matches digest. Malformed digests never match.
func (b Bcrypt) Verify(plain, digest string) bool {
	if digest == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
	return err == nil
}
