package cryptox

import (
	"crypto/rand"
	"crypto/sha1" // #nosec G505 - PBKDF2 PRF, interoperable with existing password records
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Parameters for PBKDF2 password hashing. These match the records already in
// the field, so changing them invalidates every stored password.
const (
	iterations = 1000
	hashSize   = 24 // derived key length in bytes
	saltSize   = 24 // salt length in bytes
)

// HashPassword derives a PBKDF2-HMAC-SHA1 hash of the password with a fresh
// random salt. Both values are returned hex encoded (48 characters each) and
// must always be stored together. Empty passwords are the caller's problem;
// this function hashes whatever it is given.
func HashPassword(password string) (hashHex, saltHex string, err error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("cryptox: generate salt: %w", err)
	}
	hash := pbkdf2.Key([]byte(password), salt, iterations, hashSize, sha1.New)
	return hex.EncodeToString(hash), hex.EncodeToString(salt), nil
}

// VerifyPassword recomputes the derived key with the stored salt and compares
// it against the stored hash in length-constant time. Malformed hex input
// never verifies.
func VerifyPassword(password, hashHex, saltHex string) bool {
	hash, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	computed := pbkdf2.Key([]byte(password), salt, iterations, hashSize, sha1.New)
	return slowEquals(hash, computed)
}

// slowEquals compares two byte slices in length-constant time. The total cost
// is independent of the position of the first mismatching byte, and differing
// lengths are folded into the running difference up front, so password hashes
// cannot be probed with a timing attack.
func slowEquals(a, b []byte) bool {
	diff := len(a) ^ len(b)
	for i := 0; i < len(a) && i < len(b); i++ {
		diff |= int(a[i]) ^ int(b[i])
	}
	return diff == 0
}
