package domain

// KeyPair holds the standard encoded forms of the deployment's signing key
// pair: PKIX DER public key and PKCS#8 DER private key.
type KeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}
