package meowzip

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// Signer produces a detached signature over the bytes r yields.
type Signer interface {
	Sign(r io.Reader) ([]byte, error)
}

// Verifier checks a detached signature over the bytes signed yielded,
// accepting if it validates against any key in its trusted set.
type Verifier interface {
	Verify(signed io.Reader, sig []byte) error
}

// pgpSigner signs with a single private key, mirroring apt.signBytes but
// generalized to an arbitrary byte stream instead of a clearsign block.
type pgpSigner struct {
	entity *openpgp.Entity
}

// NewSigner builds a Signer from an armored private key. keyPassphrase may
// be nil for an unencrypted key.
func NewSigner(armoredPrivateKey []byte, keyPassphrase []byte) (Signer, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armoredPrivateKey))
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys found in armored input")
	}
	entity := entities[0]

	if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
		if len(keyPassphrase) == 0 {
			return nil, fmt.Errorf("private key is encrypted but no passphrase was supplied")
		}
		if err := entity.PrivateKey.Decrypt(keyPassphrase); err != nil {
			return nil, fmt.Errorf("decrypting private key: %w", err)
		}
	}
	return &pgpSigner{entity: entity}, nil
}

func (s *pgpSigner) Sign(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if err := openpgp.DetachSign(&buf, s.entity, r, nil); err != nil {
		return nil, fmt.Errorf("detach-signing: %w", err)
	}
	return buf.Bytes(), nil
}

// pgpVerifier validates against a keyring built from every trusted public
// key supplied to NewVerifier. openpgp.CheckDetachedSignature natively
// accepts if ANY entity in the keyring produced the signature, which is
// exactly the "any trusted key validates" acceptance rule.
type pgpVerifier struct {
	keyring openpgp.EntityList
}

// NewVerifier builds a Verifier trusting every key in armoredPublicKeys.
func NewVerifier(armoredPublicKeys [][]byte) (Verifier, error) {
	var keyring openpgp.EntityList
	for i, armored := range armoredPublicKeys {
		entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armored))
		if err != nil {
			return nil, fmt.Errorf("reading trusted key %d: %w", i, err)
		}
		keyring = append(keyring, entities...)
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("no trusted keys supplied")
	}
	return &pgpVerifier{keyring: keyring}, nil
}

func (v *pgpVerifier) Verify(signed io.Reader, sig []byte) error {
	_, err := openpgp.CheckDetachedSignature(v.keyring, signed, bytes.NewReader(sig), nil)
	if err != nil {
		return fmt.Errorf("signature did not validate against any trusted key: %w", err)
	}
	return nil
}

// ExtractPublicKey re-derives an armored public key block from an armored
// private key, for packagers who publish only a signing key and want the
// matching public half for distribution. Grounded on apt.extractPublicKey.
func ExtractPublicKey(armoredPrivateKey []byte) ([]byte, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armoredPrivateKey))
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys found in armored input")
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, fmt.Errorf("opening armor encoder: %w", err)
	}
	if err := entities[0].Serialize(w); err != nil {
		return nil, fmt.Errorf("serializing public key: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing armor encoder: %w", err)
	}
	return buf.Bytes(), nil
}
