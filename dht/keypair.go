package dht

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/sign"
)

// PublicKey identifies an entry's owner (spec §3, §4.6). Protection
// transfer is the only way to change which PublicKey owns an entry.
type PublicKey [32]byte

func (pk PublicKey) IsZero() bool { return pk == PublicKey{} }

func (pk PublicKey) Equal(other PublicKey) bool { return pk == other }

// KeyPair is an owner's signing identity, generated once per user/device
// and used to sign puts and authorize removes/transfers (spec §4.6).
type KeyPair struct {
	Public  PublicKey
	private [64]byte
}

// GenerateKeyPair creates a new Ed25519-backed signing identity via
// golang.org/x/crypto/nacl/sign (promoted from the teacher's existing
// indirect golang.org/x/crypto dependency — see DESIGN.md).
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := sign.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate signing keypair: %w", err)
	}
	return KeyPair{Public: PublicKey(*pub), private: *priv}, nil
}

// signedPayload is the exact byte sequence a signature covers: the basedOn
// version key followed by the payload (spec §4.6 rule 1 — tampering with
// either the payload or the lineage reference invalidates verification).
func signedPayload(basedOn Key160, payload []byte) []byte {
	buf := make([]byte, 0, len(basedOn)+len(payload))
	buf = append(buf, basedOn[:]...)
	buf = append(buf, payload...)
	return buf
}

// Sign produces a detached signature over payload and basedOn using kp's
// private key.
func (kp KeyPair) Sign(basedOn Key160, payload []byte) []byte {
	priv := kp.private
	signed := sign.Sign(nil, signedPayload(basedOn, payload), &priv)
	// sign.Sign returns the signature followed by the message; keep only the
	// signature prefix.
	return signed[:sign.Overhead]
}

// Verify reports whether sig is a valid signature over (basedOn, payload)
// under owner.
func Verify(owner PublicKey, basedOn Key160, payload, sig []byte) bool {
	if len(sig) != sign.Overhead {
		return false
	}
	signedMsg := append(append([]byte{}, sig...), signedPayload(basedOn, payload)...)
	pub := [32]byte(owner)
	_, ok := sign.Open(nil, signedMsg, &pub)
	return ok
}

// TransferCertificate is a delegation link: the holder of From's private key
// vouches that To now owns whatever tuple the certificate travels with (spec
// §4.6, §8 P7). A version's payload signature can only ever be checked under
// the key that produced it; transferring protection cannot re-sign history,
// so a certificate chain bridges the original signer to the current owner
// instead of rewriting it.
type TransferCertificate struct {
	From PublicKey
	To   PublicKey
	Sig  []byte
}

// transferMessage is the fixed message a transfer certificate signs: there is
// no basedOn/payload pair for a transfer, so the zero key160 stands in for
// basedOn and the new owner's raw key bytes stand in for payload.
func transferMessage(to PublicKey) (Key160, []byte) {
	return Key160{}, to[:]
}

// SignTransfer has from vouch that to is the tuple's new owner.
func (kp KeyPair) SignTransfer(to PublicKey) TransferCertificate {
	basedOn, msg := transferMessage(to)
	return TransferCertificate{From: kp.Public, To: to, Sig: kp.Sign(basedOn, msg)}
}

// Verify reports whether the certificate is a valid, self-consistent
// delegation from From to To.
func (c TransferCertificate) Verify() bool {
	basedOn, msg := transferMessage(c.To)
	return Verify(c.From, basedOn, msg, c.Sig)
}

// TransferChain is the ordered sequence of ownership transfers a version has
// undergone since it was signed. An empty chain means the signer is still
// the owner.
type TransferChain []TransferCertificate

// VerifiesTo reports whether the chain is a valid, unbroken delegation path
// from signedBy to owner: every link verifies on its own, and each link's To
// feeds the next link's From, ending exactly at owner (spec §8 P7 — every
// version verifies under the current owner, and only the current owner).
func (chain TransferChain) VerifiesTo(signedBy, owner PublicKey) bool {
	cursor := signedBy
	for _, cert := range chain {
		if !cert.Verify() || !cert.From.Equal(cursor) {
			return false
		}
		cursor = cert.To
	}
	return cursor.Equal(owner)
}
