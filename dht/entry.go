package dht

import "time"

// Entry is the value stored at a Tuple (spec §3): opaque payload bytes, a
// TTL, optional lineage reference, a signature over (basedOn, payload), the
// protectedEntry flag, and the owning public key.
//
// SignedBy is the key that actually produced Signature; Owner is the tuple's
// current owner. The two diverge once protection has been transferred at
// least once since this version was put — TransferChain is the delegation
// path proving SignedBy's holder handed control to Owner (spec §4.6, §8 P7).
// A version's payload signature is never rewritten by a transfer, only
// bridged.
type Entry struct {
	Payload        []byte
	TTL            time.Duration
	BasedOn        Key160
	Signature      []byte
	ProtectedEntry bool
	Owner          PublicKey
	SignedBy       PublicKey
	TransferChain  TransferChain
}

// Verify reports whether e's signature is valid under the key that signed
// it, and that key's delegation chain (if any) reaches the declared current
// owner. Unprotected entries always verify (there is nothing to check).
func (e Entry) Verify() bool {
	if !e.ProtectedEntry {
		return true
	}
	if !Verify(e.SignedBy, e.BasedOn, e.Payload, e.Signature) {
		return false
	}
	return e.TransferChain.VerifiesTo(e.SignedBy, e.Owner)
}
