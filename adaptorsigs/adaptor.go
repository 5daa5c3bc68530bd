// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package adaptorsigs

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// AdaptorSignatureSize is the size of an encoded ECDSA adaptor signature.
const AdaptorSignatureSize = 162

// scalarSize is the size of an encoded big endian scalar.
const scalarSize = 32

var (
	// nonceTag domain-separates the RFC6979 nonce stream used for encrypted
	// signing from those of other signing algorithms such as plain ECDSA.
	nonceTag = []byte("DLC/ecdsa-adaptor/nonce")

	// dleqTag domain-separates both the proof nonce and the proof challenge
	// of the embedded DLEQ proof.
	dleqTag = []byte("DLC/ecdsa-adaptor/dleq")
)

// AdaptorSignature is an ECDSA signature over a message hash, encrypted under
// an encryption public key T = t*G. Anyone holding the secret t can decrypt it
// into a valid ECDSA signature, and anyone seeing both the adaptor and the
// decrypted signature can recover t.
//
// The signature commits to two curve points sharing the nonce k: Rhat = k*G
// and R = k*T. The x coordinate of R provides the ECDSA r value, while shat is
// the ECDSA s computed against the unknown effective nonce k*t. An embedded
// DLEQ proof demonstrates that Rhat and R were honestly derived from the same
// k, so a verifier knows decryption with t will yield a valid signature
// without learning t.
//
// The typical workflow:
//  1. Party A learns the adaptor point T (e.g. derived from an oracle's
//     announced nonce commitments) and creates an encrypted signature for a
//     transaction party B may want to publish.
//  2. Party B verifies the encrypted signature against A's public key and T,
//     and holds it until the decryption secret becomes public.
//  3. Once t is revealed (e.g. inside an oracle attestation), B decrypts and
//     publishes the final signature.
//  4. Seeing the final signature, A can recover t from the adaptor.
type AdaptorSignature struct {
	r    secp256k1.JacobianPoint // R = k*T, affine
	rHat secp256k1.JacobianPoint // Rhat = k*G, affine
	sHat secp256k1.ModNScalar

	// DLEQ proof that log_G(Rhat) == log_T(R).
	proofE secp256k1.ModNScalar
	proofS secp256k1.ModNScalar
}

// serializePoint encodes an affine Jacobian point in compressed form.
func serializePoint(p *secp256k1.JacobianPoint) []byte {
	var x, y secp256k1.FieldVal
	x.Set(&p.X)
	y.Set(&p.Y)
	return secp256k1.NewPublicKey(&x, &y).SerializeCompressed()
}

// parsePoint decodes a compressed curve point into affine Jacobian form.
func parsePoint(b []byte) (secp256k1.JacobianPoint, error) {
	var p secp256k1.JacobianPoint
	pk, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return p, err
	}
	pk.AsJacobian(&p)
	return p, nil
}

// isInfinity reports whether the point is the point at infinity.
func isInfinity(p *secp256k1.JacobianPoint) bool {
	return (p.X.IsZero() && p.Y.IsZero()) || p.Z.IsZero()
}

// pointsEqual reports equality of two affine points.
func pointsEqual(a, b *secp256k1.JacobianPoint) bool {
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y)
}

// Serialize returns the adaptor signature in the following format:
//
//	sig[0:33]    compressed point R = k*T
//	sig[33:66]   compressed point Rhat = k*G
//	sig[66:98]   shat, encoded as a big-endian uint256
//	sig[98:130]  DLEQ proof challenge e
//	sig[130:162] DLEQ proof response s
func (sig *AdaptorSignature) Serialize() []byte {
	var b [AdaptorSignatureSize]byte
	copy(b[0:33], serializePoint(&sig.r))
	copy(b[33:66], serializePoint(&sig.rHat))
	sig.sHat.PutBytesUnchecked(b[66:98])
	sig.proofE.PutBytesUnchecked(b[98:130])
	sig.proofS.PutBytesUnchecked(b[130:162])
	return b[:]
}

// ParseAdaptorSignature parses an adaptor signature from its serialized form.
func ParseAdaptorSignature(b []byte) (*AdaptorSignature, error) {
	if len(b) != AdaptorSignatureSize {
		return nil, fmt.Errorf("malformed adaptor signature: wrong size: %d", len(b))
	}

	r, err := parsePoint(b[0:33])
	if err != nil {
		return nil, fmt.Errorf("invalid adaptor signature: R: %v", err)
	}
	rHat, err := parsePoint(b[33:66])
	if err != nil {
		return nil, fmt.Errorf("invalid adaptor signature: Rhat: %v", err)
	}

	var sHat, proofE, proofS secp256k1.ModNScalar
	if overflow := sHat.SetBytes((*[32]byte)(b[66:98])); overflow > 0 {
		return nil, errors.New("invalid adaptor signature: shat >= group order")
	}
	if overflow := proofE.SetBytes((*[32]byte)(b[98:130])); overflow > 0 {
		return nil, errors.New("invalid adaptor signature: proof e >= group order")
	}
	if overflow := proofS.SetBytes((*[32]byte)(b[130:162])); overflow > 0 {
		return nil, errors.New("invalid adaptor signature: proof s >= group order")
	}

	return &AdaptorSignature{
		r:      r,
		rHat:   rHat,
		sHat:   sHat,
		proofE: proofE,
		proofS: proofS,
	}, nil
}

// IsEqual returns true if the adaptor signature is equal to another.
func (sig *AdaptorSignature) IsEqual(otherSig *AdaptorSignature) bool {
	return pointsEqual(&sig.r, &otherSig.r) &&
		pointsEqual(&sig.rHat, &otherSig.rHat) &&
		sig.sHat.Equals(&otherSig.sHat) &&
		sig.proofE.Equals(&otherSig.proofE) &&
		sig.proofS.Equals(&otherSig.proofS)
}

// dleqChallenge computes the Fiat-Shamir challenge scalar binding the proof
// commitments to the encryption key and both signature points.
func dleqChallenge(encKey []byte, rHat, r, commitG, commitT *secp256k1.JacobianPoint) secp256k1.ModNScalar {
	h := chainhash.TaggedHash(dleqTag, encKey,
		serializePoint(rHat), serializePoint(r),
		serializePoint(commitG), serializePoint(commitT))
	var e secp256k1.ModNScalar
	e.SetByteSlice(h[:])
	return e
}

// zeroArray zeroes the memory of a scalar array.
func zeroArray(a *[scalarSize]byte) {
	for i := 0; i < scalarSize; i++ {
		a[i] = 0x00
	}
}

// encryptedSign performs a single encrypted signing attempt with the given
// nonce. Degenerate intermediate values are reported as errors so the caller
// can retry with the next deterministic nonce.
func encryptedSign(privKey, nonce, m *secp256k1.ModNScalar, T *secp256k1.JacobianPoint,
	encKeySer []byte, hash []byte) (*AdaptorSignature, error) {

	k := *nonce
	defer k.Zero()

	// Rhat = k*G
	var rHat secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&k, &rHat)
	rHat.ToAffine()

	// R = k*T
	var r secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&k, T, &r)
	if isInfinity(&r) {
		return nil, errors.New("R is the point at infinity")
	}
	r.ToAffine()

	// The ECDSA r value is R.x interpreted mod n.
	rBytes := r.X.Bytes()
	var rScalar secp256k1.ModNScalar
	rScalar.SetBytes(rBytes)
	if rScalar.IsZero() {
		return nil, errors.New("r is zero")
	}

	// shat = k^-1 * (m + r*x)
	kInv := new(secp256k1.ModNScalar).Set(&k)
	kInv.InverseNonConst()
	sHat := new(secp256k1.ModNScalar).Mul2(&rScalar, privKey).Add(m).Mul(kInv)
	if sHat.IsZero() {
		return nil, errors.New("shat is zero")
	}

	// DLEQ proof of log_G(Rhat) == log_T(R) == k. The proof nonce is derived
	// deterministically from the signing nonce and the transcript.
	proofExtra := chainhash.TaggedHash(dleqTag, serializePoint(&rHat), serializePoint(&r))
	kBytes := k.Bytes()
	defer zeroArray(&kBytes)
	a := secp256k1.NonceRFC6979(kBytes[:], hash, proofExtra[:], nil, 0)
	defer a.Zero()
	if a.IsZero() {
		return nil, errors.New("degenerate proof nonce")
	}

	var commitG, commitT secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(a, &commitG)
	commitG.ToAffine()
	secp256k1.ScalarMultNonConst(a, T, &commitT)
	commitT.ToAffine()

	e := dleqChallenge(encKeySer, &rHat, &r, &commitG, &commitT)
	proofS := new(secp256k1.ModNScalar).Mul2(&e, &k).Add(a)

	return &AdaptorSignature{
		r:      r,
		rHat:   rHat,
		sHat:   *sHat,
		proofE: e,
		proofS: *proofS,
	}, nil
}

// EncryptedSign creates an adaptor signature over hash with the private key,
// encrypted under the encryption key. Only a party knowing the discrete log of
// encKey can decrypt it into a valid ECDSA signature. Signing is deterministic
// for a fixed (key, hash, encKey) triple.
func EncryptedSign(privKey *secp256k1.PrivateKey, encKey *secp256k1.PublicKey, hash []byte) (*AdaptorSignature, error) {
	if len(hash) != scalarSize {
		return nil, fmt.Errorf("wrong size for message hash (got %v, want %v)",
			len(hash), scalarSize)
	}

	privKeyScalar := &privKey.Key
	if privKeyScalar.IsZero() {
		return nil, errors.New("private key is zero")
	}

	var m secp256k1.ModNScalar
	m.SetByteSlice(hash)

	var T secp256k1.JacobianPoint
	encKey.AsJacobian(&T)
	encKeySer := encKey.SerializeCompressed()

	// The nonce stream is bound to the encryption key so signatures for the
	// same message under different adaptor points never share a nonce.
	extra := chainhash.TaggedHash(nonceTag, encKeySer)

	var privKeyBytes [scalarSize]byte
	privKeyScalar.PutBytes(&privKeyBytes)
	defer zeroArray(&privKeyBytes)
	for iteration := uint32(0); ; iteration++ {
		k := secp256k1.NonceRFC6979(privKeyBytes[:], hash, extra[:], nil, iteration)
		sig, err := encryptedSign(privKeyScalar, k, &m, &T, encKeySer, hash)
		k.Zero()
		if err != nil {
			// Try again with the next deterministic nonce.
			continue
		}
		return sig, nil
	}
}

// Verify checks that the adaptor signature will decrypt into a valid ECDSA
// signature over hash for pubKey once the discrete log of encKey is known.
func (sig *AdaptorSignature) Verify(hash []byte, pubKey, encKey *secp256k1.PublicKey) error {
	if len(hash) != scalarSize {
		return fmt.Errorf("wrong size for message hash (got %v, want %v)",
			len(hash), scalarSize)
	}
	if !pubKey.IsOnCurve() {
		return errors.New("pubkey point is not on curve")
	}

	var T secp256k1.JacobianPoint
	encKey.AsJacobian(&T)
	encKeySer := encKey.SerializeCompressed()

	// DLEQ check: reconstruct the proof commitments
	//   A_G = s*G - e*Rhat
	//   A_T = s*T - e*R
	// and require the challenge to recompute to proof e.
	var negE secp256k1.ModNScalar
	negE.NegateVal(&sig.proofE)

	var sG, eRhat, commitG secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&sig.proofS, &sG)
	secp256k1.ScalarMultNonConst(&negE, &sig.rHat, &eRhat)
	secp256k1.AddNonConst(&sG, &eRhat, &commitG)
	if isInfinity(&commitG) {
		return errors.New("degenerate DLEQ commitment")
	}
	commitG.ToAffine()

	var sT, eR, commitT secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&sig.proofS, &T, &sT)
	secp256k1.ScalarMultNonConst(&negE, &sig.r, &eR)
	secp256k1.AddNonConst(&sT, &eR, &commitT)
	if isInfinity(&commitT) {
		return errors.New("degenerate DLEQ commitment")
	}
	commitT.ToAffine()

	e := dleqChallenge(encKeySer, &sig.rHat, &sig.r, &commitG, &commitT)
	if !e.Equals(&sig.proofE) {
		return errors.New("DLEQ proof verification failed")
	}

	// ECDSA check against the encrypted nonce point:
	//   shat^-1 * (m*G + r*X) == Rhat
	rBytes := sig.r.X.Bytes()
	var rScalar secp256k1.ModNScalar
	rScalar.SetBytes(rBytes)
	if rScalar.IsZero() {
		return errors.New("signature r is zero")
	}
	if sig.sHat.IsZero() {
		return errors.New("signature shat is zero")
	}

	var m secp256k1.ModNScalar
	m.SetByteSlice(hash)

	sInv := new(secp256k1.ModNScalar).Set(&sig.sHat)
	sInv.InverseNonConst()
	u1 := new(secp256k1.ModNScalar).Mul2(&m, sInv)
	u2 := new(secp256k1.ModNScalar).Mul2(&rScalar, sInv)

	var X, u1G, u2X, expRhat secp256k1.JacobianPoint
	pubKey.AsJacobian(&X)
	secp256k1.ScalarBaseMultNonConst(u1, &u1G)
	secp256k1.ScalarMultNonConst(u2, &X, &u2X)
	secp256k1.AddNonConst(&u1G, &u2X, &expRhat)
	if isInfinity(&expRhat) {
		return errors.New("calculated Rhat is the point at infinity")
	}
	expRhat.ToAffine()
	if !pointsEqual(&expRhat, &sig.rHat) {
		return errors.New("calculated Rhat does not match signature")
	}

	return nil
}

// Decrypt returns a standard ECDSA signature given the decryption secret,
// normalized to the low-S form required for relay. The secret is checked
// against the committed nonce points, so a secret for a different encryption
// key is rejected rather than producing a garbage signature.
func (sig *AdaptorSignature) Decrypt(secret *secp256k1.ModNScalar) (*ecdsa.Signature, error) {
	if secret.IsZero() {
		return nil, errors.New("decryption secret is zero")
	}

	// R = k*T = t*(k*G) = t*Rhat, so t*Rhat must land on the committed R.
	var tRhat secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(secret, &sig.rHat, &tRhat)
	if isInfinity(&tRhat) {
		return nil, errors.New("decryption secret does not match encryption key")
	}
	tRhat.ToAffine()
	if !pointsEqual(&tRhat, &sig.r) {
		return nil, errors.New("decryption secret does not match encryption key")
	}

	tInv := new(secp256k1.ModNScalar).Set(secret)
	tInv.InverseNonConst()
	s := new(secp256k1.ModNScalar).Mul2(&sig.sHat, tInv)
	if s.IsOverHalfOrder() {
		s.Negate()
	}

	rBytes := sig.r.X.Bytes()
	var rScalar secp256k1.ModNScalar
	rScalar.SetBytes(rBytes)

	return ecdsa.NewSignature(&rScalar, s), nil
}

// RecoverTweak recovers the decryption secret from the adaptor signature and
// its published decryption. The low-S normalization applied during decryption
// may negate the secret, so both candidates are checked against encKey.
func (sig *AdaptorSignature) RecoverTweak(decrypted *ecdsa.Signature, encKey *secp256k1.PublicKey) (*secp256k1.ModNScalar, error) {
	_, s, err := parseDERScalars(decrypted.Serialize())
	if err != nil {
		return nil, err
	}
	if s.IsZero() {
		return nil, errors.New("decrypted signature s is zero")
	}

	// t = shat * s^-1, up to negation.
	sInv := new(secp256k1.ModNScalar).Set(s)
	sInv.InverseNonConst()
	t := new(secp256k1.ModNScalar).Mul2(&sig.sHat, sInv)

	var expT, TJ secp256k1.JacobianPoint
	encKey.AsJacobian(&TJ)
	TJ.ToAffine()

	secp256k1.ScalarBaseMultNonConst(t, &expT)
	expT.ToAffine()
	if pointsEqual(&expT, &TJ) {
		return t, nil
	}

	t.Negate()
	secp256k1.ScalarBaseMultNonConst(t, &expT)
	expT.ToAffine()
	if pointsEqual(&expT, &TJ) {
		return t, nil
	}

	return nil, errors.New("recovered tweak does not match encryption key")
}

// parseDERScalars extracts the r and s scalars from a DER encoded ECDSA
// signature.
func parseDERScalars(der []byte) (r, s *secp256k1.ModNScalar, err error) {
	// 0x30 <len> 0x02 <rlen> <r> 0x02 <slen> <s>
	if len(der) < 8 || der[0] != 0x30 || int(der[1]) != len(der)-2 || der[2] != 0x02 {
		return nil, nil, errors.New("malformed DER signature")
	}
	rLen := int(der[3])
	if len(der) < 6+rLen || der[4+rLen] != 0x02 {
		return nil, nil, errors.New("malformed DER signature")
	}
	sLen := int(der[5+rLen])
	if len(der) != 6+rLen+sLen {
		return nil, nil, errors.New("malformed DER signature")
	}
	rb, sb := der[4:4+rLen], der[6+rLen:]

	setScalar := func(b []byte) (*secp256k1.ModNScalar, error) {
		// Strip any leading zero sign byte and reject oversized values.
		for len(b) > 0 && b[0] == 0 {
			b = b[1:]
		}
		if len(b) > scalarSize {
			return nil, errors.New("DER scalar too large")
		}
		var v secp256k1.ModNScalar
		if overflow := v.SetByteSlice(b); overflow {
			return nil, errors.New("DER scalar >= group order")
		}
		return &v, nil
	}

	if r, err = setScalar(rb); err != nil {
		return nil, nil, err
	}
	if s, err = setScalar(sb); err != nil {
		return nil, nil, err
	}
	return r, s, nil
}
