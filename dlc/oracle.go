// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package dlc

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Digest is a 32-byte hash of an outcome message, the value an oracle
// actually signs when attesting.
type Digest [32]byte

// DigestMessage hashes an outcome message to its signed digest.
func DigestMessage(msg []byte) Digest {
	return Digest(sha256.Sum256(msg))
}

// OracleInfo holds an oracle's announcement data: its public key and the
// nonce commitments for one event, one nonce per signed digit. Keys carry
// x-only semantics; only the even-Y lift of each point is used.
type OracleInfo struct {
	PubKey *btcec.PublicKey
	Nonces []*btcec.PublicKey
}

// ParseOracleInfo parses an oracle's announcement from 32-byte x-only key
// encodings.
func ParseOracleInfo(pubKey []byte, nonces [][]byte) (*OracleInfo, error) {
	pk, err := schnorr.ParsePubKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: oracle pubkey: %v", ErrInvalidKey, err)
	}
	info := &OracleInfo{PubKey: pk, Nonces: make([]*btcec.PublicKey, 0, len(nonces))}
	for i, nonce := range nonces {
		r, err := schnorr.ParsePubKey(nonce)
		if err != nil {
			return nil, fmt.Errorf("%w: oracle nonce %d: %v", ErrInvalidKey, i, err)
		}
		info.Nonces = append(info.Nonces, r)
	}
	return info, nil
}

// OutcomeMessages is the set of digests attesting to one outcome, grouped by
// oracle. PerOracle is indexed like the oracle list it accompanies, and each
// oracle's digests are indexed like its nonce commitments, one digest per
// signed digit.
type OutcomeMessages struct {
	PerOracle [][]Digest
}

// validateShape checks the message structure against the oracle list.
func (m *OutcomeMessages) validateShape(oracles []OracleInfo) error {
	if m == nil || len(m.PerOracle) == 0 {
		return NewError(ErrInvalidArgument, "no outcome messages")
	}
	if len(m.PerOracle) != len(oracles) {
		return fmt.Errorf("%w: messages for %d oracles, have %d oracles",
			ErrInvalidArgument, len(m.PerOracle), len(oracles))
	}
	for i := range m.PerOracle {
		if len(m.PerOracle[i]) == 0 {
			return fmt.Errorf("%w: no digests for oracle %d", ErrInvalidArgument, i)
		}
		if len(m.PerOracle[i]) > len(oracles[i].Nonces) {
			return fmt.Errorf("%w: %d digests for oracle %d with %d nonces",
				ErrInvalidArgument, len(m.PerOracle[i]), i, len(oracles[i].Nonces))
		}
	}
	return nil
}

// liftXOnly returns the even-Y point with the same x coordinate, along with
// its 32-byte x-only encoding.
func liftXOnly(pk *btcec.PublicKey) (*btcec.PublicKey, []byte, error) {
	xOnly := schnorr.SerializePubKey(pk)
	lifted, err := schnorr.ParsePubKey(xOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return lifted, xOnly, nil
}

// oracleChallenge computes the BIP-340 challenge scalar e = H(R.x, P.x, m)
// for a single signed digest.
func oracleChallenge(nonceX, pubX []byte, digest Digest) secp256k1.ModNScalar {
	h := chainhash.TaggedHash(chainhash.TagBIP0340Challenge, nonceX, pubX, digest[:])
	var e secp256k1.ModNScalar
	e.SetByteSlice(h[:])
	return e
}

// AdaptorPoint computes the encryption point of one outcome: for each
// oracle i and digit j, the anticipated signature point
//
//	S_ij = R_ij + H(R_ij.x, P_i.x, m_ij)*P_i
//
// summed over all digits and oracles. The discrete log of the result is the
// sum of the attestation s values, so CET adaptor signatures encrypted under
// it become decryptable exactly when every oracle attests to this outcome.
func AdaptorPoint(oracles []OracleInfo, msgs *OutcomeMessages) (*btcec.PublicKey, error) {
	if err := msgs.validateShape(oracles); err != nil {
		return nil, err
	}

	var sum secp256k1.JacobianPoint
	for i := range oracles {
		oraclePub, pubX, err := liftXOnly(oracles[i].PubKey)
		if err != nil {
			return nil, err
		}
		var pubJ secp256k1.JacobianPoint
		oraclePub.AsJacobian(&pubJ)

		for j, digest := range msgs.PerOracle[i] {
			nonce, nonceX, err := liftXOnly(oracles[i].Nonces[j])
			if err != nil {
				return nil, err
			}
			var nonceJ, eP, sigPoint, newSum secp256k1.JacobianPoint
			nonce.AsJacobian(&nonceJ)

			e := oracleChallenge(nonceX, pubX, digest)
			secp256k1.ScalarMultNonConst(&e, &pubJ, &eP)
			secp256k1.AddNonConst(&nonceJ, &eP, &sigPoint)
			secp256k1.AddNonConst(&sum, &sigPoint, &newSum)
			sum = newSum
		}
	}

	if (sum.X.IsZero() && sum.Y.IsZero()) || sum.Z.IsZero() {
		return nil, NewError(ErrCryptoOperation, "adaptor point is the point at infinity")
	}
	sum.ToAffine()
	return btcec.NewPublicKey(&sum.X, &sum.Y), nil
}

// AttestationSecret sums the s components of a full set of attestations into
// the decryption secret for the matching outcome's adaptor point. The
// attestations are grouped per oracle, in the same order used to compute the
// point.
func AttestationSecret(attestations [][]*schnorr.Signature) (*secp256k1.ModNScalar, error) {
	sum := new(secp256k1.ModNScalar)
	count := 0
	for i := range attestations {
		for j, sig := range attestations[i] {
			if sig == nil {
				return nil, fmt.Errorf("%w: missing attestation %d from oracle %d",
					ErrInvalidArgument, j, i)
			}
			ser := sig.Serialize()
			var s secp256k1.ModNScalar
			s.SetByteSlice(ser[32:64])
			sum.Add(&s)
			count++
		}
	}
	if count == 0 {
		return nil, NewError(ErrInvalidArgument, "no attestations")
	}
	if sum.IsZero() {
		return nil, NewError(ErrCryptoOperation, "attestation secret is zero")
	}
	return sum, nil
}

// SignOutcome creates a BIP-340 attestation over the digest using the
// oracle's announced nonce instead of a fresh one. The s component of the
// result is the oracle's share of the outcome's decryption secret, which is
// what makes anticipated signature points decryptable.
func SignOutcome(oraclePriv, noncePriv *btcec.PrivateKey, digest Digest) (*schnorr.Signature, error) {
	if oraclePriv == nil || noncePriv == nil {
		return nil, NewError(ErrInvalidKey, "nil oracle or nonce private key")
	}

	// BIP-340 signs for the even-Y representatives of both the key and the
	// nonce, so negate the scalars whose points have odd Y.
	d := oraclePriv.Key
	if oraclePriv.PubKey().SerializeCompressed()[0] == secp256k1.PubKeyFormatCompressedOdd {
		d.Negate()
	}

	k := noncePriv.Key
	var nonceJ secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&k, &nonceJ)
	nonceJ.ToAffine()
	if nonceJ.Y.IsOdd() {
		k.Negate()
	}

	nonceX := nonceJ.X.Bytes()
	pubX := schnorr.SerializePubKey(oraclePriv.PubKey())
	e := oracleChallenge(nonceX[:], pubX, digest)

	// s = k + e*d
	s := e.Mul(&d).Add(&k)
	k.Zero()
	d.Zero()

	sig := schnorr.NewSignature(&nonceJ.X, s)
	if !sig.Verify(digest[:], oraclePriv.PubKey()) {
		return nil, NewError(ErrCryptoOperation, "attestation failed self-check")
	}
	return sig, nil
}
