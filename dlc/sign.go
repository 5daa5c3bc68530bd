// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package dlc

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/dlckit/dlckit/adaptorsigs"
)

// findInputIndex locates a transaction input by the outpoint it spends.
func findInputIndex(tx *wire.MsgTx, op wire.OutPoint) (int, error) {
	for i, txIn := range tx.TxIn {
		if txIn.PreviousOutPoint == op {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no input spending %s", ErrInvalidTxReference, op)
}

// p2wpkhScript returns the version 0 witness output script paying to the
// key's hash160.
func p2wpkhScript(pub *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(pub.SerializeCompressed())).
		Script()
}

// witnessSigHash computes the BIP143 SIGHASH_ALL digest for the input at
// idx. script is the BIP143 script code source (the witness script for
// p2wsh, the output script for p2wpkh) and prevScript the spent output's
// script.
func witnessSigHash(tx *wire.MsgTx, idx int, script, prevScript []byte, amount btcutil.Amount) ([]byte, error) {
	fetcher := txscript.NewCannedPrevOutputFetcher(prevScript, int64(amount))
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	hash, err := txscript.CalcWitnessSigHash(script, sigHashes,
		txscript.SigHashAll, tx, idx, int64(amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return hash, nil
}

// cetSigHash computes the digest a CET or refund signature commits to: the
// spend of the funding output over its 2-of-2 witness script.
func cetSigHash(tx *wire.MsgTx, fundingScript []byte, fundAmount btcutil.Amount) ([]byte, error) {
	prevScript, err := P2WSHScript(fundingScript)
	if err != nil {
		return nil, err
	}
	return witnessSigHash(tx, 0, fundingScript, prevScript, fundAmount)
}

// RawFundingInputSignature signs the p2wpkh funding input spending
// prevOutpoint, returning the DER signature with the SIGHASH_ALL byte
// appended, the form carried in the witness.
func RawFundingInputSignature(tx *wire.MsgTx, privKey *btcec.PrivateKey,
	prevOutpoint wire.OutPoint, amount btcutil.Amount) ([]byte, error) {

	if privKey == nil {
		return nil, NewError(ErrInvalidKey, "nil private key")
	}
	idx, err := findInputIndex(tx, prevOutpoint)
	if err != nil {
		return nil, err
	}
	spk, err := p2wpkhScript(privKey.PubKey())
	if err != nil {
		return nil, err
	}
	hash, err := witnessSigHash(tx, idx, spk, spk, amount)
	if err != nil {
		return nil, err
	}
	sig := ecdsa.Sign(privKey, hash)
	return append(sig.Serialize(), byte(txscript.SigHashAll)), nil
}

// SignFundingInput signs a p2wpkh funding input and attaches the completed
// [signature, pubkey] witness in place.
func SignFundingInput(tx *wire.MsgTx, privKey *btcec.PrivateKey,
	prevOutpoint wire.OutPoint, amount btcutil.Amount) error {

	rawSig, err := RawFundingInputSignature(tx, privKey, prevOutpoint, amount)
	if err != nil {
		return err
	}
	idx, err := findInputIndex(tx, prevOutpoint)
	if err != nil {
		return err
	}
	tx.TxIn[idx].Witness = wire.TxWitness{rawSig, privKey.PubKey().SerializeCompressed()}
	return nil
}

// VerifyFundTxSignature reports whether rawSig, a DER signature with a
// trailing sighash byte as produced by RawFundingInputSignature, is a valid
// SIGHASH_ALL commitment by pubKey to the p2wpkh input spending
// prevOutpoint.
func VerifyFundTxSignature(tx *wire.MsgTx, rawSig []byte, pubKey *btcec.PublicKey,
	prevOutpoint wire.OutPoint, amount btcutil.Amount) bool {

	if pubKey == nil || len(rawSig) < 2 {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(rawSig[:len(rawSig)-1])
	if err != nil {
		return false
	}
	idx, err := findInputIndex(tx, prevOutpoint)
	if err != nil {
		return false
	}
	spk, err := p2wpkhScript(pubKey)
	if err != nil {
		return false
	}
	hash, err := witnessSigHash(tx, idx, spk, spk, amount)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}

// CreateCetAdaptorSignature creates the adaptor signature for one CET,
// encrypted under the adaptor point of the outcome the CET settles.
func CreateCetAdaptorSignature(cet *wire.MsgTx, oracles []OracleInfo,
	msgs *OutcomeMessages, fundPrivKey *btcec.PrivateKey, fundingScript []byte,
	fundAmount btcutil.Amount) (*adaptorsigs.AdaptorSignature, error) {

	if fundPrivKey == nil {
		return nil, NewError(ErrInvalidKey, "nil funding private key")
	}
	adaptorPoint, err := AdaptorPoint(oracles, msgs)
	if err != nil {
		return nil, err
	}
	hash, err := cetSigHash(cet, fundingScript, fundAmount)
	if err != nil {
		return nil, err
	}
	sig, err := adaptorsigs.EncryptedSign(fundPrivKey, adaptorPoint, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoOperation, err)
	}
	return sig, nil
}

// CreateCetAdaptorSignatures creates the adaptor signature for each CET,
// positionally matched with its outcome messages.
func CreateCetAdaptorSignatures(cets []*wire.MsgTx, oracles []OracleInfo,
	msgsPerCet []*OutcomeMessages, fundPrivKey *btcec.PrivateKey,
	fundingScript []byte, fundAmount btcutil.Amount) ([]*adaptorsigs.AdaptorSignature, error) {

	if len(cets) != len(msgsPerCet) {
		return nil, fmt.Errorf("%w: %d CETs but %d outcome message sets",
			ErrInvalidArgument, len(cets), len(msgsPerCet))
	}
	sigs := make([]*adaptorsigs.AdaptorSignature, 0, len(cets))
	for i := range cets {
		sig, err := CreateCetAdaptorSignature(cets[i], oracles, msgsPerCet[i],
			fundPrivKey, fundingScript, fundAmount)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// VerifyCetAdaptorSignature reports whether the adaptor signature is a valid
// commitment by fundPubKey to the CET, encrypted under the outcome's
// adaptor point. Any failure, structural or cryptographic, yields false.
func VerifyCetAdaptorSignature(adaptorSig *adaptorsigs.AdaptorSignature,
	cet *wire.MsgTx, oracles []OracleInfo, msgs *OutcomeMessages,
	fundPubKey *btcec.PublicKey, fundingScript []byte, fundAmount btcutil.Amount) bool {

	if adaptorSig == nil || fundPubKey == nil {
		return false
	}
	adaptorPoint, err := AdaptorPoint(oracles, msgs)
	if err != nil {
		return false
	}
	hash, err := cetSigHash(cet, fundingScript, fundAmount)
	if err != nil {
		return false
	}
	return adaptorSig.Verify(hash, fundPubKey, adaptorPoint) == nil
}

// VerifyCetAdaptorSignatures verifies a full set of CET adaptor signatures,
// positionally matched with CETs and outcome message sets. False on any
// length mismatch or any failing signature.
func VerifyCetAdaptorSignatures(adaptorSigs []*adaptorsigs.AdaptorSignature,
	cets []*wire.MsgTx, msgsPerCet []*OutcomeMessages, oracles []OracleInfo,
	fundPubKey *btcec.PublicKey, fundingScript []byte, fundAmount btcutil.Amount) bool {

	if len(adaptorSigs) != len(cets) || len(cets) != len(msgsPerCet) {
		return false
	}
	for i := range cets {
		if !VerifyCetAdaptorSignature(adaptorSigs[i], cets[i], oracles,
			msgsPerCet[i], fundPubKey, fundingScript, fundAmount) {
			return false
		}
	}
	return true
}

// SignCet completes a CET once its outcome has been attested: the adaptor
// signature is decrypted with the summed attestation secrets into the other
// party's signature, a local signature is created, and the final 2-of-2
// witness is attached to the CET in place.
func SignCet(cet *wire.MsgTx, adaptorSig *adaptorsigs.AdaptorSignature,
	attestations [][]*schnorr.Signature, fundPrivKey *btcec.PrivateKey,
	otherPubKey *btcec.PublicKey, fundingScript []byte, fundAmount btcutil.Amount) error {

	if fundPrivKey == nil || otherPubKey == nil {
		return NewError(ErrInvalidKey, "nil key")
	}
	secret, err := AttestationSecret(attestations)
	if err != nil {
		return err
	}
	decrypted, err := adaptorSig.Decrypt(secret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	hash, err := cetSigHash(cet, fundingScript, fundAmount)
	if err != nil {
		return err
	}
	localSig := ecdsa.Sign(fundPrivKey, hash)

	finalizeMultisigWitness(cet, 0, fundingScript,
		fundPrivKey.PubKey(), append(localSig.Serialize(), byte(txscript.SigHashAll)),
		otherPubKey, append(decrypted.Serialize(), byte(txscript.SigHashAll)))
	return nil
}

// RawDlcFundingInputSignature signs the spend of a prior contract's funding
// output within the new funding transaction, returning the DER signature
// with the SIGHASH_ALL byte appended.
func RawDlcFundingInputSignature(tx *wire.MsgTx, privKey *btcec.PrivateKey,
	dlcInput *DlcInputInfo) ([]byte, error) {

	if privKey == nil {
		return nil, NewError(ErrInvalidKey, "nil private key")
	}
	fundingScript, err := dlcInput.fundingScript()
	if err != nil {
		return nil, err
	}
	op, err := dlcInput.outpoint()
	if err != nil {
		return nil, err
	}
	idx, err := findInputIndex(tx, op)
	if err != nil {
		return nil, err
	}
	prevScript, err := P2WSHScript(fundingScript)
	if err != nil {
		return nil, err
	}
	hash, err := witnessSigHash(tx, idx, fundingScript, prevScript, dlcInput.FundAmount)
	if err != nil {
		return nil, err
	}
	sig := ecdsa.Sign(privKey, hash)
	return append(sig.Serialize(), byte(txscript.SigHashAll)), nil
}

// CombineFundingSignatures completes the 2-of-2 spend of a prior contract's
// funding output inside the new funding transaction. The local signature is
// created from privKey, the remote one (with trailing sighash byte, as
// produced by RawDlcFundingInputSignature) is verified, and the final
// witness is attached in place. Both parties produce byte-identical
// witnesses from their own perspective.
func CombineFundingSignatures(tx *wire.MsgTx, dlcInput *DlcInputInfo,
	privKey *btcec.PrivateKey, remoteRawSig []byte) error {

	if privKey == nil {
		return NewError(ErrInvalidKey, "nil private key")
	}
	myPub := privKey.PubKey()
	var otherPub *btcec.PublicKey
	switch {
	case dlcInput.LocalFundPubKey != nil && myPub.IsEqual(dlcInput.LocalFundPubKey):
		otherPub = dlcInput.RemoteFundPubKey
	case dlcInput.RemoteFundPubKey != nil && myPub.IsEqual(dlcInput.RemoteFundPubKey):
		otherPub = dlcInput.LocalFundPubKey
	default:
		return NewError(ErrInvalidKey, "private key matches neither funding pubkey")
	}
	if otherPub == nil {
		return NewError(ErrInvalidKey, "missing counterparty funding pubkey")
	}

	mySig, err := RawDlcFundingInputSignature(tx, privKey, dlcInput)
	if err != nil {
		return err
	}

	if len(remoteRawSig) < 2 {
		return NewError(ErrInvalidSignature, "short remote signature")
	}
	remoteSig, err := ecdsa.ParseDERSignature(remoteRawSig[:len(remoteRawSig)-1])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	fundingScript, err := dlcInput.fundingScript()
	if err != nil {
		return err
	}
	op, err := dlcInput.outpoint()
	if err != nil {
		return err
	}
	idx, err := findInputIndex(tx, op)
	if err != nil {
		return err
	}
	prevScript, err := P2WSHScript(fundingScript)
	if err != nil {
		return err
	}
	hash, err := witnessSigHash(tx, idx, fundingScript, prevScript, dlcInput.FundAmount)
	if err != nil {
		return err
	}
	if !remoteSig.Verify(hash, otherPub) {
		return NewError(ErrInvalidSignature, "remote funding signature does not verify")
	}

	finalizeMultisigWitness(tx, idx, fundingScript, myPub, mySig, otherPub, remoteRawSig)
	return nil
}

// finalizeMultisigWitness attaches the completed 2-of-2 witness for the
// input at idx. The signatures are ordered by ascending compressed pubkey,
// the same rule FundingScript uses for key placement, and the leading
// witness item is the empty element CHECKMULTISIG pops.
func finalizeMultisigWitness(tx *wire.MsgTx, idx int, fundingScript []byte,
	pubA *btcec.PublicKey, sigA []byte, pubB *btcec.PublicKey, sigB []byte) {

	firstSig, secondSig := sigA, sigB
	if bytes.Compare(pubA.SerializeCompressed(), pubB.SerializeCompressed()) > 0 {
		firstSig, secondSig = sigB, sigA
	}
	tx.TxIn[idx].Witness = wire.TxWitness{nil, firstSig, secondSig, fundingScript}
}
