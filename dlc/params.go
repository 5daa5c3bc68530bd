// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package dlc

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// ContractID identifies a DLC. It is derived from the funding transaction
// txid, the funding output index, and a session identifier.
type ContractID = [32]byte

// ContractIDFromBytes converts a byte slice to a ContractID. The slice must
// be exactly 32 bytes.
func ContractIDFromBytes(b []byte) (ContractID, error) {
	var id ContractID
	if len(b) != 32 {
		return id, fmt.Errorf("%w: contract id must be 32 bytes, got %d",
			ErrInvalidArgument, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// TxInputInfo describes an ordinary UTXO a party contributes to the funding
// transaction. RedeemScript is empty for native segwit inputs and holds the
// witness program for p2sh-wrapped segwit inputs. MaxWitnessLen is the upper
// bound on the final witness size, used only for fee estimation.
type TxInputInfo struct {
	Outpoint      wire.OutPoint
	RedeemScript  []byte
	MaxWitnessLen int
	SerialID      uint64
}

// DlcInputInfo describes a funding input that spends the 2-of-2 funding
// output of a prior contract, splicing its value into a new one. The fund
// public keys are those of the prior contract, which may differ from the
// parties' keys in the new one.
type DlcInputInfo struct {
	FundTx           *wire.MsgTx
	FundVout         uint32
	LocalFundPubKey  *btcec.PublicKey
	RemoteFundPubKey *btcec.PublicKey
	FundAmount       btcutil.Amount
	MaxWitnessLen    int
	InputSerialID    uint64
	ContractID       ContractID
}

// outpoint returns the prior funding outpoint this input spends.
func (d *DlcInputInfo) outpoint() (wire.OutPoint, error) {
	if d.FundTx == nil {
		return wire.OutPoint{}, NewError(ErrInvalidArgument, "dlc input has no funding transaction")
	}
	if int(d.FundVout) >= len(d.FundTx.TxOut) {
		return wire.OutPoint{}, fmt.Errorf("%w: fund vout %d out of range for %d outputs",
			ErrInvalidTxReference, d.FundVout, len(d.FundTx.TxOut))
	}
	return wire.OutPoint{Hash: d.FundTx.TxHash(), Index: d.FundVout}, nil
}

// fundingScript returns the prior contract's 2-of-2 script.
func (d *DlcInputInfo) fundingScript() ([]byte, error) {
	return FundingScript(d.LocalFundPubKey, d.RemoteFundPubKey)
}

// PartyParams collects everything one party contributes to contract
// construction. Values are caller-owned and never mutated.
type PartyParams struct {
	FundPubKey     *btcec.PublicKey
	ChangeScript   []byte
	ChangeSerialID uint64
	PayoutScript   []byte
	PayoutSerialID uint64
	Inputs         []TxInputInfo
	DlcInputs      []DlcInputInfo

	// InputAmount is the total value of all declared inputs, DLC-chained
	// ones included.
	InputAmount btcutil.Amount
	Collateral  btcutil.Amount
}

// validate performs the structural checks shared by the transaction
// constructors.
func (p *PartyParams) validate() error {
	if p.FundPubKey == nil {
		return NewError(ErrInvalidKey, "missing fund public key")
	}
	if len(p.ChangeScript) == 0 || len(p.PayoutScript) == 0 {
		return NewError(ErrInvalidArgument, "missing change or payout script")
	}
	if p.Collateral <= 0 {
		return NewError(ErrInvalidArgument, "collateral must be positive")
	}
	return nil
}

// Payout is one outcome's division of the total collateral between the
// offering and accepting parties.
type Payout struct {
	Offer  btcutil.Amount
	Accept btcutil.Amount
}

// DlcTransactions is the complete transaction set of a contract: the funding
// transaction, one CET per outcome, and the refund transaction, along with
// the 2-of-2 script locking the funding output.
type DlcTransactions struct {
	Fund          *wire.MsgTx
	Cets          []*wire.MsgTx
	Refund        *wire.MsgTx
	FundingScript []byte
}

// FundOutputIndex locates the funding output within the funding transaction
// by its p2wsh script.
func (d *DlcTransactions) FundOutputIndex() (uint32, error) {
	spk, err := P2WSHScript(d.FundingScript)
	if err != nil {
		return 0, err
	}
	for i, out := range d.Fund.TxOut {
		if bytes.Equal(out.PkScript, spk) {
			return uint32(i), nil
		}
	}
	return 0, NewError(ErrInvalidTxReference, "funding output not found")
}

// FundOutpoint returns the outpoint the CETs and refund transaction spend.
func (d *DlcTransactions) FundOutpoint() (wire.OutPoint, error) {
	vout, err := d.FundOutputIndex()
	if err != nil {
		return wire.OutPoint{}, err
	}
	return wire.OutPoint{Hash: d.Fund.TxHash(), Index: vout}, nil
}
