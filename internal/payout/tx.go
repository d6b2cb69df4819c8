// Package payout implements the Payout Engine: UTXO selection, transaction
// construction and signing, broadcast, and bounded retry for winning bets.
// Transaction construction is grounded on the Fantasim/hdpay BTC consolidation
// pattern (github.com/btcsuite/btcd's wire/txscript/btcec stack).
package payout

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/explorer"
)

// SelectUtxos implements the first-fit-then-combine-all rule from §4.7 step 4:
// prefer a single UTXO covering the required amount; fall back to every UTXO
// if and only if their sum covers it; otherwise fail with ErrInsufficientFunds.
func SelectUtxos(utxos []explorer.Utxo, required int64) ([]explorer.Utxo, error) {
	for _, u := range utxos {
		if u.Value >= required {
			return []explorer.Utxo{u}, nil
		}
	}

	var total int64
	for _, u := range utxos {
		total += u.Value
	}
	if total >= required {
		return utxos, nil
	}
	return nil, domain.ErrInsufficientFunds
}

// BuiltTx is an unsigned transaction ready for signing, plus the data the
// signer needs per input.
type BuiltTx struct {
	Tx          *wire.MsgTx
	Utxos       []explorer.Utxo
	PrevScripts [][]byte // pkScript of each spent UTXO, same order as Tx.TxIn
	NetworkFee  int64
}

// Build constructs an unsigned transaction paying amount to recipient from
// the vault address, with one output returning change to the vault when the
// change exceeds dustLimit (an output at or below dust is simply donated to
// the fee — broadcasting a dust output risks it being unspendable or
// rejected by relay policy).
func Build(vaultAddress string, utxos []explorer.Utxo, recipient string, amount, feeEstimate, dustLimit int64, netParams *chaincfg.Params) (*BuiltTx, error) {
	recipientAddr, err := btcutil.DecodeAddress(recipient, netParams)
	if err != nil {
		return nil, fmt.Errorf("payout.Build: decode recipient address: %w", err)
	}
	recipientScript, err := txscript.PayToAddrScript(recipientAddr)
	if err != nil {
		return nil, fmt.Errorf("payout.Build: recipient script: %w", err)
	}

	vaultAddr, err := btcutil.DecodeAddress(vaultAddress, netParams)
	if err != nil {
		return nil, fmt.Errorf("payout.Build: decode vault address: %w", err)
	}
	vaultScript, err := txscript.PayToAddrScript(vaultAddr)
	if err != nil {
		return nil, fmt.Errorf("payout.Build: vault script: %w", err)
	}

	msgTx := wire.NewMsgTx(wire.TxVersion)
	prevScripts := make([][]byte, 0, len(utxos))
	var totalIn int64

	for _, u := range utxos {
		hash, err := chainhash.NewHashFromStr(u.Txid)
		if err != nil {
			return nil, fmt.Errorf("payout.Build: parse UTXO txid %q: %w", u.Txid, err)
		}
		txIn := wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil)
		txIn.Sequence = wire.MaxTxInSequenceNum
		msgTx.AddTxIn(txIn)
		prevScripts = append(prevScripts, vaultScript)
		totalIn += u.Value
	}

	change := totalIn - amount - feeEstimate
	if change < 0 {
		return nil, domain.ErrInsufficientFunds
	}

	msgTx.AddTxOut(wire.NewTxOut(amount, recipientScript))
	if change > dustLimit {
		msgTx.AddTxOut(wire.NewTxOut(change, vaultScript))
	}

	return &BuiltTx{
		Tx:          msgTx,
		Utxos:       utxos,
		PrevScripts: prevScripts,
		NetworkFee:  feeEstimate,
	}, nil
}

// Sign signs every input of built with privKey — the vault only ever spends
// from its own single address, so every input shares one key — and zeroes
// the key immediately after use. Every input is signed as P2WPKH (a segwit v0
// witness signature); legacy (P2PKH) and taproot (P2TR) inputs are not handled.
func Sign(built *BuiltTx, privKey *btcec.PrivateKey) error {
	defer privKey.Zero()

	prevOutFetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range built.Tx.TxIn {
		prevOutFetcher.AddPrevOut(in.PreviousOutPoint, &wire.TxOut{
			Value:    built.Utxos[i].Value,
			PkScript: built.PrevScripts[i],
		})
	}
	sigHashes := txscript.NewTxSigHashes(built.Tx, prevOutFetcher)

	for i := range built.Tx.TxIn {
		witness, err := txscript.WitnessSignature(
			built.Tx, sigHashes, i, built.Utxos[i].Value,
			built.PrevScripts[i], txscript.SigHashAll, privKey, true,
		)
		if err != nil {
			return fmt.Errorf("payout.Sign: input %d: %w", i, err)
		}
		built.Tx.TxIn[i].Witness = witness
	}
	return nil
}

// Serialize encodes a signed transaction to raw hex for broadcast.
func Serialize(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("payout.Serialize: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// ClassifyAddress determines the AddressType a Bitcoin address string
// represents. The admin wallet-creation handler does not call it; it stores
// the address_type given in the request.
func ClassifyAddress(address string, netParams *chaincfg.Params) (domain.AddressType, error) {
	addr, err := btcutil.DecodeAddress(address, netParams)
	if err != nil {
		return "", fmt.Errorf("payout.ClassifyAddress: %w", err)
	}
	switch addr.(type) {
	case *btcutil.AddressTaproot:
		return domain.AddressTaproot, nil
	case *btcutil.AddressWitnessPubKeyHash, *btcutil.AddressWitnessScriptHash:
		return domain.AddressSegwit, nil
	default:
		return domain.AddressLegacy, nil
	}
}
