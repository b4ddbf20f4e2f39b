// =============================
// File: internal/dex/pumpfun/events.go
// =============================
package pumpfun

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Initial reserves of a freshly created curve (mirrors the global account defaults).
const (
	InitialVirtualTokenReserves uint64 = 1_073_000_000_000_000
	InitialVirtualSolReserves   uint64 = 30_000_000_000
	InitialRealTokenReserves    uint64 = 793_100_000_000_000
	InitialTokenTotalSupply     uint64 = 1_000_000_000_000_000
)

// InitialBondingCurve returns the curve state right after a create.
func InitialBondingCurve(creator solana.PublicKey) *BondingCurve {
	return &BondingCurve{
		VirtualTokenReserves: InitialVirtualTokenReserves,
		VirtualSolReserves:   InitialVirtualSolReserves,
		RealTokenReserves:    InitialRealTokenReserves,
		TokenTotalSupply:     InitialTokenTotalSupply,
		Creator:              creator,
	}
}

// InstructionKind identifies a decoded Pump.fun instruction.
type InstructionKind int

const (
	InstructionUnknown InstructionKind = iota
	InstructionCreate
	InstructionBuy
	InstructionSell
)

func (k InstructionKind) String() string {
	switch k {
	case InstructionCreate:
		return "create"
	case InstructionBuy:
		return "buy"
	case InstructionSell:
		return "sell"
	default:
		return "unknown"
	}
}

// DecodedInstruction is a top-level Pump.fun instruction found in a transaction.
type DecodedInstruction struct {
	Kind         InstructionKind
	Mint         solana.PublicKey
	BondingCurve solana.PublicKey
	User         solana.PublicKey
	Creator      solana.PublicKey

	// create
	Name   string
	Symbol string
	URI    string

	// buy: token amount + max SOL cost; sell: token amount + min SOL output
	Amount   uint64
	SolLimit uint64
}

// Account positions inside the instruction account lists.
const (
	createMintIdx         = 0
	createBondingCurveIdx = 2
	createUserIdx         = 7

	tradeMintIdx         = 2
	tradeBondingCurveIdx = 3
	tradeUserIdx         = 6
)

// DecodeInstruction decodes a Pump.fun instruction from its resolved account
// list and raw data. ok is false for anything that is not a create, buy or
// sell with a well-formed payload.
func DecodeInstruction(accounts []solana.PublicKey, data []byte) (DecodedInstruction, bool) {
	if len(data) < 8 {
		return DecodedInstruction{}, false
	}
	disc := data[:8]

	switch {
	case bytes.Equal(disc, CreateDiscriminator[:]):
		return decodeCreate(accounts, data[8:])
	case bytes.Equal(disc, BuyDiscriminator[:]):
		return decodeTrade(InstructionBuy, accounts, data[8:])
	case bytes.Equal(disc, SellDiscriminator[:]):
		return decodeTrade(InstructionSell, accounts, data[8:])
	default:
		return DecodedInstruction{}, false
	}
}

func decodeTrade(kind InstructionKind, accounts []solana.PublicKey, args []byte) (DecodedInstruction, bool) {
	if len(args) < 16 || len(accounts) <= tradeUserIdx {
		return DecodedInstruction{}, false
	}
	return DecodedInstruction{
		Kind:         kind,
		Mint:         accounts[tradeMintIdx],
		BondingCurve: accounts[tradeBondingCurveIdx],
		User:         accounts[tradeUserIdx],
		Amount:       binary.LittleEndian.Uint64(args[0:8]),
		SolLimit:     binary.LittleEndian.Uint64(args[8:16]),
	}, true
}

func decodeCreate(accounts []solana.PublicKey, args []byte) (DecodedInstruction, bool) {
	if len(accounts) <= createUserIdx {
		return DecodedInstruction{}, false
	}
	r := &borshReader{buf: args}
	name, ok1 := r.string()
	symbol, ok2 := r.string()
	uri, ok3 := r.string()
	if !ok1 || !ok2 || !ok3 {
		return DecodedInstruction{}, false
	}

	ix := DecodedInstruction{
		Kind:         InstructionCreate,
		Mint:         accounts[createMintIdx],
		BondingCurve: accounts[createBondingCurveIdx],
		User:         accounts[createUserIdx],
		Name:         name,
		Symbol:       symbol,
		URI:          uri,
	}
	// Older program versions have no creator argument; the signer is the creator.
	if creator, ok := r.pubkey(); ok {
		ix.Creator = creator
	} else {
		ix.Creator = ix.User
	}
	return ix, true
}

type borshReader struct {
	buf []byte
	off int
}

func (r *borshReader) string() (string, bool) {
	if len(r.buf)-r.off < 4 {
		return "", false
	}
	n := int(binary.LittleEndian.Uint32(r.buf[r.off : r.off+4]))
	r.off += 4
	if n < 0 || len(r.buf)-r.off < n {
		return "", false
	}
	s := string(r.buf[r.off : r.off+n])
	r.off += n
	return s, true
}

func (r *borshReader) pubkey() (solana.PublicKey, bool) {
	if len(r.buf)-r.off < 32 {
		return solana.PublicKey{}, false
	}
	pk := solana.PublicKeyFromBytes(r.buf[r.off : r.off+32])
	r.off += 32
	return pk, true
}
