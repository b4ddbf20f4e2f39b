// ==============================================
// File: internal/dex/pumpfun/bonding_curve.go
// ==============================================
package pumpfun

import (
	"encoding/binary"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// BondingCurveAccountSize is the minimum length of a bonding curve account:
// discriminator, five u64 fields, complete flag and creator key.
const BondingCurveAccountSize = 8 + 5*8 + 1 + 32

// BondingCurve is the decoded state of a bonding curve account.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              solana.PublicKey
}

// ParseBondingCurve decodes raw account data. It returns ok == false when the
// data is too short to hold the layout; callers fall back to static estimates.
func ParseBondingCurve(data []byte) (*BondingCurve, bool) {
	if len(data) < BondingCurveAccountSize {
		return nil, false
	}

	offset := 8
	next := func() uint64 {
		v := binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
		return v
	}

	bc := &BondingCurve{}
	bc.VirtualTokenReserves = next()
	bc.VirtualSolReserves = next()
	bc.RealTokenReserves = next()
	bc.RealSolReserves = next()
	bc.TokenTotalSupply = next()
	bc.Complete = data[offset] != 0
	offset++
	bc.Creator = solana.PublicKeyFromBytes(data[offset : offset+32])

	return bc, true
}

// Encode serialises the curve back into account layout. Used by tests and
// by the simulator to fabricate account data.
func (bc *BondingCurve) Encode() []byte {
	data := make([]byte, BondingCurveAccountSize)
	copy(data[:8], BondingCurveAccountDiscriminator[:])
	offset := 8
	for _, v := range []uint64{
		bc.VirtualTokenReserves,
		bc.VirtualSolReserves,
		bc.RealTokenReserves,
		bc.RealSolReserves,
		bc.TokenTotalSupply,
	} {
		binary.LittleEndian.PutUint64(data[offset:offset+8], v)
		offset += 8
	}
	if bc.Complete {
		data[offset] = 1
	}
	offset++
	copy(data[offset:], bc.Creator.Bytes())
	return data
}

// BuyTokensOut returns the tokens received for solIn lamports:
// vT - k/(vS + solIn), with k = vT*vS, capped by the real token reserves.
func (bc *BondingCurve) BuyTokensOut(solIn uint64) uint64 {
	if bc.VirtualSolReserves == 0 || bc.VirtualTokenReserves == 0 {
		return 0
	}
	vT := new(big.Int).SetUint64(bc.VirtualTokenReserves)
	vS := new(big.Int).SetUint64(bc.VirtualSolReserves)
	k := new(big.Int).Mul(vT, vS)

	denom := new(big.Int).Add(vS, new(big.Int).SetUint64(solIn))
	newT := new(big.Int).Quo(k, denom)
	out := new(big.Int).Sub(vT, newT)
	if out.Sign() <= 0 {
		return 0
	}
	if bc.RealTokenReserves > 0 && out.Cmp(new(big.Int).SetUint64(bc.RealTokenReserves)) > 0 {
		return bc.RealTokenReserves
	}
	return out.Uint64()
}

// SellSolOut returns the lamports received for selling tokenIn:
// vS - k/(vT + tokenIn).
func (bc *BondingCurve) SellSolOut(tokenIn uint64) uint64 {
	if bc.VirtualSolReserves == 0 || bc.VirtualTokenReserves == 0 {
		return 0
	}
	vT := new(big.Int).SetUint64(bc.VirtualTokenReserves)
	vS := new(big.Int).SetUint64(bc.VirtualSolReserves)
	k := new(big.Int).Mul(vT, vS)

	denom := new(big.Int).Add(vT, new(big.Int).SetUint64(tokenIn))
	newS := new(big.Int).Quo(k, denom)
	out := new(big.Int).Sub(vS, newS)
	if out.Sign() <= 0 {
		return 0
	}
	return out.Uint64()
}

// FallbackTokensOut estimates tokens for solIn lamports when no curve state is
// available, using the fresh-curve rate.
func FallbackTokensOut(solIn uint64) uint64 {
	out := new(big.Int).Mul(new(big.Int).SetUint64(solIn), new(big.Int).SetUint64(FallbackTokensPerSol))
	out.Quo(out, big.NewInt(LamportsPerSol))
	return out.Uint64()
}
