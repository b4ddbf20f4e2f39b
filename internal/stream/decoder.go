// internal/stream/decoder.go
package stream

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
)

// ErrIgnored marks frames that are valid but carry nothing for the engine
// (subscription acks, unknown methods).
var ErrIgnored = errors.New("frame ignored")

// wsRequest is an outgoing JSON-RPC request.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// wsFrame is any incoming frame: a response to a request or a notification.
type wsFrame struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wsError        `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params *struct {
		Subscription int64           `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params,omitempty"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *wsError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

type txNotification struct {
	Signature   string `json:"signature"`
	Slot        uint64 `json:"slot"`
	Transaction struct {
		Transaction []string `json:"transaction"`
		Meta        *struct {
			Err             interface{} `json:"err"`
			LoadedAddresses *struct {
				Writable []string `json:"writable"`
				Readonly []string `json:"readonly"`
			} `json:"loadedAddresses"`
			InnerInstructions []struct {
				Index        int `json:"index"`
				Instructions []struct {
					ProgramIDIndex uint16   `json:"programIdIndex"`
					Accounts       []uint16 `json:"accounts"`
					Data           string   `json:"data"`
				} `json:"instructions"`
			} `json:"innerInstructions"`
		} `json:"meta"`
	} `json:"transaction"`
}

type programNotification struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data  []string `json:"data"`
			Owner string   `json:"owner"`
		} `json:"account"`
	} `json:"value"`
}

type slotNotification struct {
	Parent uint64 `json:"parent"`
	Root   uint64 `json:"root"`
	Slot   uint64 `json:"slot"`
}

// Decoder turns notification frames into events. Anything that does not
// have the expected shape is rejected with an error and never reaches the
// engine.
type Decoder struct {
	programID solana.PublicKey
}

// NewDecoder creates a decoder for the given Pump.fun program.
func NewDecoder(programID solana.PublicKey) *Decoder {
	return &Decoder{programID: programID}
}

// Decode parses a notification by method name.
func (d *Decoder) Decode(method string, result json.RawMessage) (Event, error) {
	switch method {
	case "transactionNotification":
		var n txNotification
		if err := json.Unmarshal(result, &n); err != nil {
			return nil, fmt.Errorf("transaction notification: %w", err)
		}
		return d.decodeTransaction(&n)
	case "programNotification", "accountNotification":
		var n programNotification
		if err := json.Unmarshal(result, &n); err != nil {
			return nil, fmt.Errorf("program notification: %w", err)
		}
		return d.decodeCurve(&n)
	case "slotNotification":
		var n slotNotification
		if err := json.Unmarshal(result, &n); err != nil {
			return nil, fmt.Errorf("slot notification: %w", err)
		}
		if n.Slot == 0 {
			return nil, errors.New("slot notification without slot")
		}
		return &SlotEvent{Slot: n.Slot, Parent: n.Parent, Root: n.Root}, nil
	default:
		return nil, fmt.Errorf("%w: method %q", ErrIgnored, method)
	}
}

func decodeBase64Pair(pair []string) ([]byte, error) {
	if len(pair) != 2 || pair[1] != "base64" {
		return nil, fmt.Errorf("unexpected data encoding %v", pair)
	}
	return base64.StdEncoding.DecodeString(pair[0])
}

func (d *Decoder) decodeTransaction(n *txNotification) (*TransactionEvent, error) {
	raw, err := decodeBase64Pair(n.Transaction.Transaction)
	if err != nil {
		return nil, err
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if len(tx.Signatures) == 0 || len(tx.Message.AccountKeys) == 0 {
		return nil, errors.New("transaction without signatures or keys")
	}

	keys := append([]solana.PublicKey{}, tx.Message.AccountKeys...)
	ev := &TransactionEvent{
		Signature: tx.Signatures[0],
		Slot:      n.Slot,
		FeePayer:  tx.Message.AccountKeys[0],
	}

	meta := n.Transaction.Meta
	if meta != nil {
		// v0: lookup-table keys follow the static keys, writable first.
		if la := meta.LoadedAddresses; la != nil {
			for _, group := range [][]string{la.Writable, la.Readonly} {
				for _, s := range group {
					pk, err := solana.PublicKeyFromBase58(s)
					if err != nil {
						return nil, fmt.Errorf("loaded address: %w", err)
					}
					keys = append(keys, pk)
				}
			}
		}
		ev.Err = meta.Err
		ev.Failed = meta.Err != nil
	}
	ev.AccountKeys = keys

	for _, ix := range tx.Message.Instructions {
		if dec, ok := d.decodeCompiled(keys, ix.ProgramIDIndex, ix.Accounts, ix.Data); ok {
			ev.Instructions = append(ev.Instructions, dec)
		}
	}
	if meta != nil {
		for _, inner := range meta.InnerInstructions {
			for _, ix := range inner.Instructions {
				data, err := base58.Decode(ix.Data)
				if err != nil {
					continue
				}
				if dec, ok := d.decodeCompiled(keys, ix.ProgramIDIndex, ix.Accounts, data); ok {
					ev.Instructions = append(ev.Instructions, dec)
				}
			}
		}
	}
	return ev, nil
}

func (d *Decoder) decodeCompiled(keys []solana.PublicKey, programIdx uint16, accounts []uint16, data []byte) (pumpfun.DecodedInstruction, bool) {
	if int(programIdx) >= len(keys) || !keys[programIdx].Equals(d.programID) {
		return pumpfun.DecodedInstruction{}, false
	}
	resolved := make([]solana.PublicKey, 0, len(accounts))
	for _, idx := range accounts {
		if int(idx) >= len(keys) {
			return pumpfun.DecodedInstruction{}, false
		}
		resolved = append(resolved, keys[idx])
	}
	return pumpfun.DecodeInstruction(resolved, data)
}

func (d *Decoder) decodeCurve(n *programNotification) (*CurveUpdate, error) {
	account, err := solana.PublicKeyFromBase58(n.Value.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("curve pubkey: %w", err)
	}
	raw, err := decodeBase64Pair(n.Value.Account.Data)
	if err != nil {
		return nil, err
	}
	if len(raw) < 8 || !bytes.Equal(raw[:8], pumpfun.BondingCurveAccountDiscriminator[:]) {
		return nil, fmt.Errorf("account %s: unexpected discriminator", account)
	}
	curve, ok := pumpfun.ParseBondingCurve(raw)
	if !ok {
		return nil, fmt.Errorf("account %s is not a bonding curve", account)
	}
	return &CurveUpdate{Account: account, Curve: curve, Slot: n.Context.Slot}, nil
}
