package agent

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dhruv457457/AutoPay/pkg/types"
)

// Execution modes understood by the delegation manager. Single mode carries
// one packed call; batch mode carries an ABI-encoded call array.
var (
	ModeSingleDefault = [32]byte{}
	ModeBatchDefault  = [32]byte{0x01}
)

var (
	executePaymentSelector    = crypto.Keccak256([]byte("executePayment(uint256)"))[:4]
	redeemDelegationsSelector = crypto.Keccak256([]byte("redeemDelegations(bytes[],bytes32[],bytes[])"))[:4]
)

var (
	uint256Type = mustABIType("uint256", nil)
	bytesType   = mustABIType("bytes", nil)
	bytes32Type = mustABIType("bytes32", nil)

	delegationArrayType = mustABIType("tuple[]", []abi.ArgumentMarshaling{
		{Name: "delegate", Type: "address"},
		{Name: "delegator", Type: "address"},
		{Name: "authority", Type: "bytes32"},
		{Name: "caveats", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "enforcer", Type: "address"},
			{Name: "terms", Type: "bytes"},
			{Name: "args", Type: "bytes"},
		}},
		{Name: "salt", Type: "uint256"},
		{Name: "signature", Type: "bytes"},
	})

	executionArrayType = mustABIType("tuple[]", []abi.ArgumentMarshaling{
		{Name: "target", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "callData", Type: "bytes"},
	})
)

func mustABIType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", t, err))
	}
	return typ
}

type abiCaveat struct {
	Enforcer common.Address
	Terms    []byte
	Args     []byte
}

type abiDelegation struct {
	Delegate  common.Address
	Delegator common.Address
	Authority [32]byte
	Caveats   []abiCaveat
	Salt      *big.Int
	Signature []byte
}

type abiExecution struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// EncodeExecutePayment builds the calldata for one payment: the
// executePayment(uint256) selector plus the subscription id. Amount and token
// were fixed on chain at creation time and are not re-derived.
func EncodeExecutePayment(subscriptionID string) ([]byte, error) {
	id, ok := new(big.Int).SetString(subscriptionID, 10)
	if !ok {
		return nil, fmt.Errorf("subscription id %q is not a decimal integer", subscriptionID)
	}
	packed, err := abi.Arguments{{Type: uint256Type}}.Pack(id)
	if err != nil {
		return nil, fmt.Errorf("pack subscription id: %w", err)
	}
	return append(append([]byte{}, executePaymentSelector...), packed...), nil
}

// EncodeRedeemDelegations wraps a group's executions and its signed
// delegation into one redeemDelegations calldata blob for the delegation
// manager. Single execution uses the packed single mode; multiple use the
// ABI-encoded batch mode.
func EncodeRedeemDelegations(d types.Delegation, executions []types.Execution) ([]byte, error) {
	if len(executions) == 0 {
		return nil, fmt.Errorf("no executions to redeem")
	}

	converted, err := convertDelegation(d)
	if err != nil {
		return nil, err
	}
	permissionContext, err := abi.Arguments{{Type: delegationArrayType}}.Pack([]abiDelegation{converted})
	if err != nil {
		return nil, fmt.Errorf("pack delegation chain: %w", err)
	}

	var (
		mode     [32]byte
		execData []byte
	)
	if len(executions) == 1 {
		mode = ModeSingleDefault
		execData = packSingleExecution(executions[0])
	} else {
		mode = ModeBatchDefault
		execData, err = packBatchExecutions(executions)
		if err != nil {
			return nil, err
		}
	}

	outer := abi.Arguments{
		{Type: mustABIType("bytes[]", nil)},
		{Type: mustABIType("bytes32[]", nil)},
		{Type: mustABIType("bytes[]", nil)},
	}
	packed, err := outer.Pack([][]byte{permissionContext}, [][32]byte{mode}, [][]byte{execData})
	if err != nil {
		return nil, fmt.Errorf("pack redeemDelegations arguments: %w", err)
	}
	return append(append([]byte{}, redeemDelegationsSelector...), packed...), nil
}

// packSingleExecution concatenates target, value and calldata the way single
// mode expects: 20 bytes target, 32 bytes value, raw calldata.
func packSingleExecution(e types.Execution) []byte {
	value := e.Value
	if value == nil {
		value = new(big.Int)
	}
	out := make([]byte, 0, 52+len(e.CallData))
	out = append(out, e.Target.Bytes()...)
	out = append(out, common.LeftPadBytes(value.Bytes(), 32)...)
	return append(out, e.CallData...)
}

func packBatchExecutions(executions []types.Execution) ([]byte, error) {
	converted := make([]abiExecution, 0, len(executions))
	for _, e := range executions {
		value := e.Value
		if value == nil {
			value = new(big.Int)
		}
		converted = append(converted, abiExecution{Target: e.Target, Value: value, CallData: e.CallData})
	}
	packed, err := abi.Arguments{{Type: executionArrayType}}.Pack(converted)
	if err != nil {
		return nil, fmt.Errorf("pack execution batch: %w", err)
	}
	return packed, nil
}

func convertDelegation(d types.Delegation) (abiDelegation, error) {
	authority, err := decodeBytes32(d.Authority, types.RootAuthority)
	if err != nil {
		return abiDelegation{}, fmt.Errorf("authority: %w", err)
	}
	salt, err := decodeUint256(d.Salt)
	if err != nil {
		return abiDelegation{}, fmt.Errorf("salt: %w", err)
	}
	signature, err := decodeHex(d.Signature)
	if err != nil {
		return abiDelegation{}, fmt.Errorf("signature: %w", err)
	}

	caveats := make([]abiCaveat, 0, len(d.Caveats))
	for i, c := range d.Caveats {
		terms, err := decodeHex(c.Terms)
		if err != nil {
			return abiDelegation{}, fmt.Errorf("caveat %d terms: %w", i, err)
		}
		args, err := decodeHex(c.Args)
		if err != nil {
			return abiDelegation{}, fmt.Errorf("caveat %d args: %w", i, err)
		}
		caveats = append(caveats, abiCaveat{
			Enforcer: common.HexToAddress(c.Enforcer),
			Terms:    terms,
			Args:     args,
		})
	}

	return abiDelegation{
		Delegate:  common.HexToAddress(d.Delegate),
		Delegator: common.HexToAddress(d.Delegator),
		Authority: authority,
		Caveats:   caveats,
		Salt:      salt,
		Signature: signature,
	}, nil
}

func decodeHex(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	return hexutil.Decode(s)
}

func decodeBytes32(s, fallback string) ([32]byte, error) {
	if s == "" {
		s = fallback
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return [32]byte{}, err
	}
	if len(raw) > 32 {
		return [32]byte{}, fmt.Errorf("value %s longer than 32 bytes", s)
	}
	var out [32]byte
	copy(out[32-len(raw):], raw)
	return out, nil
}

func decodeUint256(s string) (*big.Int, error) {
	if s == "" || s == "0x" {
		return new(big.Int), nil
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}
