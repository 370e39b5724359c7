package agent

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/dhruv457457/AutoPay/pkg/types"
)

func validDelegation() types.Delegation {
	return types.Delegation{
		Delegate:  subscriberB,
		Delegator: subscriberA,
		Authority: types.RootAuthority,
		Caveats: []types.Caveat{
			{Enforcer: ownerB, Terms: "0x0001", Args: "0x"},
		},
		Salt:      "0x01",
		Signature: "0xdeadbeef",
	}
}

func TestEncodeExecutePayment(t *testing.T) {
	data, err := EncodeExecutePayment("42")
	require.NoError(t, err)
	require.Len(t, data, 4+32)
	require.Equal(t, executePaymentSelector, data[:4])
	require.Equal(t, big.NewInt(42), new(big.Int).SetBytes(data[4:]))
}

func TestEncodeExecutePaymentRejectsNonDecimal(t *testing.T) {
	for _, id := range []string{"", "0x2a", "abc", "1.5"} {
		_, err := EncodeExecutePayment(id)
		require.Error(t, err, "id %q", id)
	}
}

func TestEncodeRedeemDelegationsSingle(t *testing.T) {
	callData, err := EncodeExecutePayment("1")
	require.NoError(t, err)

	target := common.HexToAddress(ownerA)
	data, err := EncodeRedeemDelegations(validDelegation(), []types.Execution{
		{Target: target, CallData: callData},
	})
	require.NoError(t, err)
	require.Equal(t, redeemDelegationsSelector, data[:4])

	// Single mode packs target||value||calldata and must appear verbatim in
	// the encoded payload.
	packed := packSingleExecution(types.Execution{Target: target, CallData: callData})
	require.Len(t, packed, 20+32+len(callData))
	require.True(t, bytes.Contains(data, packed))
	require.True(t, bytes.Contains(data, ModeSingleDefault[:]))
}

func TestEncodeRedeemDelegationsBatch(t *testing.T) {
	first, err := EncodeExecutePayment("1")
	require.NoError(t, err)
	second, err := EncodeExecutePayment("2")
	require.NoError(t, err)

	target := common.HexToAddress(ownerA)
	data, err := EncodeRedeemDelegations(validDelegation(), []types.Execution{
		{Target: target, CallData: first},
		{Target: target, CallData: second},
	})
	require.NoError(t, err)
	require.Equal(t, redeemDelegationsSelector, data[:4])
	require.True(t, bytes.Contains(data, ModeBatchDefault[:]))
	require.True(t, bytes.Contains(data, first))
	require.True(t, bytes.Contains(data, second))
}

func TestEncodeRedeemDelegationsNoExecutions(t *testing.T) {
	_, err := EncodeRedeemDelegations(validDelegation(), nil)
	require.Error(t, err)
}

func TestEncodeRedeemDelegationsDefaultsAuthorityAndSalt(t *testing.T) {
	d := validDelegation()
	d.Authority = ""
	d.Salt = ""

	converted, err := convertDelegation(d)
	require.NoError(t, err)

	root, err := decodeBytes32(types.RootAuthority, types.RootAuthority)
	require.NoError(t, err)
	require.Equal(t, root, converted.Authority)
	require.Zero(t, converted.Salt.Sign())
}

func TestConvertDelegationRejectsBadHex(t *testing.T) {
	d := validDelegation()
	d.Signature = "0xzz"
	_, err := convertDelegation(d)
	require.Error(t, err)
}
