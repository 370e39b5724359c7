package chain

import (
	"crypto/ecdsa"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var privateKeyPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Identity is the agent's execution identity: the signer key, its EOA, and
// the derived smart-account address every stored delegation must name as its
// delegate. Established once at startup and immutable afterwards.
type Identity struct {
	signerKey    *ecdsa.PrivateKey
	EOA          common.Address
	SmartAccount common.Address
	Env          Environment
}

// Bootstrap derives the agent identity from its signer key and the target
// chain's delegation environment. Failure disables the payment loop but not
// the HTTP surface, so callers must treat the error as "not ready" rather
// than process-fatal.
func Bootstrap(privateKeyHex string, chainID uint64, deploySalt string) (*Identity, error) {
	if !privateKeyPattern.MatchString(privateKeyHex) {
		return nil, fmt.Errorf("invalid or missing agent private key: expected 0x-prefixed 32-byte hex")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse agent private key: %w", err)
	}

	env, err := EnvironmentFor(chainID)
	if err != nil {
		return nil, err
	}

	salt, err := decodeSalt(deploySalt)
	if err != nil {
		return nil, err
	}

	eoa := crypto.PubkeyToAddress(key.PublicKey)
	return &Identity{
		signerKey:    key,
		EOA:          eoa,
		SmartAccount: counterfactualAddress(env, eoa, salt),
		Env:          env,
	}, nil
}

// Sign produces a 65-byte [R || S || V] signature over a 32-byte digest with
// the agent's signer key.
func (id *Identity) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	return crypto.Sign(digest, id.signerKey)
}

// counterfactualAddress computes the CREATE2 address the factory would deploy
// the agent's hybrid smart account to. The account need not be deployed for
// delegations to name it.
func counterfactualAddress(env Environment, owner common.Address, deploySalt []byte) common.Address {
	salt := crypto.Keccak256Hash(owner.Bytes(), deploySalt)
	initCodeHash := crypto.Keccak256(env.HybridImplementation.Bytes(), owner.Bytes())
	return crypto.CreateAddress2(env.AccountFactory, salt, initCodeHash)
}

func decodeSalt(deploySalt string) ([]byte, error) {
	if deploySalt == "" || deploySalt == "0x" {
		return nil, nil
	}
	salt, err := hexutil.Decode(deploySalt)
	if err != nil {
		return nil, fmt.Errorf("parse deploy salt: %w", err)
	}
	return salt, nil
}
