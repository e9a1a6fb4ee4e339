package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// newFakeRPC answers JSON-RPC calls with the result registered for the method.
// A missing method answers with a null result.
func newFakeRPC(t *testing.T, results map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      call.ID,
			"result":  results[call.Method],
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mintAccountData(authority solana.PublicKey, supply uint64, decimals uint8) []byte {
	data := make([]byte, mintAccountSize)
	binary.LittleEndian.PutUint32(data[0:4], 1)
	copy(data[4:36], authority[:])
	binary.LittleEndian.PutUint64(data[36:44], supply)
	data[44] = decimals
	data[45] = 1
	// freeze authority: none
	return data
}

func TestRPCQueryClientGetBalance(t *testing.T) {
	srv := newFakeRPC(t, map[string]interface{}{
		"getBalance": map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value":   uint64(1_500_000_000),
		},
	})

	client := NewRPCQueryClient(srv.URL)
	bal, err := client.GetBalance(context.Background(), solana.NewWallet().PublicKey().String())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), bal)

	_, err = client.GetBalance(context.Background(), "not-an-address")
	assert.Error(t, err)
}

func TestRPCQueryClientGetRecentSignatures(t *testing.T) {
	sig1 := solana.Signature{1}
	sig2 := solana.Signature{2}
	srv := newFakeRPC(t, map[string]interface{}{
		"getSignaturesForAddress": []map[string]interface{}{
			{"signature": sig1.String(), "slot": 20, "err": nil, "confirmationStatus": "confirmed"},
			{"signature": sig2.String(), "slot": 19, "err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}, "confirmationStatus": "confirmed"},
		},
	})

	client := NewRPCQueryClient(srv.URL)
	sigs, err := client.GetRecentSignatures(context.Background(), solana.NewWallet().PublicKey().String(), 2)
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, sig1.String(), sigs[0].Signature)
	assert.False(t, sigs[0].Failed())
	assert.True(t, sigs[1].Failed())
}

func TestRPCQueryClientGetTransaction(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(450*LamportsPerSol, from, to).Build()},
		solana.Hash{},
		solana.TransactionPayer(from),
	)
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	srv := newFakeRPC(t, map[string]interface{}{
		"getTransaction": map[string]interface{}{
			"slot":        42,
			"transaction": []string{base64.StdEncoding.EncodeToString(raw), "base64"},
			"meta": map[string]interface{}{
				"err":          nil,
				"fee":          5000,
				"preBalances":  []uint64{1000 * LamportsPerSol, 0, 1},
				"postBalances": []uint64{550 * LamportsPerSol, 450 * LamportsPerSol, 1},
				"postTokenBalances": []map[string]interface{}{
					{
						"accountIndex": 1,
						"mint":         mint.String(),
						"uiTokenAmount": map[string]interface{}{
							"amount": "1", "decimals": 0, "uiAmountString": "1",
						},
					},
				},
				"preTokenBalances":  []interface{}{},
				"innerInstructions": []interface{}{},
				"logMessages":       []string{},
				"loadedAddresses":   map[string]interface{}{"writable": []string{}, "readonly": []string{}},
			},
		},
	})

	client := NewRPCQueryClient(srv.URL)
	detail, err := client.GetTransaction(context.Background(), solana.Signature{7}.String())
	require.NoError(t, err)
	require.NotNil(t, detail)

	assert.Equal(t, uint64(42), detail.Slot)
	require.Len(t, detail.AccountKeys, 3)
	assert.Equal(t, from.String(), detail.AccountKeys[0])
	assert.Equal(t, to.String(), detail.AccountKeys[1])
	assert.Equal(t, []uint64{550 * LamportsPerSol, 450 * LamportsPerSol, 1}, detail.PostBalances)
	assert.Equal(t, []string{mint.String()}, detail.PostTokenMints)
}

func TestRPCQueryClientGetTransactionNotFound(t *testing.T) {
	srv := newFakeRPC(t, map[string]interface{}{})

	client := NewRPCQueryClient(srv.URL)
	detail, err := client.GetTransaction(context.Background(), solana.Signature{7}.String())
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestRPCQueryClientGetMintInfo(t *testing.T) {
	authority := solana.NewWallet().PublicKey()
	accountValue := func(owner solana.PublicKey, data []byte) map[string]interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": false,
				"lamports":   1461600,
				"owner":      owner.String(),
				"rentEpoch":  0,
			},
		}
	}

	t.Run("token program mint", func(t *testing.T) {
		srv := newFakeRPC(t, map[string]interface{}{
			"getAccountInfo": accountValue(tokenProgramID, mintAccountData(authority, 1_000_000, 6)),
		})
		info, err := NewRPCQueryClient(srv.URL).GetMintInfo(context.Background(), solana.NewWallet().PublicKey().String())
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, uint64(1_000_000), info.Supply)
		assert.Equal(t, uint8(6), info.Decimals)
		assert.Equal(t, authority.String(), info.MintAuthority)
		assert.Empty(t, info.FreezeAuthority)
	})

	t.Run("token-2022 mint", func(t *testing.T) {
		srv := newFakeRPC(t, map[string]interface{}{
			"getAccountInfo": accountValue(token2022ProgramID, mintAccountData(authority, 5, 9)),
		})
		info, err := NewRPCQueryClient(srv.URL).GetMintInfo(context.Background(), solana.NewWallet().PublicKey().String())
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, uint8(9), info.Decimals)
	})

	t.Run("wrong owner", func(t *testing.T) {
		srv := newFakeRPC(t, map[string]interface{}{
			"getAccountInfo": accountValue(solana.SystemProgramID, mintAccountData(authority, 5, 9)),
		})
		info, err := NewRPCQueryClient(srv.URL).GetMintInfo(context.Background(), solana.NewWallet().PublicKey().String())
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("short data", func(t *testing.T) {
		srv := newFakeRPC(t, map[string]interface{}{
			"getAccountInfo": accountValue(tokenProgramID, make([]byte, 40)),
		})
		info, err := NewRPCQueryClient(srv.URL).GetMintInfo(context.Background(), solana.NewWallet().PublicKey().String())
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("missing account", func(t *testing.T) {
		srv := newFakeRPC(t, map[string]interface{}{
			"getAccountInfo": map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": nil},
		})
		info, err := NewRPCQueryClient(srv.URL).GetMintInfo(context.Background(), solana.NewWallet().PublicKey().String())
		require.NoError(t, err)
		assert.Nil(t, info)
	})
}

func TestCheckEndpoints(t *testing.T) {
	healthy := newFakeRPC(t, map[string]interface{}{"getHealth": "ok"})

	results := CheckEndpoints(context.Background(), []string{healthy.URL, "http://127.0.0.1:1"}, defaultHealthTimeout)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.NotEmpty(t, results[1].Error)
}
