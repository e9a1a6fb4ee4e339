package solana_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snipewatch/pkg/solana"
	"snipewatch/pkg/solana/stub"
)

const (
	watched   = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	recipient = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	bystander = "2ojv9BAiHUrvsm9gxDe7fJSzbNZSJcxZvf8dqmWGHG8S"
	sigLatest = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"
	sigOlder  = "3AsdoALgZFuq2oUVWrDYhg2pNeaLJKPLf8hU2mQ6U8qJxeJ6hsrhAW1M5PjHw9rVuGtzEXUZhGuz9DVbmPMFF4aR"
)

func sol(n uint64) uint64 { return n * solana.LamportsPerSol }

func transferTx(sig string, keys []string, pre, post []uint64) *solana.TransactionDetail {
	return &solana.TransactionDetail{
		Signature:    sig,
		AccountKeys:  keys,
		PreBalances:  pre,
		PostBalances: post,
	}
}

func TestFindRecipient(t *testing.T) {
	ctx := context.Background()

	t.Run("account gaining ninety percent matches", func(t *testing.T) {
		q := stub.NewQueryClient()
		q.AddSignatures(watched, solana.SignatureInfo{Signature: sigLatest}, solana.SignatureInfo{Signature: sigOlder})
		q.AddTransaction(transferTx(sigLatest,
			[]string{watched, recipient},
			[]uint64{sol(1000), sol(1)},
			[]uint64{sol(550), sol(1) + sol(405)},
		))

		a := solana.NewTransferAnalyzer(q, solana.AnalyzerConfig{})
		got, ok := a.FindRecipient(ctx, watched, sol(450))
		require.True(t, ok)
		assert.Equal(t, recipient, got)
	})

	t.Run("gain below ratio is ignored", func(t *testing.T) {
		q := stub.NewQueryClient()
		q.AddSignatures(watched, solana.SignatureInfo{Signature: sigLatest})
		q.AddTransaction(transferTx(sigLatest,
			[]string{watched, recipient},
			[]uint64{sol(1000), 0},
			[]uint64{sol(550), sol(404)},
		))

		a := solana.NewTransferAnalyzer(q, solana.AnalyzerConfig{})
		_, ok := a.FindRecipient(ctx, watched, sol(450))
		assert.False(t, ok)
	})

	t.Run("first matching account wins", func(t *testing.T) {
		q := stub.NewQueryClient()
		q.AddSignatures(watched, solana.SignatureInfo{Signature: sigLatest})
		q.AddTransaction(transferTx(sigLatest,
			[]string{watched, bystander, recipient},
			[]uint64{sol(2000), 0, 0},
			[]uint64{sol(1000), sol(500), sol(500)},
		))

		a := solana.NewTransferAnalyzer(q, solana.AnalyzerConfig{})
		got, ok := a.FindRecipient(ctx, watched, sol(450))
		require.True(t, ok)
		assert.Equal(t, bystander, got)
	})

	t.Run("failed latest transaction yields nothing", func(t *testing.T) {
		q := stub.NewQueryClient()
		q.AddSignatures(watched, solana.SignatureInfo{Signature: sigLatest, Err: map[string]interface{}{"InstructionError": 0}})
		q.AddTransaction(transferTx(sigLatest, []string{watched, recipient}, []uint64{sol(1000), 0}, []uint64{0, sol(1000)}))

		a := solana.NewTransferAnalyzer(q, solana.AnalyzerConfig{})
		_, ok := a.FindRecipient(ctx, watched, sol(450))
		assert.False(t, ok)
		assert.Equal(t, 0, q.Calls("getTransaction"))
	})

	t.Run("only the newest signature is inspected", func(t *testing.T) {
		q := stub.NewQueryClient()
		q.AddSignatures(watched, solana.SignatureInfo{Signature: sigLatest}, solana.SignatureInfo{Signature: sigOlder})
		q.AddTransaction(transferTx(sigLatest, []string{watched}, []uint64{sol(10)}, []uint64{sol(9)}))
		q.AddTransaction(transferTx(sigOlder, []string{watched, recipient}, []uint64{sol(1000), 0}, []uint64{0, sol(1000)}))

		a := solana.NewTransferAnalyzer(q, solana.AnalyzerConfig{})
		_, ok := a.FindRecipient(ctx, watched, sol(450))
		assert.False(t, ok)
	})

	t.Run("query failure yields nothing", func(t *testing.T) {
		q := stub.NewQueryClient()
		q.Fail(watched)

		a := solana.NewTransferAnalyzer(q, solana.AnalyzerConfig{})
		_, ok := a.FindRecipient(ctx, watched, sol(450))
		assert.False(t, ok)
	})

	t.Run("configurable ratio", func(t *testing.T) {
		q := stub.NewQueryClient()
		q.AddSignatures(watched, solana.SignatureInfo{Signature: sigLatest})
		q.AddTransaction(transferTx(sigLatest,
			[]string{watched, recipient},
			[]uint64{sol(1000), 0},
			[]uint64{sol(550), sol(300)},
		))

		a := solana.NewTransferAnalyzer(q, solana.AnalyzerConfig{MatchRatio: 0.5})
		got, ok := a.FindRecipient(ctx, watched, sol(450))
		require.True(t, ok)
		assert.Equal(t, recipient, got)
	})
}

func TestExtractMint(t *testing.T) {
	ctx := context.Background()

	t.Run("skips wrapped SOL and invalid mints", func(t *testing.T) {
		q := stub.NewQueryClient()
		q.AddMint(mintB)
		q.AddTransaction(&solana.TransactionDetail{
			Signature:      sigLatest,
			PostTokenMints: []string{solana.WrappedSolMint, mintA, mintB},
		})
		v := solana.NewMintValidator(q, 0)

		got, ok := solana.NewMintExtractor(q, v).ExtractMint(ctx, sigLatest)
		require.True(t, ok)
		assert.Equal(t, mintB, got)
		assert.Equal(t, 0, q.Calls("getMintInfo:"+solana.WrappedSolMint))
	})

	t.Run("unknown transaction", func(t *testing.T) {
		q := stub.NewQueryClient()
		v := solana.NewMintValidator(q, 0)

		_, ok := solana.NewMintExtractor(q, v).ExtractMint(ctx, sigOlder)
		assert.False(t, ok)
	})
}
