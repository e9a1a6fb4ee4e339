package solana_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"snipewatch/pkg/solana"
	"snipewatch/pkg/solana/stub"
)

const (
	mintA = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	mintB = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	mintC = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

func TestMintValidatorCachesValidMint(t *testing.T) {
	q := stub.NewQueryClient()
	q.AddMint(mintA)
	v := solana.NewMintValidator(q, 0)

	assert.True(t, v.IsValidMint(context.Background(), mintA))
	assert.True(t, v.IsValidMint(context.Background(), mintA))
	assert.Equal(t, 1, q.Calls("getMintInfo:"+mintA))
}

func TestMintValidatorCachesFailure(t *testing.T) {
	q := stub.NewQueryClient()
	q.Fail(mintA)
	v := solana.NewMintValidator(q, 0)

	assert.False(t, v.IsValidMint(context.Background(), mintA))
	assert.False(t, v.IsValidMint(context.Background(), mintA))
	assert.Equal(t, 1, q.Calls("getMintInfo:"+mintA), "failed lookup must not be retried")
}

func TestMintValidatorUnknownAccountIsInvalid(t *testing.T) {
	q := stub.NewQueryClient()
	v := solana.NewMintValidator(q, 0)

	assert.False(t, v.IsValidMint(context.Background(), mintB))
	assert.Equal(t, 1, v.Len())
}

func TestMintValidatorEvictsOldest(t *testing.T) {
	q := stub.NewQueryClient()
	q.AddMint(mintA)
	q.AddMint(mintB)
	q.AddMint(mintC)
	v := solana.NewMintValidator(q, 2)
	ctx := context.Background()

	v.IsValidMint(ctx, mintA)
	v.IsValidMint(ctx, mintB)
	v.IsValidMint(ctx, mintC)
	assert.Equal(t, 2, v.Len())

	// B is still cached, A was evicted and is looked up again.
	v.IsValidMint(ctx, mintB)
	v.IsValidMint(ctx, mintA)
	assert.Equal(t, 1, q.Calls("getMintInfo:"+mintB))
	assert.Equal(t, 2, q.Calls("getMintInfo:"+mintA))
}
