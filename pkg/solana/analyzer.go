package solana

import (
	"context"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultMatchRatio     = 0.9
	DefaultSignatureLimit = 2
)

// AnalyzerConfig tunes the recipient heuristic.
type AnalyzerConfig struct {
	// MatchRatio is the share of the outgoing amount an account must gain to count as recipient.
	MatchRatio float64
	// SignatureLimit is how many recent signatures are fetched; only the newest is inspected.
	SignatureLimit int
}

// TransferAnalyzer guesses where a large outbound transfer went.
type TransferAnalyzer struct {
	queries QueryClient
	cfg     AnalyzerConfig
}

// NewTransferAnalyzer creates an analyzer, filling zero config values with defaults.
func NewTransferAnalyzer(queries QueryClient, cfg AnalyzerConfig) *TransferAnalyzer {
	if cfg.MatchRatio <= 0 {
		cfg.MatchRatio = DefaultMatchRatio
	}
	if cfg.SignatureLimit <= 0 {
		cfg.SignatureLimit = DefaultSignatureLimit
	}
	return &TransferAnalyzer{queries: queries, cfg: cfg}
}

// FindRecipient inspects the newest transaction of watched and returns the first
// account whose balance grew by at least MatchRatio of expectedLamports.
func (a *TransferAnalyzer) FindRecipient(ctx context.Context, watched string, expectedLamports uint64) (string, bool) {
	logger := log.WithFields(log.Fields{
		"address":  watched,
		"lamports": expectedLamports,
	})

	sigs, err := a.queries.GetRecentSignatures(ctx, watched, a.cfg.SignatureLimit)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch recent signatures")
		return "", false
	}
	if len(sigs) == 0 {
		logger.Debug("No recent signatures")
		return "", false
	}

	latest := sigs[0]
	if latest.Failed() {
		logger.WithField("signature", latest.Signature).Debug("Latest transaction failed")
		return "", false
	}

	tx, err := a.queries.GetTransaction(ctx, latest.Signature)
	if err != nil {
		logger.WithError(err).WithField("signature", latest.Signature).Warn("Failed to fetch transaction")
		return "", false
	}
	if tx == nil {
		return "", false
	}

	threshold := a.cfg.MatchRatio * float64(expectedLamports)
	n := min(len(tx.AccountKeys), len(tx.PreBalances), len(tx.PostBalances))
	for i := 0; i < n; i++ {
		gain := int64(tx.PostBalances[i]) - int64(tx.PreBalances[i])
		if gain > 0 && float64(gain) >= threshold {
			return tx.AccountKeys[i], true
		}
	}

	logger.WithField("signature", latest.Signature).Debug("No account matched the transfer")
	return "", false
}

// MintExtractor finds the token a transaction minted or pooled.
type MintExtractor struct {
	queries   QueryClient
	validator *MintValidator
}

// NewMintExtractor creates an extractor backed by queries and validator.
func NewMintExtractor(queries QueryClient, validator *MintValidator) *MintExtractor {
	return &MintExtractor{queries: queries, validator: validator}
}

// ExtractMint returns the first mint in the transaction's post-token balances
// that is not wrapped SOL and passes validation.
func (e *MintExtractor) ExtractMint(ctx context.Context, signature string) (string, bool) {
	tx, err := e.queries.GetTransaction(ctx, signature)
	if err != nil {
		log.WithFields(log.Fields{
			"signature": signature,
			"error":     err,
		}).Warn("Failed to fetch transaction for mint extraction")
		return "", false
	}
	if tx == nil {
		return "", false
	}

	for _, mint := range tx.PostTokenMints {
		if mint == "" || mint == WrappedSolMint {
			continue
		}
		if e.validator.IsValidMint(ctx, mint) {
			return mint, true
		}
	}
	return "", false
}
