package solana

import "regexp"

var (
	mintEventPattern = regexp.MustCompile(`Instruction: MintTo|InitializeMint`)
	poolEventPattern = regexp.MustCompile(`InitializePool|CreatePool`)
)

// IsMintEvent reports whether any log line records a token mint instruction.
func IsMintEvent(logs []string) bool {
	return anyLineMatches(logs, mintEventPattern)
}

// IsPoolEvent reports whether any log line records a pool creation.
func IsPoolEvent(logs []string) bool {
	return anyLineMatches(logs, poolEventPattern)
}

func anyLineMatches(logs []string, re *regexp.Regexp) bool {
	for _, line := range logs {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
