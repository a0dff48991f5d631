package swap

import (
	"regexp"
	"strings"
)

var txPattern = regexp.MustCompile(`Transaction: (0x[a-fA-F0-9]{64})`)

// LinkTransactions rewrites every "Transaction: 0x…" in message into a
// markdown link to the explorer's transaction page.
func LinkTransactions(message, explorerURL, explorerName string) string {
	base := strings.TrimRight(strings.TrimSpace(explorerURL), "/")
	if base == "" {
		return message
	}
	if explorerName == "" {
		explorerName = "explorer"
	}
	return txPattern.ReplaceAllString(message, "Transaction: [View on "+explorerName+"]("+base+"/tx/$1)")
}
