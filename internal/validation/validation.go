// Package validation provides input validation for QuestHub.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Quest IDs: lowercase alphanumeric with hyphens, 1-64 chars
var questIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// MaxLeaderboardLimit caps leaderboard page sizes.
const MaxLeaderboardLimit = 100

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return errors.New("invalid address: must start with 0x")
	}
	for _, c := range addr[2:] {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return errors.New("invalid address: contains non-hex characters")
		}
	}
	return nil
}

// NormalizeAddress returns the lowercase form used as a storage key.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ValidateQuestID validates a quest identifier
func ValidateQuestID(id string) error {
	if id == "" {
		return errors.New("quest ID cannot be empty")
	}
	if !questIDRegex.MatchString(id) {
		return errors.New("invalid quest ID: must be lowercase alphanumeric with hyphens")
	}
	if strings.Contains(id, "--") {
		return errors.New("invalid characters in quest ID")
	}
	return nil
}

// ValidateStepIndex checks idx against a quest with n steps.
func ValidateStepIndex(idx, n int) error {
	if idx < 0 || idx >= n {
		return fmt.Errorf("step index %d out of range (quest has %d steps)", idx, n)
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID < 0 {
		return errors.New("chain ID cannot be negative")
	}
	return nil
}

// ValidateLimit clamps a requested page size, falling back to def when unset.
func ValidateLimit(limit, def int) (int, error) {
	switch {
	case limit == 0:
		return def, nil
	case limit < 0:
		return 0, errors.New("limit must be positive")
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit, nil
	default:
		return limit, nil
	}
}
