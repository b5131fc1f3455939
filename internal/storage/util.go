package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// normalizeAddress lowercases an address for use as a key
func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func checkKey(questID, address string) error {
	if questID == "" || address == "" {
		return fmt.Errorf("%w: quest id and address are required", ErrInvalidInput)
	}
	return nil
}

func checkStep(questID string, step int, address string) error {
	if err := checkKey(questID, address); err != nil {
		return err
	}
	if step < 0 {
		return fmt.Errorf("%w: negative step index %d", ErrInvalidInput, step)
	}
	return nil
}

// questKey is "{questId}-{address}"
func questKey(questID, address string) string {
	return questID + "-" + address
}

// stepKey is "{questId}-step-{index}-{address}"
func stepKey(questID string, step int, address string) string {
	return questID + "-step-" + strconv.Itoa(step) + "-" + address
}

// parseStepKey splits a step key whose address suffix is already known.
func parseStepKey(key, address string) (string, int, bool) {
	suffix := "-" + address
	if !strings.HasSuffix(key, suffix) {
		return "", 0, false
	}
	rest := strings.TrimSuffix(key, suffix)
	i := strings.LastIndex(rest, "-step-")
	if i < 0 {
		return "", 0, false
	}
	step, err := strconv.Atoi(rest[i+len("-step-"):])
	if err != nil {
		return "", 0, false
	}
	return rest[:i], step, true
}
