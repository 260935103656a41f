package db

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns a time-ordered id such as "blb_0190f3c2...". Ids from the
// same prefix sort by creation time.
func GenerateID(prefix string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return prefix + "_" + strings.ReplaceAll(id.String(), "-", ""), nil
}
