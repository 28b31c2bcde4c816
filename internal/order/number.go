package order

import (
	"strings"

	"github.com/google/uuid"
)

const NumberPrefix = "ORD-"

// GenerateNumber returns NumberPrefix followed by 8 random uppercase hex
// characters. Uniqueness is enforced by the store, not here.
func GenerateNumber() string {
	id := uuid.New()
	hex := strings.ReplaceAll(id.String(), "-", "")
	return NumberPrefix + strings.ToUpper(hex[:8])
}
