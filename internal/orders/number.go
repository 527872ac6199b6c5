package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	orderNumberPrefix    = "AGM"
	orderNumberSuffixLen = 6
	base36Alphabet       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewOrderNumber renders AGM-YYYYMMDD-XXXXXX with a random base-36 suffix.
func NewOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, orderNumberSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	suffix := make([]byte, orderNumberSuffixLen)
	for i, b := range buf {
		suffix[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.UTC().Format("20060102"), suffix), nil
}
