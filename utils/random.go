package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

func GenerateCode(n int) (string, error) {
	// Make a slice of n random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// OrderReference builds the external reference attached to an order,
// unique enough for payment-provider reconciliation.
func OrderReference() (string, error) {
	code, err := GenerateCode(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%d-%s", time.Now().Unix(), code), nil
}
