package auth

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	BackupCodeCount = 10
	backupCodeLen   = 8
)

// 0/1/I/O excluded so codes survive being read over the phone.
const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBackupCodes generates the single-use fallback codes issued once at 2FA
// activation. They are shown to the user exactly once.
func NewBackupCodes() ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	seen := make(map[string]bool, BackupCodeCount)
	for len(codes) < BackupCodeCount {
		code, err := newBackupCode()
		if err != nil {
			return nil, err
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

// NormalizeBackupCode maps user input onto the stored form.
func NormalizeBackupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newBackupCode() (string, error) {
	buf := make([]byte, backupCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read backup code: %w", err)
	}
	out := make([]byte, backupCodeLen)
	for i, b := range buf {
		out[i] = backupCodeAlphabet[int(b)%len(backupCodeAlphabet)]
	}
	return string(out), nil
}
