package observability

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var sensitiveKeywords = []string{
	"cpf", "cnpj", "document", "documento", "doc",
	"inscricao", "inscrição", "cci", "ccp", "duam",
	"token", "authorization", "password", "senha", "secret", "bearer",
}

var longDigitRun = regexp.MustCompile(`\b\d{5,}\b`)

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

func maskDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return '*'
		}
		return r
	}, s)
}

// MaskValue hides document numbers in value. Under a sensitive key every
// digit is masked; elsewhere only runs of five or more digits are.
func MaskValue(key, value string) string {
	if isSensitiveKey(key) {
		return maskDigits(value)
	}
	return longDigitRun.ReplaceAllStringFunc(value, maskDigits)
}

// Masked builds a zap string field with MaskValue applied.
func Masked(key, value string) zap.Field {
	return zap.String(key, MaskValue(key, value))
}
