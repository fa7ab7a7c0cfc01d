package message

import (
	"fmt"
	"strings"
)

// NormalizePhone reduces a Brazilian phone number to bare DDD plus local
// digits. Formatting characters are stripped, a leading 55 country code is
// removed, and ten-digit mobile numbers gain the ninth digit.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, "55") && len(digits) > 11 {
		digits = digits[2:]
	}
	if len(digits) == 10 {
		digits = digits[:2] + "9" + digits[2:]
	}
	return digits
}

// FormatPhoneDisplay renders an 11-digit normalized number as
// "(DD) NNNNN-NNNN". Anything else is returned unchanged.
func FormatPhoneDisplay(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return fmt.Sprintf("(%s) %s-%s", digits[:2], digits[2:7], digits[7:])
}
