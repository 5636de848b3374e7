// Package card holds the card data passed to the gateway's hosted form
// endpoint and the masking rules applied before anything derived from that
// data is logged or stored. Unmasked card fields must never leave this
// process except through the form-post relay.
package card

import (
	"strconv"
	"strings"
)

const maskChar = "X"

// Data is the card input for a single checkout attempt. It exists only
// transiently in memory between collection and the form post.
type Data struct {
	Name        string
	Number      string
	ExpiryMonth string
	ExpiryYear  string // 2-digit
	CVN         string
}

// MaskNumber replaces all but the last four characters of a card number with
// the mask character, preserving total length. Inputs shorter than four
// characters are masked entirely.
func MaskNumber(number string) string {
	if len(number) < 4 {
		return strings.Repeat(maskChar, len(number))
	}
	return strings.Repeat(maskChar, len(number)-4) + number[len(number)-4:]
}

// MaskCVN masks the verification number completely, preserving length.
func MaskCVN(cvn string) string {
	return strings.Repeat(maskChar, len(cvn))
}

// Masked returns a copy safe for logging and storage: the number keeps its
// last four digits, the CVN is fully masked, everything else is unchanged.
func (d Data) Masked() Data {
	d.Number = MaskNumber(d.Number)
	d.CVN = MaskCVN(d.CVN)
	return d
}

// TypeOf guesses the card scheme from the number prefix. It returns an empty
// string when the prefix matches no known scheme; acceptance policy decides
// what to do with unknowns.
func TypeOf(number string) string {
	switch {
	case number == "":
		return ""
	case number[0] == '4':
		return "visa"
	case strings.HasPrefix(number, "34") || strings.HasPrefix(number, "37"):
		return "amex"
	case number[0] == '5' && len(number) > 1 && number[1] >= '1' && number[1] <= '5':
		return "mastercard"
	case inMastercardRange(number):
		return "mastercard"
	case strings.HasPrefix(number, "36") || strings.HasPrefix(number, "38") ||
		strings.HasPrefix(number, "300") || strings.HasPrefix(number, "305"):
		return "dinersclub"
	case strings.HasPrefix(number, "6011") || strings.HasPrefix(number, "65"):
		return "discover"
	case strings.HasPrefix(number, "35"):
		return "jcb"
	default:
		return ""
	}
}

// inMastercardRange reports whether the number falls in the 2221-2720 IIN
// range Mastercard added alongside the 51-55 prefixes.
func inMastercardRange(number string) bool {
	if len(number) < 4 {
		return false
	}
	iin, err := strconv.Atoi(number[:4])
	if err != nil {
		return false
	}
	return iin >= 2221 && iin <= 2720
}
