// Package utils provides utility functions for the application.
package utils

import "unicode/utf8"

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// gsm7Chars is the GSM 03.38 basic character set. gsm7ExtChars are the
// extension-table characters, which cost two septets each (escape + char).
// Anything outside both forces UCS-2 encoding.
const (
	gsm7Chars    = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑܧ¿abcdefghijklmnopqrstuvwxyzäöñüà"
	gsm7ExtChars = "^{}\\[~]|€\f"
)

func runeSet(chars string) map[rune]struct{} {
	set := make(map[rune]struct{}, utf8.RuneCountInString(chars))
	for _, r := range chars {
		set[r] = struct{}{}
	}
	return set
}

var (
	gsm7Set    = runeSet(gsm7Chars)
	gsm7ExtSet = runeSet(gsm7ExtChars)
)

// gsm7Septets returns the septet count of the body, or false when any rune
// falls outside the GSM 03.38 tables.
func gsm7Septets(body string) (int, bool) {
	septets := 0
	for _, r := range body {
		if _, ok := gsm7Set[r]; ok {
			septets++
			continue
		}
		if _, ok := gsm7ExtSet[r]; ok {
			septets += 2
			continue
		}
		return 0, false
	}
	return septets, true
}

// SegmentCount returns the number of SMS segments a body occupies: 160 GSM-7
// septets for a single part (153 per part when concatenated), 70/67 UCS-2
// code units. Pricing and quota consumption in segment mode use this count.
func SegmentCount(body string) int {
	if body == "" {
		return 1
	}

	single, multi := 160, 153
	length, gsm7 := gsm7Septets(body)
	if !gsm7 {
		single, multi = 70, 67
		length = utf8.RuneCountInString(body)
	}

	if length <= single {
		return 1
	}
	return (length + multi - 1) / multi
}
