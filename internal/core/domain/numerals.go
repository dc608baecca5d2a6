package domain

import "strings"

var arabicToRoman = map[string]string{
	"1": "I", "2": "II", "3": "III", "4": "IV", "5": "V",
	"6": "VI", "7": "VII", "8": "VIII", "9": "IX", "10": "X",
	"11": "XI", "12": "XII", "13": "XIII", "14": "XIV", "15": "XV",
	"16": "XVI", "17": "XVII", "18": "XVIII", "19": "XIX", "20": "XX",
}

var romanToArabic = func() map[string]string {
	out := make(map[string]string, len(arabicToRoman))
	for a, r := range arabicToRoman {
		out[r] = a
	}
	return out
}()

// NormalizeChapter maps a Roman chapter numeral to its Arabic form. Arabic
// input and unknown ids are returned trimmed and otherwise unchanged, so
// NormalizeChapter(NormalizeChapter(x)) == NormalizeChapter(x).
func NormalizeChapter(id string) string {
	id = strings.TrimSpace(id)
	if arabic, ok := romanToArabic[strings.ToUpper(id)]; ok {
		return arabic
	}
	return id
}

// AlternateChapter swaps between Arabic and Roman forms ("3" <-> "III").
// Ids outside I-XX are returned unchanged.
func AlternateChapter(id string) string {
	id = strings.TrimSpace(id)
	if roman, ok := arabicToRoman[id]; ok {
		return roman
	}
	if arabic, ok := romanToArabic[strings.ToUpper(id)]; ok {
		return arabic
	}
	return id
}
