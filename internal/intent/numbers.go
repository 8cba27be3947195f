package intent

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var numberWords = map[string]int{
	"ноль": 0, "один": 1, "одна": 1, "два": 2, "две": 2, "три": 3, "четыре": 4,
	"пять": 5, "шесть": 6, "семь": 7, "восемь": 8, "девять": 9, "десять": 10,
	"одиннадцать": 11, "двенадцать": 12, "тринадцать": 13, "четырнадцать": 14,
	"пятнадцать": 15, "шестнадцать": 16, "семнадцать": 17, "восемнадцать": 18,
	"девятнадцать": 19, "двадцать": 20, "тридцать": 30, "сорок": 40,
	"пятьдесят": 50, "шестьдесят": 60, "семьдесят": 70, "восемьдесят": 80,
	"девяносто": 90, "сто": 100, "двести": 200, "триста": 300, "четыреста": 400,
	"пятьсот": 500, "шестьсот": 600, "семьсот": 700, "восемьсот": 800,
	"девятьсот": 900, "тысяча": 1000,
}

var digitsPattern = regexp.MustCompile(`\d+`)

// ParseNumber finds a quantity in free text. Digits win; otherwise the
// Russian number words in the text are summed ("сто пятьдесят" is 150).
func ParseNumber(text string) (int, bool) {
	if m := digitsPattern.FindString(text); m != "" {
		if v, err := strconv.Atoi(m); err == nil && v > 0 {
			return v, true
		}
	}
	return ParseNumberWords(text)
}

// ParseNumberWords sums the number words found in text. It reports false when
// the words add up to zero.
func ParseNumberWords(text string) (int, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	total := 0
	for _, w := range words {
		total += numberWords[strings.ReplaceAll(w, "ё", "е")]
	}
	return total, total > 0
}
