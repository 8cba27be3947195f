package intent

import "strings"

var ordinals = map[string]int{
	"первое": 0, "первый": 0, "первая": 0, "первую": 0,
	"второе": 1, "второй": 1, "вторая": 1, "вторую": 1,
	"третье": 2, "третий": 2, "третья": 2, "третью": 2,
	"четвертое": 3, "четвертый": 3, "четвертая": 3,
	"пятое": 4, "пятый": 4, "пятая": 4,
}

var lastWords = []string{"последнее", "последний", "последняя", "последнюю"}

// ResolveTarget maps a target reference to an index into candidates: exact
// name first, then substring either way, then a shared word stem ("гречки"
// finds "гречка"), then an ordinal word.
func ResolveTarget(target string, candidates []string) (int, bool) {
	t := normalize(target)
	if t == "" || len(candidates) == 0 {
		return 0, false
	}
	for i, c := range candidates {
		if normalize(c) == t {
			return i, true
		}
	}
	for i, c := range candidates {
		n := normalize(c)
		if n != "" && (strings.Contains(n, t) || strings.Contains(t, n)) {
			return i, true
		}
	}
	for i, c := range candidates {
		if shareStem(t, normalize(c)) {
			return i, true
		}
	}
	for _, w := range strings.Fields(t) {
		if idx, ok := ordinals[w]; ok && idx < len(candidates) {
			return idx, true
		}
		for _, lw := range lastWords {
			if w == lw {
				return len(candidates) - 1, true
			}
		}
	}
	return 0, false
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "ё", "е")
}

func shareStem(a, b string) bool {
	for _, wa := range strings.Fields(a) {
		sa := stem(wa)
		if sa == "" {
			continue
		}
		for _, wb := range strings.Fields(b) {
			if sa == stem(wb) {
				return true
			}
		}
	}
	return false
}

// stem drops the last letter of words of four letters or more.
func stem(w string) string {
	r := []rune(w)
	if len(r) < 4 {
		return ""
	}
	return string(r[:len(r)-1])
}
