package deb

import (
	"strconv"
	"strings"
)

// BumpVersion increments the iteration number of a Debian-style version
// string, used by meow-zip create's --bump-from flag as a packager
// convenience when re-packaging the same upstream version.
//
// Strategy:
//  1. If no iteration (no hyphen), append "-1".
//  2. If iteration is purely numeric, increment it (e.g. "1.0-1" -> "1.0-2").
//  3. Otherwise, find the last alphanumeric character in the iteration and
//     bump it using the range 0-9, a-z (e.g. "1.0-1a" -> "1.0-1b",
//     "1.0-1a9" -> "1.0-1aa"). If the character is 'z', "0" is appended.
func BumpVersion(v string) string {
	idx := strings.LastIndex(v, "-")
	if idx == -1 {
		return v + "-1"
	}
	prefix := v[:idx+1]
	rev := v[idx+1:]
	if rev == "" {
		return prefix + "1"
	}

	if i, err := strconv.Atoi(rev); err == nil {
		return prefix + strconv.Itoa(i+1)
	}

	runes := []rune(rev)
	for i := len(runes) - 1; i >= 0; i-- {
		c := runes[i]
		if c >= '0' && c < '9' {
			runes[i]++
			return prefix + string(runes)
		}
		if c == '9' {
			runes[i] = 'a'
			return prefix + string(runes)
		}
		if c >= 'a' && c < 'z' {
			runes[i]++
			return prefix + string(runes)
		}
		if c == 'z' {
			return prefix + string(runes[:i+1]) + "0" + string(runes[i+1:])
		}
	}
	return v + "1"
}
