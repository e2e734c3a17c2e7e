// internal/paramid/key.go
package paramid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Placeholder marks the position of the instance index in a template key.
const Placeholder = "#"

var (
	keyRegex      = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	templateRegex = regexp.MustCompile(`^[a-zA-Z_#][a-zA-Z0-9_#]*$`)
)

// Validate checks a declared key. Template keys must contain the placeholder,
// plain keys must not.
func Validate(key string, template bool) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if template {
		if !HasPlaceholder(key) {
			return fmt.Errorf("template key %q must contain the %q placeholder", key, Placeholder)
		}
		if !templateRegex.MatchString(key) {
			return fmt.Errorf("invalid template key format: %q", key)
		}
		return nil
	}
	if !keyRegex.MatchString(key) {
		return fmt.Errorf("invalid key format: %q", key)
	}
	return nil
}

// HasPlaceholder reports whether s contains the index placeholder.
func HasPlaceholder(s string) bool {
	return strings.Contains(s, Placeholder)
}

// Substitute replaces every placeholder in s with index.
func Substitute(s string, index int) string {
	return strings.ReplaceAll(s, Placeholder, strconv.Itoa(index))
}

// Match reports whether key is an instance of template and returns its index.
func Match(template, key string) (int, bool) {
	parts := strings.Split(template, Placeholder)
	if len(parts) < 2 {
		return -1, false
	}
	if !strings.HasPrefix(key, parts[0]) || !strings.HasSuffix(key, parts[len(parts)-1]) {
		return -1, false
	}
	middle := key[len(parts[0]):]
	end := strings.Index(middle, parts[1])
	if parts[1] == "" {
		end = len(middle) - len(parts[len(parts)-1])
	}
	if end <= 0 {
		return -1, false
	}
	index, err := strconv.Atoi(middle[:end])
	if err != nil || index < 0 || strconv.Itoa(index) != middle[:end] {
		return -1, false
	}
	if Substitute(template, index) != key {
		return -1, false
	}
	return index, true
}
