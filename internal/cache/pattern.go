package cache

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern complexity limits. Patterns beyond these are refused before
// compilation rather than trusted to the regexp engine.
const (
	maxPatternLength = 256
	maxGroups        = 10
	maxCharClassSize = 64
)

// nestedQuantifier spots a quantified group that is itself quantified,
// e.g. (a+)+ or (a*){2,}.
var nestedQuantifier = regexp.MustCompile(`\([^)]*[+*{][^)]*\)[+*{]`)

// ValidatePattern checks an invalidation pattern for ReDoS-prone
// constructs: repeated `.*`, nested quantifiers, excessive groups, and
// oversized character classes. It returns ErrUnsafePattern with the
// specific construct named, never compiling a dangerous pattern.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: pattern is empty", ErrUnsafePattern)
	}
	if len(pattern) > maxPatternLength {
		return fmt.Errorf("%w: pattern longer than %d chars", ErrUnsafePattern, maxPatternLength)
	}

	if strings.Count(pattern, ".*") > 1 {
		return fmt.Errorf("%w: repeated .* wildcards", ErrUnsafePattern)
	}

	if nestedQuantifier.MatchString(pattern) {
		return fmt.Errorf("%w: nested quantifiers", ErrUnsafePattern)
	}

	if strings.Count(pattern, "(") > maxGroups {
		return fmt.Errorf("%w: more than %d groups", ErrUnsafePattern, maxGroups)
	}

	if size := largestCharClass(pattern); size > maxCharClassSize {
		return fmt.Errorf("%w: character class with %d members", ErrUnsafePattern, size)
	}

	return nil
}

// CompilePattern validates and then compiles an invalidation pattern.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid invalidation pattern %q: %w", pattern, err)
	}
	return re, nil
}

func largestCharClass(pattern string) int {
	largest, current := 0, -1
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
			if current >= 0 {
				current++
			}
		case '[':
			if current < 0 {
				current = 0
			}
		case ']':
			if current > largest {
				largest = current
			}
			current = -1
		default:
			if current >= 0 {
				current++
			}
		}
	}
	return largest
}
