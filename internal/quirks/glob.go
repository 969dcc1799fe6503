/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Glob-style pattern matching, used for model-name quirk matching
 */

package quirks

// GlobMatch matches str against a glob-style pattern:
//
//	?   - matches exactly one character
//	*   - matches any sequence of characters
//	\C  - matches character C literally
//	C   - matches character C (C is not *, ? or \)
//
// It returns a count of matched non-wildcard characters, or -1 if
// there is no match. The count lets callers rank a more specific
// model-name pattern above a looser one.
func GlobMatch(str, pattern string) int {
	return globMatchInternal(str, pattern, 0)
}

func globMatchInternal(str, pattern string, count int) int {
	for str != "" && pattern != "" {
		p := pattern[0]
		pattern = pattern[1:]

		switch p {
		case '*':
			for pattern != "" && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if pattern == "" {
				return count
			}
			for i := 0; i < len(str); i++ {
				if c2 := globMatchInternal(str[i:], pattern, count); c2 >= 0 {
					return c2
				}
			}
			return -1

		case '?':
			str = str[1:]

		case '\\':
			if pattern == "" {
				return -1
			}
			p, pattern = pattern[0], pattern[1:]
			fallthrough

		default:
			if str[0] != p {
				return -1
			}
			str = str[1:]
			count++
		}
	}

	for pattern != "" && pattern[0] == '*' {
		pattern = pattern[1:]
	}

	if str == "" && pattern == "" {
		return count
	}
	return -1
}
