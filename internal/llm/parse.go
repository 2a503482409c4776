package llm

import (
	"regexp"
	"strconv"
	"strings"
)

// labelLine matches a response line carrying a bio number and a yes/no
// token, tolerating list punctuation and markdown emphasis the model may
// wrap around either: "1) yes", "2. **No**", "- 3: no.", "**4** yes".
var labelLine = regexp.MustCompile(`^[^0-9a-zA-Z]*([0-9]+)[^a-zA-Z]*(?i:(yes|no))\b`)

// parseLabelLines extracts per-number labels from a model response.
//
// The response is read line by line; a line yields a (number, label)
// pair when it starts with a number in [1, n] followed by a yes/no
// token. Everything else is skipped without aborting the batch:
//   - lines with no number or no token (prose, blank lines)
//   - numbers outside [1, n]
//   - a duplicated number, which invalidates that number entirely — a
//     response that contradicts itself about bio 3 is no answer for
//     bio 3, and guessing which line was meant would be worse than the
//     conservative default
//
// The caller treats missing numbers as unanswered.
func parseLabelLines(content string, n int) map[int]string {
	labels := make(map[int]string, n)
	seen := make(map[int]bool)

	for _, line := range strings.Split(content, "\n") {
		m := labelLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		num, err := strconv.Atoi(m[1])
		if err != nil || num < 1 || num > n {
			continue
		}

		if seen[num] {
			delete(labels, num)
			continue
		}
		seen[num] = true
		labels[num] = strings.ToLower(m[2])
	}

	return labels
}
