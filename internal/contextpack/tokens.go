package contextpack

import "unicode/utf8"

// EstimateTokens approximates a tokenizer: four ASCII bytes per token and
// one token per non-ASCII rune (CJK text is roughly one token per
// character).
func EstimateTokens(s string) int {
	ascii, other := 0, 0
	for _, r := range s {
		if r < utf8.RuneSelf {
			ascii++
		} else {
			other++
		}
	}
	return (ascii+3)/4 + other
}
