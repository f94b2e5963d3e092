package contextpack

// TruncationMarker joins the kept head and tail of a compacted fragment.
const TruncationMarker = "…[TRUNCATED]"

// headShare is the fraction of kept runes taken from the start.
const headShare = 0.65

// Compact shortens text to at most maxTokens, keeping 65% of the kept runes
// from the head and the rest from the tail around TruncationMarker. It
// returns false when not even the marker fits.
func Compact(text string, maxTokens int) (string, bool) {
	if EstimateTokens(text) <= maxTokens {
		return text, true
	}
	if EstimateTokens(TruncationMarker) > maxTokens {
		return "", false
	}

	runes := []rune(text)
	build := func(keep int) string {
		head := int(float64(keep) * headShare)
		tail := keep - head
		return string(runes[:head]) + TruncationMarker + string(runes[len(runes)-tail:])
	}

	// Largest keep whose rendering fits; token cost is monotonic in keep.
	lo, hi := 0, len(runes)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if EstimateTokens(build(mid)) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return build(lo), true
}
