package diagnostics

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// shingleSize is the width of the tag n-grams that capture page structure.
const shingleSize = 3

// Fingerprint computes a 64-bit SimHash over the page's tag structure and
// its visible words. Pages from the same template with the same message
// (a login wall, an empty profile) land within a few bits of each other.
func Fingerprint(markup, text string) uint64 {
	var features []string
	tags := tagSequence(markup)
	for i := 0; i+shingleSize <= len(tags); i++ {
		features = append(features, "t:"+strings.Join(tags[i:i+shingleSize], ">"))
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		features = append(features, "w:"+w)
	}
	if len(features) == 0 {
		return 0
	}

	var vector [64]int
	for _, f := range features {
		h := fnv.New64a()
		h.Write([]byte(f))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance is the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// tagSequence lists opening tag names in document order.
func tagSequence(markup string) []string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var tags []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := z.TagName()
			tags = append(tags, string(tn))
		}
	}
}
