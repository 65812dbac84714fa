package extractor

import (
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dirscrape/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Limits guarding the two-line heuristic against capturing large unrelated blocks.
const (
	maxKeyLen   = 40
	maxValueLen = 200
)

// candidateTags are the block-level elements the two-line heuristic inspects.
var candidateTags = map[atom.Atom]bool{
	atom.Div:     true,
	atom.Li:      true,
	atom.P:       true,
	atom.Dt:      true,
	atom.Dd:      true,
	atom.Section: true,
	atom.Article: true,
}

// Outcome is the typed result of classifying one element.
type Outcome int

const (
	NotCandidate Outcome = iota // wrong tag or no direct text node
	WrongLineCount
	EmptyKey
	KeyTooLong
	ValueTooLong
	Gated
	Qualifies
)

func (o Outcome) String() string {
	switch o {
	case NotCandidate:
		return "not_candidate"
	case WrongLineCount:
		return "wrong_line_count"
	case EmptyKey:
		return "empty_key"
	case KeyTooLong:
		return "key_too_long"
	case ValueTooLong:
		return "value_too_long"
	case Gated:
		return "gated"
	case Qualifies:
		return "qualifies"
	}
	return "unknown"
}

// Classify decides whether n renders as a "label / value" pair. Only block
// elements holding at least one direct text node are considered. The rendered
// text must have exactly two non-blank lines, a normalized label shorter than
// 40 characters and a value shorter than 200. Access-gated placeholder values never qualify.
// The key and value are only meaningful for Qualifies.
func Classify(n *html.Node) (key, value string, outcome Outcome) {
	if n == nil || n.Type != html.ElementNode || !candidateTags[n.DataAtom] || !hasDirectText(n) {
		return "", "", NotCandidate
	}
	lines := renderedLines(n)
	if len(lines) != 2 {
		return "", "", WrongLineCount
	}
	key = NormalizeKey(lines[0])
	value = lines[1]
	switch {
	case key == "":
		return "", "", EmptyKey
	case utf8.RuneCountInString(key) >= maxKeyLen:
		return "", "", KeyTooLong
	case utf8.RuneCountInString(value) >= maxValueLen:
		return "", "", ValueTooLong
	case isGated(value):
		return "", "", Gated
	}
	return key, value, Qualifies
}

// TwoLineStrategy is the generic fallback: every candidate element whose
// rendered text is exactly "label\nvalue" becomes a field. Later elements in
// document order overwrite earlier ones with the same key.
type TwoLineStrategy struct{}

func (TwoLineStrategy) Name() string { return "two_line" }

func (TwoLineStrategy) Apply(doc *goquery.Document, rec *models.Record) error {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipText[n.DataAtom] {
				return
			}
			if key, value, outcome := Classify(n); outcome == Qualifies {
				rec.Set(key, value)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return nil
}
