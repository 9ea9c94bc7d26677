package outline

import "math"

// Default gap tolerances, in points, for GroupSpans.
const (
	DefaultMaxXGap = 5.0
	DefaultMaxYGap = 2.0
)

// GroupSpans merges tokens into spans in a single greedy pass. A token joins
// the open span when it starts within maxXGap of the previous token's right
// edge and its top is within maxYGap of the previous token's top. Tokens are
// consumed in the order given; the spans partition the input.
func GroupSpans(tokens []Token, maxXGap, maxYGap float64) []Span {
	if len(tokens) == 0 {
		return nil
	}

	var spans []Span
	current := []Token{tokens[0]}
	for _, tok := range tokens[1:] {
		last := current[len(current)-1]
		xGap := math.Abs(tok.X0 - last.X1)
		yGap := math.Abs(tok.Top - last.Top)
		if xGap <= maxXGap && yGap <= maxYGap {
			current = append(current, tok)
			continue
		}
		spans = append(spans, Span{Tokens: current})
		current = []Token{tok}
	}
	return append(spans, Span{Tokens: current})
}
