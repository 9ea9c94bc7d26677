package outline

// DefaultBaseline is used when a document has no sized tokens.
const DefaultBaseline = 12.0

// EstimateBaseline returns the mean font size over every sized token.
func EstimateBaseline(tokens []Token) float64 {
	var acc baselineAcc
	acc.add(tokens)
	return acc.value()
}

// baselineAcc accumulates sizes page by page during the first pass.
type baselineAcc struct {
	sum   float64
	count int
}

func (a *baselineAcc) add(tokens []Token) {
	for _, t := range tokens {
		if t.NoSize {
			continue
		}
		a.sum += t.Size
		a.count++
	}
}

func (a *baselineAcc) value() float64 {
	if a.count == 0 {
		return DefaultBaseline
	}
	return a.sum / float64(a.count)
}
