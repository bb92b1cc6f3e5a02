package token

import "sort"

// SortField selects the key tokens are ordered by.
type SortField int

const (
	ByTime SortField = iota
	ByValue
)

// SortOrder selects ascending or descending order.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// SortSpec is a caller-supplied ordering for a token list.
type SortSpec struct {
	Field SortField
	Order SortOrder
}

// Sort orders tokens in place according to spec. Ties keep their original
// (listing) order.
func Sort(tokens []*Token, spec SortSpec) {
	less := func(a, b *Token) int {
		switch spec.Field {
		case ByValue:
			switch {
			case a.Satoshis < b.Satoshis:
				return -1
			case a.Satoshis > b.Satoshis:
				return 1
			}
			return 0
		default:
			return a.Time().Compare(b.Time())
		}
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		c := less(tokens[i], tokens[j])
		if spec.Order == Descending {
			return c > 0
		}
		return c < 0
	})
}
