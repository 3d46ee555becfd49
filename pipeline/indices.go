package pipeline

import "go.viam.com/epipolar/correspondence"

// Pair is an ordered pair of image indices; Ref is the reference and Local the local image.
type Pair struct {
	Ref   int
	Local int
}

// OrderedPairs returns every (i, j) with i != j, row-major over i then j.
func OrderedPairs(n int) []Pair {
	if n < 2 {
		return nil
	}
	pairs := make([]Pair, 0, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				pairs = append(pairs, Pair{Ref: i, Local: j})
			}
		}
	}
	return pairs
}

// Triples returns every anchor k with an unordered pair i < j of the other images: k outer,
// then i, then j.
func Triples(n int) []correspondence.Key {
	var keys []correspondence.Key
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if i != k && j != k {
					keys = append(keys, correspondence.Key{Anchor: k, First: i, Second: j})
				}
			}
		}
	}
	return keys
}
