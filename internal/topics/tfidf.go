package topics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// vocabulary is the ordered term set of a document-term matrix.
type vocabulary struct {
	terms []string
	index map[string]int
}

// buildTFIDF turns tokenized documents into an L2-normalized TF-IDF matrix
// (documents × terms) with smoothed idf. Terms are kept by document
// frequency: for corpora of ten or more documents a term must appear in at
// least two and in no more than maxDocRatio of them. At most maxFeatures of
// the most frequent terms survive; columns are ordered alphabetically.
func buildTFIDF(docs [][]string, maxFeatures int) (*mat.Dense, vocabulary) {
	n := len(docs)
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	minDF, maxDF := 1, n
	if n >= 10 {
		minDF = 2
		maxDF = int(math.Floor(maxDocRatio * float64(n)))
	}
	type termDF struct {
		term string
		df   int
	}
	kept := make([]termDF, 0, len(df))
	for term, c := range df {
		if c >= minDF && c <= maxDF {
			kept = append(kept, termDF{term, c})
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].df != kept[j].df {
			return kept[i].df > kept[j].df
		}
		return kept[i].term < kept[j].term
	})
	if maxFeatures > 0 && len(kept) > maxFeatures {
		kept = kept[:maxFeatures]
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].term < kept[j].term })

	vocab := vocabulary{terms: make([]string, len(kept)), index: make(map[string]int, len(kept))}
	idf := make([]float64, len(kept))
	for j, k := range kept {
		vocab.terms[j] = k.term
		vocab.index[k.term] = j
		idf[j] = math.Log(float64(1+n)/float64(1+k.df)) + 1
	}
	if len(kept) == 0 {
		return nil, vocab
	}

	v := mat.NewDense(n, len(kept), nil)
	for i, tokens := range docs {
		for _, tok := range tokens {
			if j, ok := vocab.index[tok]; ok {
				v.Set(i, j, v.At(i, j)+1)
			}
		}
		row := v.RawRowView(i)
		var norm float64
		for j := range row {
			row[j] *= idf[j]
			norm += row[j] * row[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range row {
				row[j] /= norm
			}
		}
	}
	return v, vocab
}
