package topics

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

const nmfEpsilon = 1e-10

// factorize approximates v (documents × terms) as w·h with w (documents × k)
// and h (k × terms) non-negative, using Lee-Seung multiplicative updates on
// the Frobenius loss. Initialization is seeded so results are reproducible.
func factorize(ctx context.Context, v *mat.Dense, k, iterations int, seed uint64) (w, h *mat.Dense, err error) {
	docs, terms := v.Dims()

	var mean float64
	for i := range docs {
		for _, x := range v.RawRowView(i) {
			mean += x
		}
	}
	mean /= float64(docs * terms)
	scale := math.Sqrt(mean / float64(k))

	rng := rand.New(rand.NewPCG(seed, uint64(k)))
	w = mat.NewDense(docs, k, nil)
	h = mat.NewDense(k, terms, nil)
	fill := func(m *mat.Dense) {
		r, c := m.Dims()
		for i := range r {
			for j := range c {
				m.Set(i, j, scale*math.Abs(rng.NormFloat64())+nmfEpsilon)
			}
		}
	}
	fill(w)
	fill(h)

	var (
		wtv  = mat.NewDense(k, terms, nil)
		wtw  = mat.NewDense(k, k, nil)
		wtwh = mat.NewDense(k, terms, nil)
		vht  = mat.NewDense(docs, k, nil)
		hht  = mat.NewDense(k, k, nil)
		whht = mat.NewDense(docs, k, nil)
	)
	for it := range iterations {
		if it%10 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		wtv.Mul(w.T(), v)
		wtw.Mul(w.T(), w)
		wtwh.Mul(wtw, h)
		multiplicativeUpdate(h, wtv, wtwh)

		vht.Mul(v, h.T())
		hht.Mul(h, h.T())
		whht.Mul(w, hht)
		multiplicativeUpdate(w, vht, whht)
	}
	return w, h, nil
}

// multiplicativeUpdate sets m ← m ⊙ num ⊘ (den + ε).
func multiplicativeUpdate(m, num, den *mat.Dense) {
	r, _ := m.Dims()
	for i := range r {
		row, nr, dr := m.RawRowView(i), num.RawRowView(i), den.RawRowView(i)
		for j := range row {
			row[j] *= nr[j] / (dr[j] + nmfEpsilon)
		}
	}
}
