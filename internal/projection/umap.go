package projection

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

// Point is one 2D coordinate.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Projector maps an n×d embedding matrix to n points. Implementations must
// be deterministic for a fixed input and Params.Seed.
type Projector interface {
	Name() string
	Project(ctx context.Context, vectors [][]float32, p Params) ([]Point, error)
}

const (
	negativeSampleRate = 5
	knnBlockRows       = 256
	initScale          = 10.0
	gradClip           = 4.0
	smoothIterations   = 64
	smoothTolerance    = 1e-5
	minScaleFactor     = 1e-3
)

// UMAP is the default projector: a seeded UMAP layout. It builds the
// k-nearest-neighbour fuzzy graph, starts from a PCA layout and optimizes
// with negative sampling.
type UMAP struct{}

// Name identifies the algorithm and its revision in cache keys.
func (UMAP) Name() string { return "umap/1" }

// Project runs the layout.
func (UMAP) Project(ctx context.Context, vectors [][]float32, p Params) ([]Point, error) {
	n := len(vectors)
	if n < MinSamples {
		return nil, tooFewSamples(n)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	x, err := toDense(vectors, p.Metric == MetricCosine)
	if err != nil {
		return nil, err
	}

	k := min(p.NNeighbors, n-1)
	idx, dist, err := nearestNeighbors(ctx, x, k, p.Metric)
	if err != nil {
		return nil, err
	}
	edges := fuzzyGraph(idx, dist)

	rng := rand.New(rand.NewPCG(uint64(p.Seed), 0x9e3779b97f4a7c15))
	y := pcaInit(x, rng)
	a, b := fitAB(p.MinDist, 1.0)
	if err := optimize(ctx, y, edges, a, b, p.Epochs, rng); err != nil {
		return nil, err
	}

	out := make([]Point, n)
	for i, r := range y {
		out[i] = Point{X: float32(r[0]), Y: float32(r[1])}
	}
	return out, nil
}

func tooFewSamples(n int) error {
	return arxiv.Errorf(arxiv.KindValidation, "projection",
		"cannot project %d papers; at least %d are needed", n, MinSamples)
}

// toDense copies vectors into a matrix, L2-normalizing rows for cosine.
func toDense(vectors [][]float32, normalize bool) (*mat.Dense, error) {
	n, d := len(vectors), len(vectors[0])
	data := make([]float64, 0, n*d)
	for i, v := range vectors {
		if len(v) != d {
			return nil, arxiv.Errorf(arxiv.KindModel, "projection",
				"row %d has %d dimensions, want %d", i, len(v), d)
		}
		var norm float64
		for _, f := range v {
			norm += float64(f) * float64(f)
		}
		norm = math.Sqrt(norm)
		for _, f := range v {
			if normalize && norm > 0 {
				data = append(data, float64(f)/norm)
			} else {
				data = append(data, float64(f))
			}
		}
	}
	return mat.NewDense(n, d, data), nil
}

// nearestNeighbors returns, per row, the k closest other rows and their
// distances in ascending order. Equal distances keep the lower index first.
func nearestNeighbors(ctx context.Context, x *mat.Dense, k int, metric string) ([][]int, [][]float64, error) {
	n, d := x.Dims()
	sq := make([]float64, n)
	for i := 0; i < n; i++ {
		r := x.RawRowView(i)
		sq[i] = floatsDot(r, r)
	}

	idx := make([][]int, n)
	dist := make([][]float64, n)
	for start := 0; start < n; start += knnBlockRows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		end := min(start+knnBlockRows, n)
		var g mat.Dense
		g.Mul(x.Slice(start, end, 0, d), x.T())

		for i := start; i < end; i++ {
			row := g.RawRowView(i - start)
			ni := make([]int, 0, k)
			nd := make([]float64, 0, k)
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				var dij float64
				if metric == MetricCosine {
					dij = math.Max(0, 1-row[j])
				} else {
					dij = math.Sqrt(math.Max(0, sq[i]+sq[j]-2*row[j]))
				}
				if len(nd) == k && dij >= nd[k-1] {
					continue
				}
				pos := sort.Search(len(nd), func(p int) bool { return nd[p] > dij })
				if len(nd) < k {
					nd = append(nd, 0)
					ni = append(ni, 0)
				}
				copy(nd[pos+1:], nd[pos:])
				copy(ni[pos+1:], ni[pos:])
				nd[pos], ni[pos] = dij, j
			}
			idx[i], dist[i] = ni, nd
		}
	}
	return idx, dist, nil
}

func floatsDot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

type edge struct {
	i, j int
	w    float64
}

// fuzzyGraph computes membership strengths for each kNN edge and combines
// the two directions with the fuzzy union a+b-ab. Edges come back sorted by
// (i, j), with both directions present.
func fuzzyGraph(idx [][]int, dist [][]float64) []edge {
	n := len(idx)
	var meanDist float64
	var count int
	for _, ds := range dist {
		for _, d := range ds {
			meanDist += d
			count++
		}
	}
	if count > 0 {
		meanDist /= float64(count)
	}

	directed := make(map[[2]int]float64, n*len(idx[0]))
	for i := range idx {
		ds := dist[i]
		target := math.Log2(float64(len(ds)))
		rho := 0.0
		for _, d := range ds {
			if d > 0 {
				rho = d
				break
			}
		}
		sigma := smoothSigma(ds, rho, target)
		if floor := minScaleFactor * meanDist; sigma < floor {
			sigma = floor
		}
		for p, j := range idx[i] {
			w := 1.0
			if diff := ds[p] - rho; diff > 0 && sigma > 0 {
				w = math.Exp(-diff / sigma)
			}
			directed[[2]int{i, j}] = w
		}
	}

	sym := make(map[[2]int]float64, 2*len(directed))
	for key, w := range directed {
		back := directed[[2]int{key[1], key[0]}]
		v := w + back - w*back
		sym[key] = v
		sym[[2]int{key[1], key[0]}] = v
	}

	edges := make([]edge, 0, len(sym))
	for key, w := range sym {
		edges = append(edges, edge{i: key[0], j: key[1], w: w})
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].i != edges[b].i {
			return edges[a].i < edges[b].i
		}
		return edges[a].j < edges[b].j
	})
	return edges
}

// smoothSigma binary-searches the bandwidth at which a point's neighbour
// memberships sum to target.
func smoothSigma(ds []float64, rho, target float64) float64 {
	lo, hi, mid := 0.0, math.Inf(1), 1.0
	for iter := 0; iter < smoothIterations; iter++ {
		var sum float64
		for _, d := range ds {
			if diff := d - rho; diff > 0 {
				sum += math.Exp(-diff / mid)
			} else {
				sum++
			}
		}
		if math.Abs(sum-target) < smoothTolerance {
			break
		}
		if sum > target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}
	return mid
}

// pcaInit lays points out on their first two principal components, scaled
// to [-initScale, initScale], with a little seeded jitter so duplicate
// embeddings do not start on top of each other.
func pcaInit(x *mat.Dense, rng *rand.Rand) [][2]float64 {
	n, d := x.Dims()
	means := make([]float64, d)
	for i := 0; i < n; i++ {
		for j, v := range x.RawRowView(i) {
			means[j] += v / float64(n)
		}
	}
	centered := mat.NewDense(n, d, nil)
	centered.Apply(func(i, j int, v float64) float64 { return v - means[j] }, x)

	var cov mat.SymDense
	cov.SymOuterK(1, centered.T())

	y := make([][2]float64, n)
	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); ok {
		var vecs mat.Dense
		eig.VectorsTo(&vecs)
		// Eigenvalues come back in ascending order.
		for c := 0; c < 2 && c < d; c++ {
			col := mat.Col(nil, d-1-c, &vecs)
			orientColumn(col)
			for i := 0; i < n; i++ {
				y[i][c] = floatsDot(centered.RawRowView(i), col)
			}
		}
	}

	var maxAbs float64
	for _, r := range y {
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(r[0]), math.Abs(r[1])))
	}
	scale := 1.0
	if maxAbs > 0 {
		scale = initScale / maxAbs
	}
	for i := range y {
		y[i][0] = y[i][0]*scale + rng.NormFloat64()*1e-4
		y[i][1] = y[i][1]*scale + rng.NormFloat64()*1e-4
	}
	return y
}

// orientColumn flips an eigenvector so its largest component is positive,
// making the initial layout independent of the solver's sign choice.
func orientColumn(col []float64) {
	var best float64
	for _, v := range col {
		if math.Abs(v) > math.Abs(best) {
			best = v
		}
	}
	if best < 0 {
		for i := range col {
			col[i] = -col[i]
		}
	}
}

// fitAB fits the low-dimensional similarity curve 1/(1+a·x^(2b)) to the
// target profile defined by minDist and spread, by coarse-to-fine grid
// search over (a, b).
func fitAB(minDist, spread float64) (float64, float64) {
	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	for i := range xs {
		xs[i] = 3 * spread * float64(i+1) / samples
		if xs[i] < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(xs[i] - minDist) / spread)
		}
	}
	loss := func(a, b float64) float64 {
		var s float64
		for i, x := range xs {
			r := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
			s += r * r
		}
		return s
	}

	aLo, aHi, bLo, bHi := 0.01, 10.0, 0.1, 3.0
	bestA, bestB := 1.0, 1.0
	for level := 0; level < 4; level++ {
		best := math.Inf(1)
		const steps = 40
		for ai := 0; ai <= steps; ai++ {
			a := aLo + (aHi-aLo)*float64(ai)/steps
			for bi := 0; bi <= steps; bi++ {
				b := bLo + (bHi-bLo)*float64(bi)/steps
				if l := loss(a, b); l < best {
					best, bestA, bestB = l, a, b
				}
			}
		}
		da, db := (aHi-aLo)/steps, (bHi-bLo)/steps
		aLo, aHi = math.Max(0.001, bestA-2*da), bestA+2*da
		bLo, bHi = math.Max(0.01, bestB-2*db), bestB+2*db
	}
	return bestA, bestB
}

func clip(v float64) float64 {
	return math.Max(-gradClip, math.Min(gradClip, v))
}

// optimize runs the epoch loop: each edge is sampled in proportion to its
// weight, pulling endpoints together, followed by repulsion from randomly
// drawn points.
func optimize(ctx context.Context, y [][2]float64, edges []edge, a, b float64, epochs int, rng *rand.Rand) error {
	if len(edges) == 0 {
		return nil
	}
	var maxW float64
	for _, e := range edges {
		maxW = math.Max(maxW, e.w)
	}
	kept := edges[:0:0]
	for _, e := range edges {
		if e.w >= maxW/float64(epochs) {
			kept = append(kept, e)
		}
	}

	perSample := make([]float64, len(kept))
	perNeg := make([]float64, len(kept))
	nextSample := make([]float64, len(kept))
	nextNeg := make([]float64, len(kept))
	for i, e := range kept {
		perSample[i] = maxW / e.w
		perNeg[i] = perSample[i] / negativeSampleRate
		nextSample[i] = perSample[i]
		nextNeg[i] = perNeg[i]
	}

	n := len(y)
	for ep := 0; ep < epochs; ep++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		alpha := 1 - float64(ep)/float64(epochs)
		for ei, e := range kept {
			if nextSample[ei] > float64(ep) {
				continue
			}
			cur, other := &y[e.i], &y[e.j]
			d2 := sqDist(*cur, *other)
			if d2 > 0 {
				coeff := -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
				for c := 0; c < 2; c++ {
					g := clip(coeff * (cur[c] - other[c]))
					cur[c] += g * alpha
					other[c] -= g * alpha
				}
			}
			nextSample[ei] += perSample[ei]

			nNeg := int((float64(ep) - nextNeg[ei]) / perNeg[ei])
			for s := 0; s < nNeg; s++ {
				k := rng.IntN(n)
				if k == e.i {
					continue
				}
				neg := &y[k]
				d2 := sqDist(*cur, *neg)
				for c := 0; c < 2; c++ {
					g := gradClip
					if d2 > 0 {
						coeff := 2 * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
						g = clip(coeff * (cur[c] - neg[c]))
					}
					cur[c] += g * alpha
				}
			}
			nextNeg[ei] += float64(max(nNeg, 0)) * perNeg[ei]
		}
	}
	return nil
}

func sqDist(p, q [2]float64) float64 {
	dx, dy := p[0]-q[0], p[1]-q[1]
	return dx*dx + dy*dy
}
