package verdict

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// exactLimit is the largest sample for which the exact null distribution is used.
const exactLimit = 50

// WilcoxonGreater runs a right-tailed Wilcoxon signed-rank test of the
// differences d (H1: the distribution of d is shifted above zero).
// Zero differences are dropped before ranking. The statistic is the sum of
// the ranks of the positive differences.
//
// The exact null distribution is used for up to exactLimit differences with
// no ties and no zeros; otherwise a normal approximation with tie correction
// and no continuity correction.
func WilcoxonGreater(d []float64) (wPlus, p float64) {
	nz := make([]float64, 0, len(d))
	for _, v := range d {
		if v != 0 {
			nz = append(nz, v)
		}
	}
	n := len(nz)
	if n == 0 {
		return 0, 1
	}

	ranks, ties := rankAbs(nz)
	for i, v := range nz {
		if v > 0 {
			wPlus += ranks[i]
		}
	}

	// The exact distribution assumes ranks 1..n; dropped zeros break that.
	if n <= exactLimit && !ties && n == len(d) {
		return wPlus, exactUpperTail(n, int(math.Round(wPlus)))
	}

	nf := float64(n)
	mean := nf * (nf + 1) / 4
	variance := nf * (nf + 1) * (2*nf + 1) / 24
	variance -= tieCorrection(nz) / 48
	if variance <= 0 {
		return wPlus, 1
	}
	z := (wPlus - mean) / math.Sqrt(variance)
	return wPlus, distuv.UnitNormal.Survival(z)
}

// rankAbs assigns average ranks (1-based) to |x| and reports whether any
// absolute values tie.
func rankAbs(x []float64) (ranks []float64, ties bool) {
	n := len(x)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return math.Abs(x[idx[a]]) < math.Abs(x[idx[b]]) })

	ranks = make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && math.Abs(x[idx[j]]) == math.Abs(x[idx[i]]) {
			j++
		}
		if j-i > 1 {
			ties = true
		}
		avg := float64(i+j+1) / 2 // mean of ranks i+1..j
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks, ties
}

// tieCorrection returns sum(t^3 - t) over groups of tied absolute values.
func tieCorrection(x []float64) float64 {
	abs := make([]float64, len(x))
	for i, v := range x {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)

	var sum float64
	for i := 0; i < len(abs); {
		j := i + 1
		for j < len(abs) && abs[j] == abs[i] {
			j++
		}
		t := float64(j - i)
		sum += t*t*t - t
		i = j
	}
	return sum
}

// exactUpperTail returns P(W+ >= w) under H0 for n untied ranks, counting
// the subsets of {1..n} by their sum.
func exactUpperTail(n, w int) float64 {
	maxSum := n * (n + 1) / 2
	if w <= 0 {
		return 1
	}
	if w > maxSum {
		return 0
	}

	counts := make([]float64, maxSum+1)
	counts[0] = 1
	for r := 1; r <= n; r++ {
		for s := maxSum; s >= r; s-- {
			counts[s] += counts[s-r]
		}
	}

	var tail float64
	for s := w; s <= maxSum; s++ {
		tail += counts[s]
	}
	return tail / math.Pow(2, float64(n))
}
