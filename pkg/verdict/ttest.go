package verdict

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTestGreater runs a one-sample right-tailed Student t-test of
// H0: mean <= mu0 against H1: mean > mu0.
//
// A sample without variance has an infinite (or undefined) statistic; its
// p-value is 0 when the mean exceeds mu0 and 1 otherwise.
func TTestGreater(x []float64, mu0 float64) (t, p float64) {
	n := float64(len(x))
	mean, sd := stat.MeanStdDev(x, nil)

	if sd == 0 || math.IsNaN(sd) {
		switch {
		case mean > mu0:
			return math.Inf(1), 0
		case mean < mu0:
			return math.Inf(-1), 1
		default:
			return math.NaN(), 1
		}
	}

	t = (mean - mu0) / (sd / math.Sqrt(n))
	p = distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}.Survival(t)
	return t, p
}
