package verdict

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

var errConstantSample = errors.New("sample has zero range")

// Coefficients of Royston's (1995) polynomial approximations, algorithm AS R94.
var (
	swC1 = []float64{0, 0.221157, -0.147981, -2.071190, 4.434685, -2.706056}
	swC2 = []float64{0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3 = []float64{0.5440, -0.39978, 0.025054, -6.714e-4}
	swC4 = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5 = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6 = []float64{-0.4803, -0.082676, 0.0030302}
	swG  = []float64{-2.273, 0.459}
)

// poly evaluates c[0] + c[1]*x + c[2]*x^2 + ...
func poly(c []float64, x float64) float64 {
	res := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		res = res*x + c[i]
	}
	return res
}

// ShapiroWilk returns the W statistic and its p-value for the sample.
// It needs at least three values with a non-zero range.
func ShapiroWilk(sample []float64) (w, p float64, err error) {
	n := len(sample)
	if n < 3 {
		return 0, 0, ErrInsufficientData
	}

	x := append([]float64(nil), sample...)
	sort.Float64s(x)
	if x[n-1]-x[0] < 1e-19*math.Max(1, math.Abs(x[0])) {
		return 1, 1, errConstantSample
	}

	a := swCoefficients(n)

	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(n)

	var num, ss float64
	for i, ai := range a {
		num += ai * (x[n-1-i] - x[i])
	}
	for _, v := range x {
		ss += (v - mean) * (v - mean)
	}
	w = math.Min(1, num*num/ss)

	return w, swPValue(w, n), nil
}

// swCoefficients returns the first n/2 antisymmetric weights a_i.
func swCoefficients(n int) []float64 {
	nn2 := n / 2
	a := make([]float64, nn2)
	if n == 3 {
		a[0] = math.Sqrt(0.5)
		return a
	}

	an := float64(n)
	m := make([]float64, nn2)
	var summ2 float64
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (an + 0.25))
		summ2 += m[i] * m[i]
	}
	summ2 *= 2
	ssumm2 := math.Sqrt(summ2)
	rsn := 1 / math.Sqrt(an)

	a1 := poly(swC1, rsn) - m[0]/ssumm2
	first := 1
	var fac float64
	if n > 5 {
		first = 2
		a2 := -m[1]/ssumm2 + poly(swC2, rsn)
		fac = math.Sqrt((summ2 - 2*m[0]*m[0] - 2*m[1]*m[1]) / (1 - 2*a1*a1 - 2*a2*a2))
		a[1] = a2
	} else {
		fac = math.Sqrt((summ2 - 2*m[0]*m[0]) / (1 - 2*a1*a1))
	}
	a[0] = a1
	for i := first; i < nn2; i++ {
		a[i] = -m[i] / fac
	}
	return a
}

func swPValue(w float64, n int) float64 {
	if n == 3 {
		const pi6, stqr = 6 / math.Pi, math.Pi / 3
		p := pi6 * (math.Asin(math.Sqrt(math.Max(w, 0.75))) - stqr)
		return math.Max(0, math.Min(1, p))
	}
	if w >= 1 {
		return 1
	}

	an := float64(n)
	w1 := math.Log(1 - w)
	var mu, sigma float64
	if n <= 11 {
		gamma := poly(swG, an)
		if w1 >= gamma {
			return 1e-99
		}
		w1 = -math.Log(gamma - w1)
		mu = poly(swC3, an)
		sigma = math.Exp(poly(swC4, an))
	} else {
		xx := math.Log(an)
		mu = poly(swC5, xx)
		sigma = math.Exp(poly(swC6, xx))
	}
	return distuv.Normal{Mu: mu, Sigma: sigma}.Survival(w1)
}
