package verdict

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_NormalSample(t *testing.T) {
	res, err := Evaluate([]float64{0.9, 0.91, 0.89}, 0.85)
	require.NoError(t, err)

	assert.True(t, res.IsNormal)
	assert.Equal(t, TestTTest, res.TestName)
	assert.InDelta(t, 8.660254, res.Statistic, 1e-5)
	assert.InDelta(t, 0.0065359, res.PValue, 1e-6)
	assert.True(t, res.RejectH0)
	assert.InDelta(t, 0.9, res.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(0.0002/3), res.Std, 1e-12) // population std
	assert.Equal(t, 3, res.N)
	assert.Equal(t, 0.85, res.Threshold)
}

func TestEvaluate_InsufficientData(t *testing.T) {
	for _, scores := range [][]float64{nil, {0.9}, {0.9, 0.95}} {
		_, err := Evaluate(scores, 0.85)
		assert.True(t, errors.Is(err, ErrInsufficientData), "n=%d: %v", len(scores), err)
	}
}

func TestEvaluate_NonNormalExact(t *testing.T) {
	scores := []float64{0.80, 0.951, 0.962, 0.973, 0.984, 0.990, 0.986, 0.977, 0.968, 0.992, 0.994, 0.981, 0.975}
	res, err := Evaluate(scores, 0.85)
	require.NoError(t, err)

	assert.False(t, res.IsNormal)
	assert.Equal(t, TestWilcoxon, res.TestName)
	assert.Equal(t, 90.0, res.Statistic)
	assert.InDelta(t, 2.0/8192.0, res.PValue, 1e-12)
	assert.True(t, res.RejectH0)
}

func TestEvaluate_NonNormalTies(t *testing.T) {
	scores := []float64{0.86, 0.86, 0.86, 0.86, 0.86, 0.86, 0.86, 0.99}
	res, err := Evaluate(scores, 0.85)
	require.NoError(t, err)

	assert.False(t, res.IsNormal)
	assert.Equal(t, TestWilcoxon, res.TestName)
	assert.Equal(t, 36.0, res.Statistic)
	assert.InDelta(t, 0.0033278, res.PValue, 1e-6)
	assert.True(t, res.RejectH0)
}

func TestEvaluate_BelowThreshold(t *testing.T) {
	res, err := Evaluate([]float64{0.70, 0.72, 0.74, 0.71, 0.73}, 0.85)
	require.NoError(t, err)
	assert.False(t, res.RejectH0)
	assert.Greater(t, res.PValue, 0.5)
}

func TestEvaluate_ZeroVariance(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		wantP     float64
		wantStat  float64
		wantNaN   bool
		wantRejct bool
	}{
		{"Above", 0.9, 0, math.Inf(1), false, true},
		{"Below", 0.8, 1, math.Inf(-1), false, false},
		{"Equal", 0.85, 1, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Evaluate([]float64{tt.value, tt.value, tt.value, tt.value}, 0.85)
			require.NoError(t, err)
			assert.True(t, res.IsNormal)
			assert.Equal(t, TestTTest, res.TestName)
			assert.Equal(t, tt.wantP, res.PValue)
			assert.Equal(t, tt.wantRejct, res.RejectH0)
			if tt.wantNaN {
				assert.True(t, math.IsNaN(res.Statistic))
			} else {
				assert.Equal(t, tt.wantStat, res.Statistic)
			}
			assert.Zero(t, res.Std)
		})
	}
}

func TestEngine_Alpha(t *testing.T) {
	scores := []float64{0.86, 0.88, 0.87, 0.91, 0.90, 0.89, 0.92, 0.88}

	loose, err := New(0.05).Evaluate(scores, 0.88)
	require.NoError(t, err)
	strict, err := New(0.0001).Evaluate(scores, 0.88)
	require.NoError(t, err)

	assert.Equal(t, loose.PValue, strict.PValue)
	assert.True(t, strict.PValue > 0.0001)
	assert.False(t, strict.RejectH0)

	// invalid alpha falls back to the default
	assert.Equal(t, DefaultAlpha, New(0).alpha)
	assert.Equal(t, DefaultAlpha, New(1.5).alpha)
}

func TestShapiroWilk(t *testing.T) {
	tests := []struct {
		name  string
		x     []float64
		wantW float64
		wantP float64
	}{
		{"Skewed", []float64{148, 154, 158, 160, 161, 162, 166, 170, 182, 195, 236}, 0.7888147, 0.0067038},
		{"NearNormal", []float64{0.86, 0.88, 0.87, 0.91, 0.90, 0.89, 0.92, 0.88}, 0.9736511, 0.9250170},
		{"Outlier", []float64{0.86, 0.86, 0.86, 0.86, 0.86, 0.86, 0.86, 0.99}, 0.4183984, 1.0472e-6},
		{"LargeN", []float64{0.80, 0.95, 0.97, 0.98, 0.99, 0.99, 0.985, 0.975, 0.96, 0.99, 0.99, 0.98, 0.97}, 0.5265434, 1.6269e-5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, p, err := ShapiroWilk(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantW, w, 1e-6)
			assert.InDelta(t, tt.wantP, p, 1e-6+tt.wantP*1e-3)
		})
	}

	_, _, err := ShapiroWilk([]float64{1, 2})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, _, err = ShapiroWilk([]float64{3, 3, 3})
	assert.ErrorIs(t, err, errConstantSample)
}

func TestWilcoxonGreater(t *testing.T) {
	tests := []struct {
		name     string
		d        []float64
		wantStat float64
		wantP    float64
	}{
		{"AllPositive", []float64{1, 2, 3}, 6, 0.125},
		{"OneNegative", []float64{-1, 2, 3}, 5, 0.25},
		{"AllZero", []float64{0, 0, 0}, 0, 1},
		{"ZerosDropped", []float64{0, 1, 2, 3}, 6, 0.0544047},
		{"ZerosForceApprox", []float64{0, 0, 1, -2, 3, 4}, 8, 0.1366608},
		{"TiesApprox", []float64{-0.15, -0.14, -0.13, -0.12, -0.11, -0.10, -0.09, 0.14}, 6.5, 0.9465516},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stat, p := WilcoxonGreater(tt.d)
			assert.Equal(t, tt.wantStat, stat)
			assert.InDelta(t, tt.wantP, p, 1e-6)
		})
	}
}

func TestExactUpperTail(t *testing.T) {
	// n=3: sums of subsets of {1,2,3} are 0,1,2,3,3,4,5,6
	assert.Equal(t, 1.0, exactUpperTail(3, 0))
	assert.Equal(t, 4.0/8.0, exactUpperTail(3, 3))
	assert.Equal(t, 1.0/8.0, exactUpperTail(3, 6))
	assert.Equal(t, 0.0, exactUpperTail(3, 7))
}

func TestTTestGreater(t *testing.T) {
	stat, p := TTestGreater([]float64{1, 2, 3, 4, 5}, 3)
	assert.Equal(t, 0.0, stat)
	assert.InDelta(t, 0.5, p, 1e-12)
}
