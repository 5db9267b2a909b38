package fidelity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// #region result
// Result summarizes how closely surrogate outputs track model outputs.
type Result struct {
	Correlation float64 `json:"correlation" yaml:"correlation"`
	R2          float64 `json:"r2" yaml:"r2"`
}

// #endregion result

// #region compute
// ComputeFidelity returns the Pearson correlation between the two sequences and
// the R² of surrogateOutputs as a prediction of modelOutputs.
// Neither slice is modified.
func ComputeFidelity(modelOutputs, surrogateOutputs []float64) (Result, error) {
	if err := validatePair(modelOutputs, surrogateOutputs); err != nil {
		return Result{}, err
	}
	if isConstant(modelOutputs) {
		return Result{}, &DegenerateInputError{Reason: "model outputs have zero variance"}
	}
	if isConstant(surrogateOutputs) {
		return Result{}, &DegenerateInputError{Reason: "surrogate outputs have zero variance"}
	}

	// r survives scaling each side independently, R² only a common scale.
	// Scaled copies keep sums of squares clear of overflow and underflow.
	r := stat.Correlation(unitScaled(modelOutputs, 0), unitScaled(surrogateOutputs, 0), nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return Result{}, &DegenerateInputError{Reason: "correlation is undefined"}
	}
	// rounding can push |r| a hair past 1 for near-identical inputs
	r = math.Max(-1, math.Min(1, r))

	scale := floats.Norm(modelOutputs, math.Inf(1))
	r2 := stat.RSquaredFrom(unitScaled(surrogateOutputs, scale), unitScaled(modelOutputs, scale), nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return Result{}, &DegenerateInputError{Reason: "r2 is not representable as a float64"}
	}

	return Result{Correlation: r, R2: r2}, nil
}

// unitScaled returns a copy of v divided by scale, or by v's largest magnitude
// when scale is 0.
func unitScaled(v []float64, scale float64) []float64 {
	if scale == 0 {
		scale = floats.Norm(v, math.Inf(1))
	}
	out := make([]float64, len(v))
	for i, x := range v {
		// divide rather than multiply: 1/scale overflows for subnormal scales
		out[i] = x / scale
	}
	return out
}

// #endregion compute

// #region mae
// MeanAbsoluteError returns the mean of |model[i] - surrogate[i]|.
// It shares ComputeFidelity's input checks but not the variance requirement.
func MeanAbsoluteError(modelOutputs, surrogateOutputs []float64) (float64, error) {
	if err := validatePair(modelOutputs, surrogateOutputs); err != nil {
		return 0, err
	}
	scale := math.Max(floats.Norm(modelOutputs, math.Inf(1)), floats.Norm(surrogateOutputs, math.Inf(1)))
	if scale == 0 {
		return 0, nil
	}
	var sum float64
	for i := range modelOutputs {
		sum += math.Abs(modelOutputs[i]/scale - surrogateOutputs[i]/scale)
	}
	mae := sum / float64(len(modelOutputs)) * scale
	if math.IsInf(mae, 0) {
		return 0, &DegenerateInputError{Reason: "mean absolute error is not representable as a float64"}
	}
	return mae, nil
}

// #endregion mae

// #region validation
func validatePair(a, b []float64) error {
	if len(a) != len(b) {
		return &InvalidInputError{Reason: fmt.Sprintf("length mismatch: %d model outputs, %d surrogate outputs", len(a), len(b))}
	}
	if len(a) < 2 {
		return &InvalidInputError{Reason: fmt.Sprintf("need at least 2 points, got %d", len(a))}
	}
	if i := firstNonFinite(a); i >= 0 {
		return &InvalidInputError{Reason: fmt.Sprintf("model output %d is not finite: %v", i, a[i])}
	}
	if i := firstNonFinite(b); i >= 0 {
		return &InvalidInputError{Reason: fmt.Sprintf("surrogate output %d is not finite: %v", i, b[i])}
	}
	return nil
}

func isConstant(v []float64) bool {
	return floats.Max(v) == floats.Min(v)
}

func firstNonFinite(v []float64) int {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return i
		}
	}
	return -1
}

// #endregion validation
