package fidelity

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

const tol = 1e-9

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// #region contract-tests
func TestComputeFidelity_Example(t *testing.T) {
	a := []float64{1.0, 2.0, 3.0, 4.0}
	b := []float64{1.1, 1.9, 3.2, 3.8}

	res, err := ComputeFidelity(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// cov = 4.7, ssA = 5, ssB = 4.5 -> r = 4.7 / sqrt(22.5)
	wantR := 4.7 / math.Sqrt(22.5)
	if !near(res.Correlation, wantR, tol) {
		t.Errorf("correlation = %v, want %v", res.Correlation, wantR)
	}
	// SSres = 0.1, SStot = 5
	if !near(res.R2, 0.98, tol) {
		t.Errorf("r2 = %v, want 0.98", res.R2)
	}
}

func TestComputeFidelity_IdenticalInputs(t *testing.T) {
	a := []float64{559, 612, 480, 701, 655, 590}

	res, err := ComputeFidelity(a, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(res.Correlation, 1.0, 1e-12) {
		t.Errorf("correlation = %v, want 1", res.Correlation)
	}
	if res.R2 != 1.0 {
		t.Errorf("r2 = %v, want exactly 1", res.R2)
	}
}

func TestComputeFidelity_DoesNotMutateInputs(t *testing.T) {
	a := []float64{3, 1, 2}
	b := []float64{2, 3, 1}
	if _, err := ComputeFidelity(a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a[0] != 3 || a[1] != 1 || a[2] != 2 || b[0] != 2 || b[1] != 3 || b[2] != 1 {
		t.Fatalf("inputs modified: %v %v", a, b)
	}
}

func TestComputeFidelity_CorrelationSymmetricR2Not(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{2, 4, 6, 8}

	ab, err := ComputeFidelity(a, b)
	if err != nil {
		t.Fatalf("ab: %v", err)
	}
	ba, err := ComputeFidelity(b, a)
	if err != nil {
		t.Fatalf("ba: %v", err)
	}

	if !near(ab.Correlation, ba.Correlation, 1e-12) {
		t.Errorf("correlation not symmetric: %v vs %v", ab.Correlation, ba.Correlation)
	}
	if ab.R2 == ba.R2 {
		t.Errorf("expected r2 to depend on reference, both %v", ab.R2)
	}
	// SSres = 30 in both directions; SStot is 5 for a and 20 for b
	if !near(ab.R2, -5, tol) {
		t.Errorf("r2(a,b) = %v, want -5", ab.R2)
	}
	if !near(ba.R2, -0.5, tol) {
		t.Errorf("r2(b,a) = %v, want -0.5", ba.R2)
	}
}

func TestComputeFidelity_NegativeCorrelation(t *testing.T) {
	res, err := ComputeFidelity([]float64{1, 2, 3}, []float64{3, 2, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(res.Correlation, -1, 1e-12) {
		t.Errorf("correlation = %v, want -1", res.Correlation)
	}
}

func TestComputeFidelity_CorrelationInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(50)
		a := make([]float64, n)
		b := make([]float64, n)
		for i := range a {
			a[i] = rng.NormFloat64() * 100
			b[i] = a[i]*rng.Float64() + rng.NormFloat64()*10
		}
		res, err := ComputeFidelity(a, b)
		if err != nil {
			t.Fatalf("trial %d: unexpected error: %v", trial, err)
		}
		if res.Correlation < -1 || res.Correlation > 1 {
			t.Fatalf("trial %d: correlation %v out of range", trial, res.Correlation)
		}
		if res.R2 > 1 {
			t.Fatalf("trial %d: r2 %v above 1", trial, res.R2)
		}
	}
}

func TestComputeFidelity_Deterministic(t *testing.T) {
	a := []float64{0.12, 0.55, 0.91, 0.33, 0.78}
	b := []float64{0.10, 0.60, 0.85, 0.30, 0.81}
	first, err := ComputeFidelity(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := ComputeFidelity(a, b)
		if again != first {
			t.Fatalf("run %d: got %+v, want %+v", i, again, first)
		}
	}
}

func TestComputeFidelity_ScaleInvariant(t *testing.T) {
	a := []float64{1.0, 2.0, 3.0, 4.0}
	b := []float64{1.1, 1.9, 3.2, 3.8}
	want, err := ComputeFidelity(a, b)
	if err != nil {
		t.Fatalf("unscaled: %v", err)
	}

	for _, k := range []float64{1e200, 1e-200, 1e-300, math.MaxFloat64 / 4} {
		sa := make([]float64, len(a))
		sb := make([]float64, len(b))
		for i := range a {
			sa[i] = a[i] * k
			sb[i] = b[i] * k
		}
		got, err := ComputeFidelity(sa, sb)
		if err != nil {
			t.Fatalf("scale %g: unexpected error: %v", k, err)
		}
		if !near(got.Correlation, want.Correlation, tol) || !near(got.R2, want.R2, tol) {
			t.Errorf("scale %g: got %+v, want %+v", k, got, want)
		}
	}
}

func TestComputeFidelity_OppositeHugeValues(t *testing.T) {
	for _, big := range []float64{1e200, math.MaxFloat64} {
		res, err := ComputeFidelity([]float64{big, -big, 0}, []float64{1, 2, 3})
		if err != nil {
			t.Fatalf("%g: unexpected error: %v", big, err)
		}
		// same r as [1,-1,0] vs [1,2,3]; SSres and SStot both round to 2*big²
		if !near(res.Correlation, -0.5, tol) {
			t.Errorf("%g: correlation = %v, want -0.5", big, res.Correlation)
		}
		if !near(res.R2, 0, tol) {
			t.Errorf("%g: r2 = %v, want 0", big, res.R2)
		}
	}
}

// Every finite input must come back finite or as a typed error.
func TestComputeFidelity_ExtremeMagnitudesNeverNaN(t *testing.T) {
	tiny := math.SmallestNonzeroFloat64
	cases := []struct {
		name string
		a, b []float64
	}{
		{"huge both", []float64{1e200, 2e200, 3e200}, []float64{1.1e200, 1.9e200, 3.05e200}},
		{"tiny both", []float64{1e-200, 2e-200, 3e-200}, []float64{1.1e-200, 1.9e-200, 3.05e-200}},
		{"near max", []float64{math.MaxFloat64, 0, -math.MaxFloat64}, []float64{math.MaxFloat64, 1, -math.MaxFloat64}},
		{"huge surrogate", []float64{1, 2, 3}, []float64{math.MaxFloat64, 0, -math.MaxFloat64}},
		{"subnormal model", []float64{tiny, 2 * tiny, 3 * tiny}, []float64{1, 2, 3}},
		{"subnormal both", []float64{tiny, 2 * tiny, 3 * tiny}, []float64{tiny, 3 * tiny, 2 * tiny}},
		{"mixed exponents", []float64{1e-300, 1e300, -1e300}, []float64{1e300, -1e-300, 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ComputeFidelity(tc.a, tc.b)
			if err != nil {
				if Kind(err) == "" {
					t.Fatalf("untyped error: %v", err)
				}
				return
			}
			if math.IsNaN(res.Correlation) || math.IsInf(res.Correlation, 0) || res.Correlation < -1 || res.Correlation > 1 {
				t.Fatalf("correlation %v not a finite value in [-1, 1]", res.Correlation)
			}
			if math.IsNaN(res.R2) || math.IsInf(res.R2, 0) || res.R2 > 1 {
				t.Fatalf("r2 %v not a finite value <= 1", res.R2)
			}
		})
	}

	// r² would be about -1e616 here, beyond float64
	_, err := ComputeFidelity([]float64{1, 2, 3}, []float64{math.MaxFloat64, 0, -math.MaxFloat64})
	if !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("expected ErrDegenerateInput for unrepresentable r2, got %v", err)
	}
}

// #endregion contract-tests

// #region error-tests
func TestComputeFidelity_InvalidInput(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
	}{
		{"length mismatch", []float64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4}},
		{"empty", nil, nil},
		{"single point", []float64{1}, []float64{2}},
		{"nan in model", []float64{1, math.NaN(), 3}, []float64{1, 2, 3}},
		{"inf in surrogate", []float64{1, 2, 3}, []float64{1, math.Inf(1), 3}},
		{"negative inf", []float64{math.Inf(-1), 2, 3}, []float64{1, 2, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeFidelity(tc.a, tc.b)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var typed *InvalidInputError
			if !errors.As(err, &typed) || typed.Reason == "" {
				t.Fatalf("expected *InvalidInputError with reason, got %T", err)
			}
			if Kind(err) != "invalid_input" {
				t.Errorf("Kind = %q", Kind(err))
			}
		})
	}
}

func TestComputeFidelity_DegenerateInput(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
	}{
		{"constant model", []float64{1, 1, 1}, []float64{1, 2, 3}},
		{"constant surrogate", []float64{1, 2, 3}, []float64{4, 4, 4}},
		{"both constant", []float64{0.1, 0.1, 0.1}, []float64{0.1, 0.1, 0.1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeFidelity(tc.a, tc.b)
			if !errors.Is(err, ErrDegenerateInput) {
				t.Fatalf("expected ErrDegenerateInput, got %v", err)
			}
			if errors.Is(err, ErrInvalidInput) {
				t.Fatal("degenerate error must not match ErrInvalidInput")
			}
			if Kind(err) != "degenerate_input" {
				t.Errorf("Kind = %q", Kind(err))
			}
		})
	}
}

func TestKind_ForeignError(t *testing.T) {
	if k := Kind(errors.New("boom")); k != "" {
		t.Fatalf("expected empty kind, got %q", k)
	}
}

// #endregion error-tests

// #region mae-tests
func TestMeanAbsoluteError(t *testing.T) {
	mae, err := MeanAbsoluteError([]float64{1, 2, 3, 4}, []float64{1.1, 1.9, 3.2, 3.8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(mae, 0.15, tol) {
		t.Errorf("mae = %v, want 0.15", mae)
	}
}

func TestMeanAbsoluteError_ConstantAllowed(t *testing.T) {
	mae, err := MeanAbsoluteError([]float64{2, 2}, []float64{1, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(mae, 1, tol) {
		t.Errorf("mae = %v, want 1", mae)
	}
}

func TestMeanAbsoluteError_ExtremeMagnitudes(t *testing.T) {
	mae, err := MeanAbsoluteError([]float64{1e300, 2e300}, []float64{1.5e300, 2.5e300})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(mae/1e300, 0.5, tol) {
		t.Errorf("mae = %v, want 5e299", mae)
	}

	_, err = MeanAbsoluteError([]float64{math.MaxFloat64, -math.MaxFloat64}, []float64{-math.MaxFloat64, math.MaxFloat64})
	if !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("expected ErrDegenerateInput for overflowing mae, got %v", err)
	}
}

func TestMeanAbsoluteError_InvalidInput(t *testing.T) {
	if _, err := MeanAbsoluteError([]float64{1, 2}, []float64{1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

// #endregion mae-tests
