package eval

// #region direction
// Direction says which side of the target a metric must land on.
type Direction string

const (
	DirectionMin Direction = "min" // value must be >= target
	DirectionMax Direction = "max" // value must be <= target
)

// #endregion direction

// #region source
// Source says where a metric's value comes from.
type Source string

const (
	SourceComputed Source = "computed" // derived from the prediction pair
	SourceReported Source = "reported" // supplied by the caller
)

// #endregion source

// #region metric
// Metric is one catalog entry with its target threshold.
type Metric struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Target      float64   `json:"target" yaml:"target"`
	Direction   Direction `json:"direction" yaml:"direction"`
	Source      Source    `json:"source" yaml:"source"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
}

// Catalog is the ordered set of metrics an audit is checked against.
type Catalog struct {
	Metrics []Metric `json:"metrics" yaml:"metrics"`
}

// #endregion metric

// #region check
// Status is the outcome of a single check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusMissing Status = "missing"
)

// Check captures a single metric evaluation.
type Check struct {
	Name      string    `json:"name" yaml:"name"`
	Value     *float64  `json:"value,omitempty" yaml:"value,omitempty"` // nil when missing
	Target    float64   `json:"target" yaml:"target"`
	Direction Direction `json:"direction" yaml:"direction"`
	Required  bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Status    Status    `json:"status" yaml:"status"`
}

// #endregion check

// #region result
// Result is the output of running a catalog over a set of metric values.
type Result struct {
	Passed bool    `json:"passed" yaml:"passed"`
	Checks []Check `json:"checks" yaml:"checks"`
	Reason string  `json:"reason" yaml:"reason"`
}

// #endregion result
