package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Metric is the tri-state is_metric flag. On the wire it is the string
// "True" or "False" for compatibility with older clients; unknown is "".
type Metric int8

const (
	MetricUnknown Metric = iota
	MetricTrue
	MetricFalse
)

// MetricOf converts a bool to a known Metric value.
func MetricOf(b bool) Metric {
	if b {
		return MetricTrue
	}
	return MetricFalse
}

// Bool reports whether the flag is known to be true.
func (m Metric) Bool() bool {
	return m == MetricTrue
}

func (m Metric) String() string {
	switch m {
	case MetricTrue:
		return "True"
	case MetricFalse:
		return "False"
	default:
		return ""
	}
}

// QueryValue is the lowercase form used in query strings. An unknown flag
// is sent empty so the server keeps it unset.
func (m Metric) QueryValue() string {
	switch m {
	case MetricTrue:
		return "true"
	case MetricFalse:
		return "false"
	}
	return ""
}

// ParseMetric parses the textual forms servers and users produce.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "metric":
		return MetricTrue, nil
	case "false", "0", "no", "n", "imperial":
		return MetricFalse, nil
	case "":
		return MetricUnknown, nil
	}
	return MetricUnknown, fmt.Errorf("invalid metric flag %q", s)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*m = MetricUnknown
	case bool:
		*m = MetricOf(t)
	case float64:
		*m = MetricOf(t != 0)
	case string:
		parsed, err := ParseMetric(t)
		if err != nil {
			return err
		}
		*m = parsed
	default:
		return fmt.Errorf("invalid is_metric value %s", data)
	}
	return nil
}
