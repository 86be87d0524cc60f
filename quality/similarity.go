package quality

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
)

// Similarity maps the root of MSE linearly onto [0, MaxScore]: identical
// frames score MaxScore, a root error of Tolerance or more scores zero.
type Similarity struct {
	Tolerance float64
}

var _ Metric = Similarity{}

func (Similarity) typeName() string {
	return "similarity"
}

func (m Similarity) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricSerializable{
		"type":      m.typeName(),
		"tolerance": m.Tolerance,
	})
}

func (m *Similarity) setValues(in metricSerializable) error {
	v, ok := in["tolerance"]
	if !ok {
		m.Tolerance = 0
		return nil
	}
	switch v := v.(type) {
	case float64:
		m.Tolerance = v
	case int:
		m.Tolerance = float64(v)
	default:
		return fmt.Errorf("have not found a numeric value using key 'tolerance' in %#+v", in)
	}
	return nil
}

func (m Similarity) Score(reference, distorted *image.RGBA) (float64, error) {
	mse, err := MSE(reference, distorted)
	if err != nil {
		return 0, err
	}
	tolerance := m.Tolerance
	if tolerance <= 0 {
		tolerance = 255
	}
	return MaxScore * math.Max(0, 1-math.Sqrt(mse)/tolerance), nil
}
