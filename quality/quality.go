// quality.go defines the interface of frame fidelity metrics.

// Package quality provides the metrics used to score a distorted frame
// against a reference frame.
package quality

import (
	"encoding/json"
	"fmt"
	"image"
	"reflect"
)

// MaxScore is reported for identical frames by every metric.
const MaxScore = 100.0

type Metric interface {
	typeName() string

	// Score compares two images of equal dimensions; higher is better,
	// MaxScore means identical.
	Score(reference, distorted *image.RGBA) (float64, error)
}

type valueSetter interface {
	setValues(vq metricSerializable) error
}

type metricSerializable map[string]any

func (vq metricSerializable) typeName() string {
	result, _ := vq["type"].(string)
	return result
}

func (vq metricSerializable) Convert() (Metric, error) {
	typeName, ok := vq["type"].(string)
	if !ok {
		return nil, fmt.Errorf("field 'type' is not set")
	}

	var r Metric
	for _, sample := range []Metric{
		ptr(PSNR{}),
		ptr(Similarity{}),
	} {
		if sample.typeName() == typeName {
			r = sample
			break
		}
	}
	if r == nil {
		return nil, fmt.Errorf("unknown metric type '%s'", typeName)
	}

	if err := r.(valueSetter).setValues(vq); err != nil {
		return nil, fmt.Errorf("unable to convert the value: %w", err)
	}
	return reflect.ValueOf(r).Elem().Interface().(Metric), nil
}

// Config is a serializable holder of a Metric.
type Config struct {
	Metric
}

func (c Config) MarshalJSON() ([]byte, error) {
	if c.Metric == nil {
		return []byte("null"), nil
	}
	return json.Marshal(c.Metric)
}

func (c *Config) UnmarshalJSON(b []byte) error {
	var vq metricSerializable
	if err := json.Unmarshal(b, &vq); err != nil {
		return fmt.Errorf("unable to unmarshal the metric: %w", err)
	}
	if vq == nil {
		c.Metric = nil
		return nil
	}
	m, err := vq.Convert()
	if err != nil {
		return err
	}
	c.Metric = m
	return nil
}

func (c Config) MarshalYAML() (any, error) {
	if c.Metric == nil {
		return nil, nil
	}
	b, err := json.Marshal(c.Metric)
	if err != nil {
		return nil, err
	}
	var vq metricSerializable
	if err := json.Unmarshal(b, &vq); err != nil {
		return nil, err
	}
	return map[string]any(vq), nil
}

func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	var vq metricSerializable
	if err := unmarshal(&vq); err != nil {
		return fmt.Errorf("unable to unmarshal the metric: %w", err)
	}
	m, err := vq.Convert()
	if err != nil {
		return err
	}
	c.Metric = m
	return nil
}

// MSE is the mean squared error over the RGB channels; alpha is ignored.
func MSE(reference, distorted *image.RGBA) (float64, error) {
	refSize, distSize := reference.Bounds().Size(), distorted.Bounds().Size()
	if refSize != distSize {
		return 0, fmt.Errorf("the images have different dimensions: %v != %v", refSize, distSize)
	}
	if refSize.X == 0 || refSize.Y == 0 {
		return 0, fmt.Errorf("the images are empty")
	}

	var sum uint64
	for y := 0; y < refSize.Y; y++ {
		refRow := reference.Pix[reference.PixOffset(reference.Rect.Min.X, reference.Rect.Min.Y+y):]
		distRow := distorted.Pix[distorted.PixOffset(distorted.Rect.Min.X, distorted.Rect.Min.Y+y):]
		for x := 0; x < refSize.X*4; x += 4 {
			for c := 0; c < 3; c++ {
				d := int64(refRow[x+c]) - int64(distRow[x+c])
				sum += uint64(d * d)
			}
		}
	}
	return float64(sum) / float64(refSize.X*refSize.Y*3), nil
}
