package quality

import (
	"encoding/json"
	"image"
	"math"
)

// PSNR is the peak signal-to-noise ratio in dB, capped at MaxScore.
type PSNR struct{}

var _ Metric = PSNR{}

func (PSNR) typeName() string {
	return "psnr"
}

func (m PSNR) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricSerializable{
		"type": m.typeName(),
	})
}

func (m *PSNR) setValues(in metricSerializable) error {
	return nil
}

func (PSNR) Score(reference, distorted *image.RGBA) (float64, error) {
	mse, err := MSE(reference, distorted)
	if err != nil {
		return 0, err
	}
	return PSNRFromMSE(mse), nil
}

func PSNRFromMSE(mse float64) float64 {
	if mse <= 0 {
		return MaxScore
	}
	return math.Min(MaxScore, 10*math.Log10(255*255/mse))
}
