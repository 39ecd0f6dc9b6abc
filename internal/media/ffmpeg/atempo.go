package ffmpeg

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	minAtempo = 0.5
	maxAtempo = 2.0
)

// AtempoFactors decomposes speed into atempo stages that each stay within
// [0.5, 2.0]. The product of the stages equals speed.
func AtempoFactors(speed float64) ([]float64, error) {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return nil, fmt.Errorf("atempo: invalid speed %v", speed)
	}
	var factors []float64
	remaining := speed
	for remaining > maxAtempo {
		factors = append(factors, maxAtempo)
		remaining /= maxAtempo
	}
	for remaining < minAtempo {
		factors = append(factors, minAtempo)
		remaining /= minAtempo
	}
	return append(factors, remaining), nil
}

// AtempoChain renders speed as an ffmpeg audio filter chain.
func AtempoChain(speed float64) (string, error) {
	factors, err := AtempoFactors(speed)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(factors))
	for i, f := range factors {
		if i < len(factors)-1 {
			parts[i] = "atempo=" + strconv.FormatFloat(f, 'f', 1, 64)
			continue
		}
		parts[i] = fmt.Sprintf("atempo=%.6f", f)
	}
	return strings.Join(parts, ","), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
