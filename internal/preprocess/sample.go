// Package preprocess validates, normalizes and resamples comparison datasets.
package preprocess

import (
	"fmt"
	"math/rand"
	"sort"
)

// SamplingMethod selects how oversized datasets are reduced.
type SamplingMethod string

// Sampling methods.
const (
	SampleRandom     SamplingMethod = "random"
	SampleSystematic SamplingMethod = "systematic"
	SampleStratified SamplingMethod = "stratified"
)

// ParseSamplingMethod accepts the sampling names used in config files and flags.
func ParseSamplingMethod(s string) (SamplingMethod, error) {
	switch SamplingMethod(s) {
	case "", SampleRandom:
		return SampleRandom, nil
	case SampleSystematic, SampleStratified:
		return SamplingMethod(s), nil
	}
	return "", fmt.Errorf("unknown sampling method %q", s)
}

// SampleSize returns max(1, floor(n*rate)).
func SampleSize(n int, rate float64) int {
	size := int(float64(n) * rate)
	if size < 1 {
		size = 1
	}
	if size > n {
		size = n
	}
	return size
}

// Sample draws size values from data using the given method.
func Sample(rnd *rand.Rand, data []float64, size int, method SamplingMethod) []float64 {
	if size <= 0 || len(data) == 0 {
		return []float64{}
	}
	if size >= len(data) {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}
	switch method {
	case SampleSystematic:
		return systematicSample(rnd, data, size)
	case SampleStratified:
		return stratifiedSample(rnd, data, size)
	default:
		return randomSample(rnd, data, size)
	}
}

func randomSample(rnd *rand.Rand, data []float64, size int) []float64 {
	out := make([]float64, 0, size)
	for _, idx := range rnd.Perm(len(data))[:size] {
		out = append(out, data[idx])
	}
	return out
}

// systematicSample takes every interval-th value from a random start.
func systematicSample(rnd *rand.Rand, data []float64, size int) []float64 {
	interval := len(data) / size
	start := rnd.Intn(interval)
	out := make([]float64, 0, size)
	for i := start; i < len(data) && len(out) < size; i += interval {
		out = append(out, data[i])
	}
	return out
}

// stratifiedSample splits sorted data into terciles and draws evenly from
// each. Every stratum contributes at least one value.
func stratifiedSample(rnd *rand.Rand, data []float64, size int) []float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	n := len(sorted)
	bounds := [4]int{0, n / 3, 2 * n / 3, n}
	perStratum := max(size/3, 1)
	out := make([]float64, 0, perStratum*3)
	for s := 0; s < 3; s++ {
		stratum := sorted[bounds[s]:bounds[s+1]]
		if len(stratum) == 0 {
			continue
		}
		take := min(perStratum, len(stratum))
		out = append(out, randomSample(rnd, stratum, take)...)
	}
	return out
}
