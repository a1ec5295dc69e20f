package grading

// ComputeWeighted returns (raw/max)*weight, or 0 when max is not positive.
func ComputeWeighted(raw, max, weight float64) float64 {
	if max <= 0 {
		return 0
	}
	return (raw / max) * weight
}
