package heightfield

// SampleLine returns the linearly interpolated value of line at the normalised
// position t in [0, 1]. Values outside the range are clamped.
func SampleLine(line []float32, t float64) float32 {
	n := len(line)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return line[0]
	}
	t = clamp(t, 0, 1)

	f := t * float64(n-1)
	i := int(f)
	if i >= n-1 {
		return line[n-1]
	}
	frac := float32(f - float64(i))
	if frac == 0 {
		return line[i]
	}
	return line[i]*(1-frac) + line[i+1]*frac
}

// Resample returns line stretched or squeezed to n samples with linear
// interpolation. Endpoints are preserved.
func Resample(line []float32, n int) []float32 {
	out := make([]float32, n)
	if n == 1 {
		if len(line) > 0 {
			out[0] = line[0]
		}
		return out
	}
	if n == len(line) {
		copy(out, line)
		return out
	}
	for i := 0; i < n; i++ {
		out[i] = SampleLine(line, Position(i, n))
	}
	return out
}

// Position returns the normalised position of sample i in a line of n samples.
func Position(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
