package physics

import "math"

// DrivingForce is the thermodynamic bias m(T) = (alpha/π)·atan(gamma·(1−T)).
// It vanishes at T = 1 and grows as the melt is undercooled.
func DrivingForce(t, alpha, gamma float64) float64 {
	return (alpha / math.Pi) * math.Atan(gamma*(1.0-t))
}

// DrivingField evaluates DrivingForce cell by cell into dst.
func DrivingField(dst, temp []float64, alpha, gamma float64) {
	for i, t := range temp {
		dst[i] = DrivingForce(t, alpha, gamma)
	}
}
