package utils

import (
	"fmt"
	"math"
	"time"
)

const maxRetryValue = 32

// ExponentialBackoffInSeconds returns 2^retry seconds. Retry must be in
// [0, 32].
func ExponentialBackoffInSeconds(retry int) (time.Duration, error) {
	if retry < 0 || retry > maxRetryValue {
		return 0, fmt.Errorf("retry value %d out of bounds", retry)
	}
	return time.Duration(math.Pow(2, float64(retry))) * time.Second, nil
}
