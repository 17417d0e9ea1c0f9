//go:build linux

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampPriority(t *testing.T) {
	assert.Equal(t, 1, clampPriority(0, 99))
	assert.Equal(t, 50, clampPriority(50, 99))
	assert.Equal(t, 20, clampPriority(50, 20))
	assert.Equal(t, 99, clampPriority(500, 200))
	assert.Equal(t, 1, clampPriority(50, 0), "a zero limit still yields a valid priority")
}

func TestSetRealtime_DeadlineNeedsPeriod(t *testing.T) {
	err := setRealtime(RealTime{Enabled: true, Deadline: true}, 0)
	assert.ErrorContains(t, err, "requires a sample rate and block length")
}
