package crawlermodule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottlerDelayScalesWithLoad(t *testing.T) {
	throttler := &LoadThrottler{}
	base := 500 * time.Millisecond

	assert.Equal(t, base, throttler.Delay(base), "idle host keeps the base delay")

	throttler.cpuPercent = 75
	assert.Equal(t, 2*base, throttler.Delay(base))

	throttler.cpuPercent = 90
	assert.Equal(t, 3*base, throttler.Delay(base))

	throttler.cpuPercent = 10
	throttler.memPercent = 95
	assert.Equal(t, 3*base, throttler.Delay(base))
}
