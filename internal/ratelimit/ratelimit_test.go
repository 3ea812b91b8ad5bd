package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/maghoff/ddrescue-dvdcss/internal/clock"
)

func TestLimiterDisabledWhenRateZero(t *testing.T) {
	c := clock.NewFake(time.Now())
	l := NewLimiter(0, 0, c)
	l.SetSleepFunc(func(time.Duration) { t.Fatal("should not sleep when disabled") })
	l.WaitN(1 << 30)
}

func TestSamplerAccumulates(t *testing.T) {
	c := clock.NewFake(time.Now())
	s := NewSampler(c, 5*time.Second, 5)
	s.Add(100)
	c.Advance(time.Second)
	s.Add(100)
	assert.InDelta(t, 40, s.Rate(), 1)
}
