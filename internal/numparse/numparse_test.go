package numparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in      string
		hardbs  int64
		want    int64
	}{
		{"1k", 512, 1000},
		{"1Ki", 512, 1024},
		{"4s", 512, 2048},
		{"0x10", 512, 16},
		{"100", 512, 100},
	}
	for _, c := range cases {
		got, err := ParseSize(c.in, c.hardbs)
		assert.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseInterval(t *testing.T) {
	got, err := ParseInterval("1.5s")
	assert.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, got)

	got, err = ParseInterval("1/2m")
	assert.NoError(t, err)
	assert.Equal(t, 30*time.Second, got)
}
