// FILE: lixenwraith/seglog/utility_test.go
package seglog

import (
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestParseKeyValueForms(t *testing.T) {
	tests := []struct {
		input     string
		wantKey   string
		wantValue string
		wantErr   bool
	}{
		{"key=value", "key", "value", false},
		{" key = value ", "key", "value", false},
		{"time_format=15:04:05=x", "time_format", "15:04:05=x", false},
		{"noequals", "", "", true},
		{"=value", "", "", true},
		{"key=", "key", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			key, value, err := parseKeyValue(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestFmtErrorf(t *testing.T) {
	err := fmtErrorf("bad value %d", 3)
	assert.Equal(t, "seglog: bad value 3", err.Error())

	// Already prefixed formats are not prefixed twice
	err = fmtErrorf("seglog: already")
	assert.Equal(t, "seglog: already", err.Error())
}

func TestCombineErrors(t *testing.T) {
	a := errors.New("a")
	b := errors.New("b")

	assert.Nil(t, combineErrors(nil, nil))
	assert.Equal(t, a, combineErrors(a, nil))
	assert.Equal(t, b, combineErrors(nil, b))

	both := combineErrors(a, b)
	assert.ErrorIs(t, both, a)
	assert.ErrorIs(t, both, b)
	assert.Len(t, multierr.Errors(both), 2)
}

func TestGoroutineLabel(t *testing.T) {
	pattern := regexp.MustCompile(`^goroutine-\d+$`)

	own := goroutineLabel()
	assert.Regexp(t, pattern, own)
	assert.Equal(t, own, goroutineLabel(), "stable within one goroutine")

	var other string
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		other = goroutineLabel()
	}()
	wg.Wait()

	assert.Regexp(t, pattern, other)
	assert.NotEqual(t, own, other)
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, millis(1500))
	assert.Equal(t, time.Duration(0), millis(0))
}
