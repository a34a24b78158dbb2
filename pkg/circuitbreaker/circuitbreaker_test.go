package circuitbreaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/hrnotify/pkg/circuitbreaker"
	"github.com/dmitrymomot/hrnotify/pkg/logger"
)

func TestNew_TripsAfterThreshold(t *testing.T) {
	t.Parallel()

	cb := circuitbreaker.New("email", circuitbreaker.Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, logger.Nop())

	fail := func() (any, error) { return nil, errors.New("postmark down") }

	_, err := cb.Execute(fail)
	assert.Error(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	_, err = cb.Execute(fail)
	assert.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err = cb.Execute(func() (any, error) { return nil, nil })
	assert.True(t, circuitbreaker.IsOpen(err))
	assert.False(t, circuitbreaker.IsOpen(errors.New("other")))
}
