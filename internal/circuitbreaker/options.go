package circuitbreaker

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultMaxFailures  = 3
	DefaultCallTimeout  = time.Second
	DefaultResetTimeout = time.Minute
)

// Options configures a breaker. Zero values are rejected by Validate.
type Options struct {
	MaxFailures       int
	CallTimeout       time.Duration
	ResetTimeout      time.Duration
	FallbackOnFailure bool

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// DefaultOptions mirrors the pokeapi breaker settings.
func DefaultOptions() Options {
	return Options{
		MaxFailures:       DefaultMaxFailures,
		CallTimeout:       DefaultCallTimeout,
		ResetTimeout:      DefaultResetTimeout,
		FallbackOnFailure: true,
	}
}

func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.MaxFailures, validation.Required, validation.Min(1)),
		validation.Field(&o.CallTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&o.ResetTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}
