package configpipeline

import "fmt"

// LoadError reports a mandatory layer that could not be read.
type LoadError struct {
	Layer string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config layer %s: %v", e.Layer, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
