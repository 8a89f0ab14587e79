package list

import (
	"strings"

	"github.com/benz9527/xpool/lib/infra"
	"github.com/benz9527/xpool/xlog"
)

const (
	defaultListPoolStatsName = "default"
	listPoolLoggerName       = "x-list-pool"
)

type listPoolOptions struct {
	logger      xlog.XLogger
	valueCloner any // func(T) T, checked by the generic constructor
	statsName   string
	capacity    int
	maxSlots    int // 0 means limited by the handle type only
	enableStats bool
}

func (opts *listPoolOptions) getLogger() xlog.XLogger {
	if opts.logger == nil {
		opts.logger = xlog.NewNopXLogger()
	}
	return opts.logger
}

func (opts *listPoolOptions) getStatsName() string {
	if len(strings.TrimSpace(opts.statsName)) == 0 {
		return defaultListPoolStatsName
	}
	return opts.statsName
}

type ListPoolOption func(opts *listPoolOptions) error

// WithListPoolCapacity reserves n slots up front.
func WithListPoolCapacity(n int) ListPoolOption {
	return func(opts *listPoolOptions) error {
		if n < 0 {
			return infra.WrapErrorStackWithMessage(ErrListPoolInvalidOption, "negative capacity")
		}
		opts.capacity = n
		return nil
	}
}

// WithListPoolMaxSlots limits the number of slots the pool appends.
// The allocation beyond the limit fails with ErrListPoolExhausted.
func WithListPoolMaxSlots(n int) ListPoolOption {
	return func(opts *listPoolOptions) error {
		if n <= 0 {
			return infra.WrapErrorStackWithMessage(ErrListPoolInvalidOption, "non-positive max slots")
		}
		opts.maxSlots = n
		return nil
	}
}

func WithListPoolLogger(logger xlog.XLogger) ListPoolOption {
	return func(opts *listPoolOptions) error {
		if logger == nil {
			return infra.WrapErrorStackWithMessage(ErrListPoolInvalidOption, "nil logger")
		}
		opts.logger = logger
		return nil
	}
}

// WithListPoolStats enables the otel metrics of the pool under the meter name
// "xboot/xpool/<name>". The pool keeps reporting until it is closed.
func WithListPoolStats(name string) ListPoolOption {
	return func(opts *listPoolOptions) error {
		opts.enableStats = true
		opts.statsName = name
		return nil
	}
}

// WithListPoolValueCloner is used by Clone to deep copy the live values.
// Without it, the values are copied by assignment.
func WithListPoolValueCloner[T any](cloner func(T) T) ListPoolOption {
	return func(opts *listPoolOptions) error {
		if cloner == nil {
			return infra.WrapErrorStackWithMessage(ErrListPoolInvalidOption, "nil value cloner")
		}
		opts.valueCloner = cloner
		return nil
	}
}
