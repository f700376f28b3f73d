package debugger

import (
	"time"

	"github.com/wnxd/memdbg/console"
)

const DefaultAllocSize = 0x1000

type Options struct {
	// StrictModules makes pointer chains starting at an unknown module fail
	// instead of starting at address 0.
	StrictModules bool
	// Permissive turns decode failures into zero values.
	Permissive bool
	AllocSize  uint64
	Console    console.Config
}

type Option func(*Options)

func NewOptions(opts ...Option) Options {
	o := Options{
		AllocSize: DefaultAllocSize,
		Console:   console.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithStrictModules(strict bool) Option {
	return func(o *Options) { o.StrictModules = strict }
}

func WithPermissive(permissive bool) Option {
	return func(o *Options) { o.Permissive = permissive }
}

func WithAllocSize(size uint64) Option {
	return func(o *Options) {
		if size != 0 {
			o.AllocSize = size
		}
	}
}

func WithConsole(cfg console.Config) Option {
	return func(o *Options) { o.Console = cfg }
}

func WithDialect(d *console.Dialect) Option {
	return func(o *Options) { o.Console.Dialect = d }
}

func WithAttachTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.Console.AttachTimeout = timeout }
}

func WithWaitStrategy(wait console.WaitStrategy) Option {
	return func(o *Options) { o.Console.Wait = wait }
}
