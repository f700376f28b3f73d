package console

import (
	"fmt"
	"strings"
	"time"
)

type WaitStrategy int

const (
	// WAIT_BLOCK parks the synchronous caller on a condition variable.
	WAIT_BLOCK WaitStrategy = iota
	// WAIT_SPIN polls the response region until it turns non-zero.
	WAIT_SPIN
)

const (
	DefaultAttachTimeout = 30 * time.Second
	DefaultRegionSize    = 50000
)

// Config controls how a session is started and how its channel matches
// replies.
type Config struct {
	Dialect *Dialect
	// Arch is used when the dialect has no lister to detect it.
	Arch Arch
	// AttachTimeout bounds the wait for the first prompt. Zero waits forever.
	AttachTimeout time.Duration
	// ChunkReset restarts token matching on every chunk for commands that
	// do not accumulate.
	ChunkReset bool
	RegionSize int
	Wait       WaitStrategy
}

func DefaultConfig() Config {
	return Config{
		Dialect:       DefaultDialect(),
		Arch:          ARCH_X86_64,
		AttachTimeout: DefaultAttachTimeout,
		RegionSize:    DefaultRegionSize,
	}
}

func (s WaitStrategy) String() string {
	switch s {
	case WAIT_BLOCK:
		return "block"
	case WAIT_SPIN:
		return "spin"
	}
	return "unknown"
}

func ParseWaitStrategy(s string) (WaitStrategy, error) {
	switch strings.ToLower(s) {
	case "", "block":
		return WAIT_BLOCK, nil
	case "spin":
		return WAIT_SPIN, nil
	}
	return WAIT_BLOCK, fmt.Errorf("unknown wait strategy %q", s)
}

func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "x86", "32":
		return ARCH_X86, nil
	case "", "x86_64", "amd64", "64":
		return ARCH_X86_64, nil
	}
	return ARCH_UNKNOWN, fmt.Errorf("unknown arch %q", s)
}
