package console

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cosiner/argv"
	"github.com/sirupsen/logrus"
	exec "golang.org/x/sys/execabs"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/internal/logflags"
)

var listerWidth = regexp.MustCompile(`^\s*(\d{2})`)

// DetectArch asks the dialect's process lister for the word size of the
// named process. Output starting with 64 means a 64-bit target.
func DetectArch(ctx context.Context, dialect *console.Dialect, name string) (console.Arch, error) {
	args, err := splitArgs(dialect.ListerArgs)
	if err != nil {
		return console.ARCH_UNKNOWN, err
	}
	out, err := exec.CommandContext(ctx, dialect.Lister, append(args, name)...).Output()
	if err != nil {
		return console.ARCH_UNKNOWN, fmt.Errorf("%s: %w", dialect.Lister, err)
	}
	if m := listerWidth.FindStringSubmatch(string(out)); m != nil && m[1] == "64" {
		return console.ARCH_X86_64, nil
	}
	return console.ARCH_X86, nil
}

// Launch starts the debugger attached to the named process and returns once
// it shows its first prompt.
func Launch(ctx context.Context, cfg console.Config, name string) (*Session, error) {
	if cfg.Dialect == nil {
		cfg.Dialect = console.DefaultDialect()
	}
	log := logflags.ConsoleLogger().WithField("process", name)
	arch := cfg.Arch
	if cfg.Dialect.Lister != "" {
		detected, err := DetectArch(ctx, cfg.Dialect, name)
		if err != nil {
			log.Warnf("arch detection failed, assuming %v: %v", arch, err)
		} else {
			arch = detected
		}
	}
	bin, err := exec.LookPath(cfg.Dialect.Binary(arch))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", console.ErrNoBinary, err)
	}
	args, err := splitArgs(cfg.Dialect.Args)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(bin, append(args, name)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := log.WriterLevel(logrus.WarnLevel)
	cmd.Stderr = stderr
	if err = cmd.Start(); err != nil {
		stderr.Close()
		return nil, fmt.Errorf("%w: %v", console.ErrAttachFailed, err)
	}
	log.Debugf("started %s %s", bin, strings.Join(cmd.Args[1:], " "))

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		stderr.Close()
	}()
	s, err := NewSession(ctx, stdout, stdin, cfg, name, arch)
	if err != nil {
		cmd.Process.Kill()
		<-exited
		return nil, err
	}
	s.pid = cmd.Process.Pid
	s.release = func(grace time.Duration) error {
		select {
		case err := <-exited:
			return exitError(err)
		case <-time.After(grace):
			s.log.Warn("debugger did not exit after detach, killing")
			cmd.Process.Kill()
			<-exited
			return nil
		}
	}
	return s, nil
}

func exitError(err error) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		// cdb reports a non-zero status after qd on some targets
		return nil
	}
	return err
}

func splitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := argv.Argv(s,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal commandline '%s'", s)
	}
	return v[0], nil
}
