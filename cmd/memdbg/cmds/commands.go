package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wnxd/memdbg/config"
	"github.com/wnxd/memdbg/debugger"
	"github.com/wnxd/memdbg/debugger/cdb"
	"github.com/wnxd/memdbg/encoding"
	internal "github.com/wnxd/memdbg/internal/debugger"
	"github.com/wnxd/memdbg/internal/logflags"
	"github.com/wnxd/memdbg/internal/terminal"
)

// Version is overridden at link time.
var Version = "0.1.0-dev"

var (
	// configPath is the YAML settings file.
	configPath string
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of layers that should produce debug output.
	logOutput string
	// logDest is the file logs are appended to instead of standard error.
	logDest string
	// sync drives the debugger through the bridge goroutine.
	sync bool

	conf *config.Config
)

const memdbgCommandLongDesc = `memdbg reads and writes the memory of a running Windows process
through the cdb console debugger.

The debugger is attached non-invasively, so the target keeps running. Values
are addressed by a module name or an absolute address followed by a chain of
offsets; every offset but the last is dereferenced.`

// New returns an initialized command tree.
func New() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:          "memdbg",
		Short:        "memdbg is a typed memory console for Windows processes.",
		Long:         memdbgCommandLongDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd.ErrOrStderr())
		},
	}
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file.")
	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debug logging.")
	rootCommand.PersistentFlags().StringVar(&logOutput, "log-output", "", `Comma separated list of layers that should produce debug output:
	console	session startup and shutdown
	wire	every command sent to the debugger and its reply
	debugger	memory facade decisions
	bridge	bridge goroutine lifecycle
Defaults to "debugger" when logging is enabled.`)
	rootCommand.PersistentFlags().StringVar(&logDest, "log-dest", "", "Writes logs to the specified file.")
	rootCommand.PersistentFlags().BoolVar(&sync, "sync", false, "Drive the debugger from a dedicated goroutine through shared memory regions.")

	rootCommand.AddCommand(&cobra.Command{
		Use:   "attach <process>",
		Short: "Attach to a running process and open an interactive console.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbg, err := attach(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			con, err := conf.Console()
			if err != nil {
				dbg.Close()
				return err
			}
			return terminal.New(dbg, con.Dialect.Prompt).Run()
		},
	})

	rootCommand.AddCommand(&cobra.Command{
		Use:   "modules <process>",
		Short: "Lists the modules loaded by a process.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbg, err := attach(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer dbg.Close()
			list, err := dbg.Modules()
			if err != nil {
				return err
			}
			terminal.PrintModules(cmd.OutOrStdout(), list)
			return nil
		},
	})

	rootCommand.AddCommand(&cobra.Command{
		Use:   "read <process> <type> <origin> [offsets...]",
		Short: "Reads one typed value and detaches.",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := encoding.ParseType(args[1])
			if err != nil {
				return err
			}
			offsets, err := terminal.ParseOffsets(args[3:])
			if err != nil {
				return err
			}
			dbg, err := attach(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer dbg.Close()
			ptr, _, err := dbg.Memory(debugger.ParseOrigin(args[2]), offsets...)
			if err != nil {
				return err
			}
			v, err := ptr.Get(typ)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	rootCommand.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "memdbg\nVersion: %s\n", Version)
		},
	})

	return rootCommand
}

func setup(stderr io.Writer) error {
	var err error
	if conf, err = config.Load(configPath); err != nil {
		return err
	}
	if !log && conf.Log.Enabled {
		log = true
		if logOutput == "" {
			logOutput = conf.Log.Output
		}
	}
	if logDest == "" {
		logDest = conf.Log.File
	}

	dest := stderr
	if logDest != "" {
		f, err := os.OpenFile(logDest, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("log destination: %w", err)
		}
		dest = f
	} else if f, ok := stderr.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		dest = colorable.NewColorable(f)
		logflags.SetFormatter(&logrus.TextFormatter{ForceColors: true})
	}
	return logflags.Setup(log, logOutput, dest)
}

func attach(ctx context.Context, name string) (debugger.SyncDebugger, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	opts, err := conf.Options()
	if err != nil {
		return nil, err
	}
	if sync {
		return cdb.AttachSync(ctx, name, opts...)
	}
	dbg, err := cdb.Attach(ctx, name, opts...)
	if err != nil {
		return nil, err
	}
	return internal.NewSync(dbg), nil
}
