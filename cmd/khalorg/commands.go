package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"khalorg/internal/config"
	"khalorg/internal/ics"
	"khalorg/internal/khal"
	appLog "khalorg/internal/log"
	"khalorg/internal/org"
)

// app carries the process edges so commands can run against fakes.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	runner khal.Runner

	configPath string
	logLevel   string
	format     string
	file       string

	cfg *config.Config
}

func newApp() *app {
	return &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "khalorg",
		Short: "Interface between khal and Org mode",
		Long: `khalorg converts Org agenda items into khal calendar entries and
khal listings back into Org text.

Org input is read from stdin unless --file is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/khalorg/config.yaml)")
	pf.StringVar(&a.logLevel, "loglevel", "", "Log level: CRITICAL, ERROR, WARNING, INFO, DEBUG (default from config)")
	pf.StringVar(&a.format, "format", "", "Org template for rendered items (default from config)")
	pf.StringVar(&a.file, "file", "", "Read Org input from this file instead of stdin")

	root.AddCommand(
		newNewCommand(a),
		newListCommand(a),
		newExportCommand(a),
		newICSCommand(a),
		newFromICSCommand(a),
	)
	return root
}

func (a *app) setup() error {
	appLog.SetOutput(a.stderr)

	path := a.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("locate config: %w", err)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	a.cfg = cfg

	levelName := cfg.LogLevel
	if a.logLevel != "" {
		levelName = a.logLevel
	}
	level, err := appLog.ParseLevel(levelName)
	if err != nil {
		return err
	}
	appLog.SetLevel(level)
	appLog.Debug("effective config",
		"config_path", path,
		"khal_command", cfg.KhalCommand,
		"calendar", cfg.Calendar,
		"horizon_days", cfg.HorizonDays,
		"max_occurrences", cfg.MaxOccurrences,
	)
	return nil
}

func (a *app) template() string {
	if a.format != "" {
		return unescape(a.format)
	}
	return a.cfg.OrgFormat
}

// unescape turns "\n" typed on the command line into newlines.
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(s)
}

// openInput returns the --file contents, or stdin.
func (a *app) openInput() (io.ReadCloser, error) {
	if a.file != "" {
		return os.Open(a.file)
	}
	return io.NopCloser(a.stdin), nil
}

func (a *app) readInput() (string, error) {
	r, err := a.openInput()
	if err != nil {
		return "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

func (a *app) calendar(args []string) (*khal.Calendar, error) {
	name := a.cfg.Calendar
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		return nil, errors.New("no calendar given and none configured")
	}
	return khal.NewCalendar(name, a.cfg.KhalCommand, a.runner)
}

func newNewCommand(a *app) *cobra.Command {
	var dryRun bool
	var until string

	cmd := &cobra.Command{
		Use:   "new [CALENDAR]",
		Short: "Create a khal event from the Org item on stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a.calendar(args)
			if err != nil {
				return err
			}
			r, err := a.openInput()
			if err != nil {
				return err
			}
			defer r.Close()
			item, err := org.ReadItem(r)
			if err != nil {
				return err
			}

			opts := a.cfg.Args()
			opts.Until = until
			khalArgs, err := khal.NewArgs(item, cal.Name, opts)
			if err != nil {
				return fmt.Errorf("%q: %w", item.Title, err)
			}

			if dryRun {
				fmt.Fprintln(a.stdout, quoteArgs(append([]string{"khal", "new"}, khalArgs.List()...)))
				return nil
			}
			out, err := cal.New(cmd.Context(), khalArgs)
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the khal command instead of running it")
	cmd.Flags().StringVar(&until, "until", "", "Stop a recurring event on this date")
	return cmd
}

// quoteArgs joins tokens, quoting those a shell would split.
func quoteArgs(tokens []string) string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		if tok == "" || strings.ContainsAny(tok, " \t\n\"'") {
			tok = strconv.Quote(tok)
		}
		out[i] = tok
	}
	return strings.Join(out, " ")
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [CALENDAR] [START [STOP]]",
		Short: "Print khal events as Org items",
		Args:  cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a.calendar(args)
			if err != nil {
				return err
			}
			var start, stop string
			if len(args) > 1 {
				start = args[1]
			}
			if len(args) > 2 {
				stop = args[2]
			}

			listing, err := cal.List(cmd.Context(), a.cfg.ListFormat, start, stop)
			if err != nil {
				return err
			}
			out, _, err := khal.ListToOrg(listing, a.template(), a.cfg.Expand())
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, out)
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Remove duplicate Org items, keeping the first copy",
		Long: `Remove duplicate Org items, keeping the first copy verbatim.

With --format the remaining items are re-rendered with that template.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.readInput()
			if err != nil {
				return err
			}
			if a.format == "" {
				out, err := org.RemoveDuplicates(text)
				if err != nil {
					return err
				}
				fmt.Fprint(a.stdout, out)
				return nil
			}

			f, err := org.ParseFile(text)
			if err != nil {
				return err
			}
			f.RemoveDuplicates()
			fmt.Fprint(a.stdout, f.Format(a.template()))
			return nil
		},
	}
}

func newICSCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ics [CALENDAR]",
		Short: "Convert Org items to an iCalendar file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openInput()
			if err != nil {
				return err
			}
			defer r.Close()
			f, err := org.ReadFile(r)
			if err != nil {
				return err
			}
			f.ApplyRules(a.cfg.Expand())
			f.RemoveDuplicates()

			name := a.cfg.Calendar
			if len(args) > 0 {
				name = args[0]
			}
			fmt.Fprint(a.stdout, ics.EncodeItems(f.Items, name))
			return nil
		},
	}
}

func newFromICSCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "from-ics [FILE]",
		Short: "Convert an iCalendar file to Org items",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				a.file = args[0]
			}
			text, err := a.readInput()
			if err != nil {
				return err
			}

			items, err := ics.ParseICS([]byte(text))
			if err != nil {
				return err
			}
			f := &org.File{Items: items}
			f.RemoveDuplicates()
			fmt.Fprint(a.stdout, f.Format(a.template()))
			return nil
		},
	}
}
