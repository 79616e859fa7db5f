// Command pagecheck runs the checkbox page scenarios against real browsers
// and writes JSON, HTML and prometheus reports.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagecheck/pagecheck/internal/config"
	"github.com/pagecheck/pagecheck/internal/exitcode"
	"github.com/pagecheck/pagecheck/internal/version"
)

func main() {
	os.Exit(int(execute(os.Args[1:], os.Stdout, os.Stderr)))
}

// execute runs the CLI and maps the outcome to an exit code. Errors that
// carry no code are usage or configuration problems.
func execute(args []string, stdout, stderr io.Writer) exitcode.Code {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitcode.OK
	}
	err = exitcode.Wrap(err, exitcode.InvalidConfig)
	fmt.Fprintf(stderr, "Error: %v\n", err)
	if hint := exitcode.HintOf(err); hint != "" {
		fmt.Fprintf(stderr, "Hint: %s\n", hint)
	}
	return exitcode.Of(err)
}

// cli is the state the subcommands share.
type cli struct {
	v          *viper.Viper
	configFile string
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{v: config.New(), stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "pagecheck",
		Short: "Cross-browser checks for the checkbox reference page",
		Long: `pagecheck drives the checkbox reference page in chromium, firefox and
webkit (through playwright) or chrome (through the DevTools protocol) and
verifies that every interaction leaves the checked property and the checked
attribute in agreement.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "config file (default ./pagecheck.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "log format: text or json")
	mustBind(c.v, "logging.level", root.PersistentFlags().Lookup("log-level"))
	mustBind(c.v, "logging.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(newRunCmd(c), newListCmd(c), newServeCmd(c), newVersionCmd(c))
	return root
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "pagecheck %s\n", version.Full())
		},
	}
}

// load reads the configuration with flag overrides applied.
func (c *cli) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return nil, exitcode.Wrap(err, exitcode.InvalidConfig)
	}
	// An explicit flag beats the unprefixed BASE_URL variable.
	if f := cmd.Flags().Lookup("base-url"); f != nil && f.Changed {
		cfg.Target.BaseURL = f.Value.String()
	}
	return cfg, nil
}
