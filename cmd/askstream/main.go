// Command askstream exposes a streaming answer backend as MCP tools.
//
// Usage:
//
//	askstream serve [--config file] [--transport stdio|http]
//	askstream ask [--tier quick|research|reasoning] <question>
//	askstream version
//
// Backend credentials come from PERPLEXITY_SESSION_TOKEN and
// PERPLEXITY_CSRF_TOKEN or the backend section of the config file.
//
// Exit codes:
//   - 0: success
//   - 1: configuration or startup failure
//   - 2: the query failed
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitFailure     = 1
	exitQueryFailed = 2
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to the YAML config file",
	EnvVars: []string{"ASKSTREAM_CONFIG"},
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		os.Exit(exitFailure)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "askstream",
		Usage:          "Streaming answer engine served over MCP",
		Version:        fmt.Sprintf("%s (commit: %s)", version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			serveCommand(),
			askCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "askstream %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

// exitErrHandler preserves exit codes from cli.Exit and prints everything
// else with exit code 1.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitFailure)
}
