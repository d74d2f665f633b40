// Command stage-scorer scores one CV against a target domain. It reads a
// JSON argument {"domaine": "...", "cv_path": "..."} and prints a JSON
// report on stdout.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"stageportal/internal/scoring"
)

type input struct {
	Domaine string `json:"domaine"`
	CVPath  string `json:"cv_path"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("stage-scorer", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	catalogPath := flags.String("catalog", "", "YAML skill catalog replacing the embedded one")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, `usage: stage-scorer [--catalog file] '{"domaine":"...","cv_path":"..."}'`)
		return 1
	}

	var in input
	if err := json.Unmarshal([]byte(flags.Arg(0)), &in); err != nil {
		fmt.Fprintf(stderr, "invalid input: %v\n", err)
		return 1
	}
	if strings.TrimSpace(in.CVPath) == "" {
		fmt.Fprintln(stderr, "invalid input: cv_path is required")
		return 1
	}

	var data []byte
	if *catalogPath != "" {
		var err error
		if data, err = os.ReadFile(*catalogPath); err != nil {
			fmt.Fprintf(stderr, "read catalog: %v\n", err)
			return 1
		}
	}
	catalog, err := scoring.LoadCatalog(data)
	if err != nil {
		fmt.Fprintf(stderr, "load catalog: %v\n", err)
		return 1
	}

	// An unreadable CV still yields a low default report.
	text, err := scoring.ExtractText(in.CVPath)
	if err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
		text = ""
	}
	report := scoring.NewAnalyzer(catalog).Analyze(text, in.Domaine)
	if err := json.NewEncoder(stdout).Encode(report); err != nil {
		fmt.Fprintf(stderr, "write report: %v\n", err)
		return 1
	}
	return 0
}
