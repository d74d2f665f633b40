// Command stagectl is the terminal client of the internship portal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"stageportal/internal/client"
	"stageportal/internal/console"
)

const defaultAPI = "http://localhost:3000"

type app struct {
	stdout   io.Writer
	stderr   io.Writer
	sessions *console.SessionStore
	baseURL  string
	now      func() time.Time
}

type command struct {
	name    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{"register", "create a candidate account", (*app).register},
	{"login", "log in as candidate or admin", (*app).login},
	{"logout", "forget the stored session", (*app).logout},
	{"whoami", "show the logged in account", (*app).whoami},
	{"submit", "submit an internship application", (*app).submit},
	{"list", "show the dashboard of the current role", (*app).list},
	{"decide", "record a decision on an application (admin)", (*app).decide},
	{"download", "download a stored document", (*app).download},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := pflag.NewFlagSet("stagectl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	apiURL := global.String("api", envOr("STAGEPORTAL_API", ""), "portal API base URL")
	sessionPath := global.String("session", envOr("STAGEPORTAL_SESSION", ""), "session file")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stderr)
			return 0
		}
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}

	if *sessionPath == "" {
		path, err := console.DefaultSessionPath()
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		*sessionPath = path
	}
	a := &app{
		stdout:   stdout,
		stderr:   stderr,
		sessions: console.NewSessionStore(*sessionPath),
		baseURL:  *apiURL,
		now:      time.Now,
	}

	for _, cmd := range commands {
		if cmd.name != rest[0] {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := cmd.run(a, ctx, rest[1:]); err != nil {
			if errors.Is(err, pflag.ErrHelp) {
				return 0
			}
			fmt.Fprintln(stderr, "error:", describe(err))
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
	printUsage(stderr)
	return 2
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: stagectl [--api url] [--session file] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.summary)
	}
}

// describe adds field details to API validation errors.
func describe(err error) string {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		if errors.Is(err, console.ErrNoSession) {
			return "not logged in, run stagectl login"
		}
		return err.Error()
	}
	parts := make([]string, 0, len(apiErr.Fields))
	for field, msg := range apiErr.Fields {
		parts = append(parts, field+": "+msg)
	}
	return apiErr.Message + " (" + strings.Join(parts, ", ") + ")"
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
