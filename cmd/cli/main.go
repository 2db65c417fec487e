// Command ditrix is a CLI client for the DITrix attendance API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ---- token store ----

type tokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email,omitempty"`
}

var errLoginRequired = errors.New("no valid token (login required)")

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "ditrix")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ditrix")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (tokenFile, error) {
	var tf tokenFile
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tf, errLoginRequired
		}
		return tf, err
	}
	if err := json.Unmarshal(b, &tf); err != nil {
		return tf, err
	}
	if tf.Token == "" || time.Now().After(tf.ExpiresAt) {
		return tf, errLoginRequired
	}
	return tf, nil
}

func clearToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `ditrix CLI
Usage:
  ditrix [-addr URL] [-timeout 30s] <cmd> [args]

Commands:
  version
  health
  grpc-health -addr HOST:PORT [-service name] [-cacert file | -insecure | -plaintext]
  signup      -email <e> -password <p> [-name <n>]
  verify      -email <e> -code <c>
  resend      -email <e>
  forgot      -email <e>
  reset       -email <e> -code <c> -password <p>
  login       -email <e> -password <p>          (saves token)
  logout
  refresh
  session
  profile     [-name <n>] [-avatar file]
  captures
  capture     -id <id>
  join        -code <share code>
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

type command func(ctx context.Context, c *client, args []string, out io.Writer) error

var commands = map[string]command{
	"health":   cmdHealth,
	"signup":   cmdSignup,
	"verify":   cmdVerify,
	"resend":   cmdResend,
	"forgot":   cmdForgot,
	"reset":    cmdReset,
	"login":    cmdLogin,
	"logout":   cmdLogout,
	"refresh":  cmdRefresh,
	"session":  cmdSession,
	"profile":  cmdProfile,
	"captures": cmdCaptures,
	"capture":  cmdCapture,
	"join":     cmdJoin,
}

// main dispatches subcommands against the HTTP API.
func main() {
	addr := flag.String("addr", envOr("DITRIX_ADDR", "http://localhost:3000"), "API base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	name, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch name {
	case "version":
		fmt.Printf("ditrix %s (%s)\n", version, buildDate)
		return
	case "grpc-health":
		if err := cmdGRPCHealth(ctx, args, os.Stdout); err != nil {
			fail(err)
		}
		return
	}

	cmd, ok := commands[name]
	if !ok {
		usage()
	}
	if err := cmd(ctx, newClient(*addr), args, os.Stdout); err != nil {
		fail(err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: status=%d msg=%s\n", ae.Status, ae.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
