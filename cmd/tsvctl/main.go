// Package main implements tsvctl, a command-line client for tsvd.
//
// Usage:
//
//	tsvctl [-addr URL] COMMAND ARGS...
//
// Commands:
//
//	get ARRAY KEY              print one value
//	set ARRAY KEY VALUE        store a value
//	unset ARRAY [KEY]          remove a key, or the whole array
//	incr ARRAY KEY [DELTA]     add DELTA (default 1) and print the result
//	append ARRAY KEY STR...    append strings and print the result
//	lappend ARRAY KEY ELEM...  append list elements and print the length
//	array ARRAY [PATTERN]      print key/value pairs
//	names [PATTERN]            print array names
//	bind ARRAY STORE           attach ARRAY to STORE ("type:address")
//	unbind ARRAY               detach ARRAY from its store
//	bindings                   print bound arrays
//	job OP ARRAY [KEY [VALUE]] run a mutation on the job pool and print its result
//	info                       print daemon statistics as JSON
//
// The daemon address defaults to $TSVD_ADDR, then http://127.0.0.1:8090.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dreamware/threadkit/internal/api"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

var errUsage = errors.New("usage")

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tsvctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", getenv("TSVD_ADDR", "http://127.0.0.1:8090"), "tsvd base URL")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "tsvctl: missing command")
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	c := &client{base: strings.TrimRight(*addr, "/"), out: stdout}
	err := c.exec(ctx, fs.Arg(0), fs.Args()[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "tsvctl: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "tsvctl: %v\n", err)
		return 1
	}
}

type client struct {
	base string
	out  io.Writer
}

func (c *client) url(parts ...string) string {
	var b strings.Builder
	b.WriteString(c.base)
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

func nargs(args []string, min, max int, usage string) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return fmt.Errorf("%w: %s", errUsage, usage)
	}
	return nil
}

func (c *client) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "get":
		if err := nargs(args, 2, 2, "get ARRAY KEY"); err != nil {
			return err
		}
		var v api.ValueResponse
		if err := api.GetJSON(ctx, c.url("tsv", args[0], args[1]), &v); err != nil {
			return err
		}
		fmt.Fprintln(c.out, v.Value)

	case "set":
		if err := nargs(args, 3, 3, "set ARRAY KEY VALUE"); err != nil {
			return err
		}
		return api.PutJSON(ctx, c.url("tsv", args[0], args[1]), api.SetRequest{Value: args[2]}, nil)

	case "unset":
		if err := nargs(args, 1, 2, "unset ARRAY [KEY]"); err != nil {
			return err
		}
		return api.Delete(ctx, c.url(append([]string{"tsv"}, args...)...))

	case "incr":
		if err := nargs(args, 2, 3, "incr ARRAY KEY [DELTA]"); err != nil {
			return err
		}
		req := api.IncrRequest{Delta: 1}
		if len(args) == 3 {
			d, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: DELTA must be an integer", errUsage)
			}
			req.Delta = d
		}
		return c.printValue(ctx, c.url("tsv", args[0], args[1], "incr"), req)

	case "append", "lappend":
		if err := nargs(args, 3, -1, cmd+" ARRAY KEY VALUE..."); err != nil {
			return err
		}
		return c.printValue(ctx, c.url("tsv", args[0], args[1], cmd), api.AppendRequest{Values: args[2:]})

	case "array":
		if err := nargs(args, 1, 2, "array ARRAY [PATTERN]"); err != nil {
			return err
		}
		u := c.url("tsv", args[0])
		if len(args) == 2 {
			u += "?pattern=" + url.QueryEscape(args[1])
		}
		var resp api.ArrayResponse
		if err := api.GetJSON(ctx, u, &resp); err != nil {
			return err
		}
		for _, e := range resp.Entries {
			fmt.Fprintf(c.out, "%s\t%s\n", e.Key, e.Value)
		}

	case "names":
		if err := nargs(args, 0, 1, "names [PATTERN]"); err != nil {
			return err
		}
		u := c.url("tsv")
		if len(args) == 1 {
			u += "?pattern=" + url.QueryEscape(args[0])
		}
		var resp api.NamesResponse
		if err := api.GetJSON(ctx, u, &resp); err != nil {
			return err
		}
		for _, n := range resp.Names {
			fmt.Fprintln(c.out, n)
		}

	case "bind":
		if err := nargs(args, 2, 2, "bind ARRAY STORE"); err != nil {
			return err
		}
		return api.PostJSON(ctx, c.url("bind", args[0]), api.BindRequest{Store: args[1]}, nil)

	case "unbind":
		if err := nargs(args, 1, 1, "unbind ARRAY"); err != nil {
			return err
		}
		return api.Delete(ctx, c.url("bind", args[0]))

	case "bindings":
		var resp api.BindingsResponse
		if err := api.GetJSON(ctx, c.url("bind"), &resp); err != nil {
			return err
		}
		for _, b := range resp.Bindings {
			fmt.Fprintf(c.out, "%s\t%s\n", b.Array, b.Store)
		}

	case "job":
		if err := nargs(args, 2, 4, "job OP ARRAY [KEY [VALUE]]"); err != nil {
			return err
		}
		return c.job(ctx, args)

	case "info":
		var info api.Info
		if err := api.GetJSON(ctx, c.url("info"), &info); err != nil {
			return err
		}
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	return nil
}

func (c *client) printValue(ctx context.Context, u string, body any) error {
	var v api.ValueResponse
	if err := api.PostJSON(ctx, u, body, &v); err != nil {
		return err
	}
	fmt.Fprintln(c.out, v.Value)
	return nil
}

func (c *client) job(ctx context.Context, args []string) error {
	req := api.JobRequest{Op: args[0], Array: args[1]}
	if len(args) > 2 {
		req.Key = args[2]
	}
	if len(args) > 3 {
		req.Value = args[3]
		if req.Op == api.OpIncr {
			d, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: DELTA must be an integer", errUsage)
			}
			req.Delta, req.Value = d, ""
		}
	}
	var queued api.JobResponse
	if err := api.PostJSON(ctx, c.url("jobs"), req, &queued); err != nil {
		return err
	}
	var res api.JobResult
	if err := api.GetJSON(ctx, c.url("jobs", strconv.FormatUint(queued.ID, 10))+"?wait=1", &res); err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("job %d failed: %s", res.ID, res.Value)
	}
	fmt.Fprintln(c.out, res.Value)
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
