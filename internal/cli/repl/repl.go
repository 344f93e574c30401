// Package repl provides the interactive mode for lettuce-cli: a
// read-eval-print loop that dispatches each line as a command.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Eval executes one parsed command line and returns its printable
// result. The REPL itself knows nothing about routing or replies.
type Eval func(name string, args []string) (string, error)

// REPL is the read-eval-print loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	eval      Eval
	completer *Completer
	history   *History
}

// New creates a REPL dispatching lines through eval.
func New(eval Eval) *REPL {
	return &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		prompt:    "lettuce> ",
		eval:      eval,
		completer: NewCompleter(),
		history:   NewHistory(),
	}
}

// WithIO overrides input and output, used by tests.
func (r *REPL) WithIO(in io.Reader, out io.Writer) *REPL {
	r.input = in
	r.output = out
	return r
}

// Run reads lines until EOF or an exit command. Command errors are
// printed, not returned; only I/O failures end the loop early.
func (r *REPL) Run() error {
	r.history.Load()
	defer r.history.Save()

	reader := bufio.NewReader(r.input)
	for {
		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		switch strings.ToLower(line) {
		case "exit", "quit":
			return nil
		case "help":
			r.printHelp()
			continue
		}

		fields := splitLine(line)
		out, err := r.eval(fields[0], fields[1:])
		if err != nil {
			fmt.Fprintf(r.output, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(r.output, out)
	}
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.output, "Type any command followed by its arguments, e.g.:")
	fmt.Fprintln(r.output, "  SET mykey myvalue")
	fmt.Fprintln(r.output, "  GET mykey")
	fmt.Fprintln(r.output, "  CLUSTER SLOTS")
	fmt.Fprintln(r.output, "exit or quit leaves the shell.")
}

// splitLine splits on whitespace, honoring double quotes so values
// with spaces survive: SET k "two words".
func splitLine(line string) []string {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
	)
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
		case !quoted && (c == ' ' || c == '\t'):
			if current.Len() > 0 {
				fields = append(fields, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(c)
		}
	}
	if current.Len() > 0 {
		fields = append(fields, current.String())
	}
	return fields
}
