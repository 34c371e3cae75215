package main

import (
	"bufio"
	"fmt"
	"strings"

	"rcptr_go/pkg/parser"
)

func runREPL(opts *Options) error {
	out := opts.out
	fmt.Fprintln(out, "rcptr REPL - shared ownership scripts")
	fmt.Fprintln(out, "Type 'help' for commands, 'quit' to exit")
	fmt.Fprintln(out)

	runner := opts.newRunner("repl")
	// Bindings left at exit are released like at the end of a script.
	defer func() {
		opts.printReport("repl", runner.Close())
	}()

	scanner := bufio.NewScanner(opts.in)
	for {
		fmt.Fprint(out, "rcptr> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		switch line {
		case "quit", "exit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "bindings":
			names := runner.Bindings()
			if len(names) == 0 {
				fmt.Fprintln(out, "No bindings")
			} else {
				fmt.Fprintf(out, "Bindings: %s\n", strings.Join(names, " "))
			}
			continue
		case "clear":
			opts.printReport("repl", runner.Close())
			continue
		case "help":
			printREPLHelp(opts)
			continue
		}

		if !strings.HasPrefix(line, "(") {
			fmt.Fprintf(out, "Unknown command: %s (use 'help' for commands)\n", line)
			continue
		}

		exprs, err := parser.ParseAllString(line)
		if err != nil {
			fmt.Fprintf(out, "Parse error: %v\n", err)
			continue
		}
		for _, expr := range exprs {
			if err := runner.Exec(expr); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				break
			}
		}
	}
	return scanner.Err()
}

func printREPLHelp(opts *Options) {
	out := opts.out
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  quit      - exit the REPL, releasing all bindings")
	fmt.Fprintln(out, "  bindings  - list bound handle names")
	fmt.Fprintln(out, "  clear     - release all bindings and print a summary")
	fmt.Fprintln(out, "  help      - show this help")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Statements:")
	fmt.Fprintln(out, "  (make h N) (new h N) (null h)       - create shared handles")
	fmt.Fprintln(out, "  (copy d s) (move d s)               - clone or move a handle")
	fmt.Fprintln(out, "  (assign d s) (move-assign d s)      - assign into an existing handle")
	fmt.Fprintln(out, "  (alias d s) (upcast d s)            - views of the same owner")
	fmt.Fprintln(out, "  (weak w s) (lock d w) (promote d w) - weak handles")
	fmt.Fprintln(out, "  (self d s) (self-weak w s)          - handles from the object itself")
	fmt.Fprintln(out, "  (reset h) (reset-to h N) (swap a b)")
	fmt.Fprintln(out, "  (unique u N) (unique-reset u [N]) (unique-release u)")
	fmt.Fprintln(out, "  (expect-count h N) (expect-expired w BOOL) (expect-destroyed N BOOL)")
	fmt.Fprintln(out, "  (expect-null h BOOL) (expect-equal a b BOOL) (print h)")
}
