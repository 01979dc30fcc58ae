package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/matozelenak/minidrive/internal/protocol"
)

const shellHelp = `Commands:
  LIST [path]     list a directory (default: working directory)
  CD <path>       change the working directory
  MKDIR <path>    create a directory
  RMDIR <path>    remove a directory and its contents
  REMOVE <path>   delete a file
  HELP            show this help
  EXIT            close the connection
`

// Shell is the interactive command loop of the client.
type Shell struct {
	client *Client
	out    io.Writer
	// Prompt enables the "/<uwd>> " prompt before each line.
	Prompt bool
}

// NewShell returns a shell that writes output to out.
func NewShell(c *Client, out io.Writer) *Shell {
	return &Shell{client: c, out: out}
}

// Run reads commands from in until EXIT, end of input, or a transport error.
// Server-side failures are printed and the loop continues.
func (sh *Shell) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if sh.Prompt {
			fmt.Fprintf(sh.out, "/%s> ", sh.client.WorkingDir())
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		quit, err := sh.Exec(scanner.Text())
		if err != nil {
			var perr *protocol.Error
			if !errors.As(err, &perr) {
				return err
			}
			fmt.Fprintf(sh.out, "ERROR %d %s: %s\n", perr.Code, perr.Code, perr.Message)
		}
		if quit {
			return nil
		}
	}
}

// Exec runs one command line. It reports quit=true for EXIT.
func (sh *Shell) Exec(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd := strings.ToUpper(fields[0])
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	needPath := func() error {
		if arg == "" {
			return fmt.Errorf("%s requires a path", cmd)
		}
		return nil
	}

	switch cmd {
	case "EXIT", "QUIT":
		return true, nil
	case "HELP":
		fmt.Fprint(sh.out, shellHelp)
		return false, nil
	case protocol.CmdList:
		entries, err := sh.client.List(arg)
		if err != nil {
			return false, err
		}
		sh.printEntries(entries)
	case protocol.CmdCD:
		if err := needPath(); err != nil {
			return false, sh.usage(err)
		}
		if _, err := sh.client.CD(arg); err != nil {
			return false, err
		}
	case protocol.CmdMkdir, protocol.CmdRmdir, protocol.CmdRemove:
		if err := needPath(); err != nil {
			return false, sh.usage(err)
		}
		var opErr error
		switch cmd {
		case protocol.CmdMkdir:
			opErr = sh.client.Mkdir(arg)
		case protocol.CmdRmdir:
			opErr = sh.client.Rmdir(arg)
		default:
			opErr = sh.client.Remove(arg)
		}
		if opErr != nil {
			return false, opErr
		}
		fmt.Fprintln(sh.out, "OK")
	default:
		fmt.Fprintf(sh.out, "unknown command %q (type HELP)\n", fields[0])
	}
	return false, nil
}

func (sh *Shell) usage(err error) error {
	fmt.Fprintln(sh.out, err)
	return nil
}

func (sh *Shell) printEntries(entries []protocol.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(sh.out, "(empty)")
		return
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		name := e.Name
		if e.Type == protocol.EntryDirectory {
			name += "/"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", e.Type, name, e.Size)
	}
	tw.Flush()
}
