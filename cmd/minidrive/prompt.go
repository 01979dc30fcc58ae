package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalPrompter implements client.Prompter on stdin. Non-interactive
// input is read line by line from the same buffer the shell uses afterwards.
type terminalPrompter struct {
	in          *bufio.Reader
	interactive bool
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err == io.EOF && line == "" {
		return "", fmt.Errorf("interrupted")
	}
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Password reads a password without echoing when stdin is a terminal.
func (p *terminalPrompter) Password(label string) (string, error) {
	if !p.interactive {
		return p.readLine()
	}
	fmt.Print(label)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}

// Confirm asks a yes/no question.
func (p *terminalPrompter) Confirm(question string) (bool, error) {
	if p.interactive {
		fmt.Printf("%s [y/N]: ", question)
	}
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
