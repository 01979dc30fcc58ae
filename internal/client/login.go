package client

import (
	"fmt"
	"io"

	"github.com/matozelenak/minidrive/internal/protocol"
)

// Prompter asks the user for input during login.
type Prompter interface {
	Password(prompt string) (string, error)
	Confirm(question string) (bool, error)
}

// Login authenticates according to the endpoint: public when it has no
// username, private otherwise. An unknown user is offered registration and,
// if accepted, registered and logged in with the same password.
func Login(c *Client, ep Endpoint, p Prompter, out io.Writer) error {
	if ep.Public() {
		if err := c.AuthPublic(); err != nil {
			return err
		}
		fmt.Fprintln(out, "running as public user")
		return nil
	}

	password, err := p.Password(fmt.Sprintf("password for %s: ", ep.Username))
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	err = c.AuthPrivate(ep.Username, password)
	if code, _ := Code(err); code == protocol.UserNotFound {
		register, perr := p.Confirm(fmt.Sprintf("user %q not found, register?", ep.Username))
		if perr != nil {
			return fmt.Errorf("reading answer: %w", perr)
		}
		if !register {
			return err
		}
		if err := c.Register(ep.Username, password); err != nil {
			return err
		}
		fmt.Fprintf(out, "user %s registered\n", ep.Username)
		err = c.AuthPrivate(ep.Username, password)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "logged in as %s\n", ep.Username)
	return nil
}
