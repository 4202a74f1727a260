package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a keystore passphrase from an environment variable
// or by prompting on the terminal. The first result is cached.
type Source struct {
	envVar string
	label  string

	lookup func(string) (string, bool)
	prompt func() ([]byte, error)
	out    io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource builds a source that checks envVar before prompting for the
// passphrase of the named keystore.
func NewSource(envVar, label string) *Source {
	if strings.TrimSpace(label) == "" {
		label = "keystore"
	}
	return &Source{
		envVar: strings.TrimSpace(envVar),
		label:  label,
		lookup: os.LookupEnv,
		prompt: readTerminal,
		out:    os.Stderr,
	}
}

// WithPrompt replaces the terminal prompt, mostly for tests.
func (s *Source) WithPrompt(prompt func() ([]byte, error), out io.Writer) *Source {
	s.prompt = prompt
	if out != nil {
		s.out = out
	}
	return s
}

// WithLookup replaces the environment lookup.
func (s *Source) WithLookup(lookup func(string) (string, bool)) *Source {
	s.lookup = lookup
	return s
}

// Get returns the cached passphrase or resolves it on first use. An env value
// is used verbatim; blank passphrases are rejected either way.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" && s.lookup != nil {
			if value, ok := s.lookup(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}
		if s.prompt == nil {
			s.err = errors.New("no passphrase source available")
			return
		}

		fmt.Fprintf(s.out, "Enter %s passphrase: ", s.label)
		raw, err := s.prompt()
		fmt.Fprintln(s.out)
		if err != nil {
			if s.envVar != "" {
				s.err = fmt.Errorf("%s passphrase required; set %s or run interactively: %w", s.label, s.envVar, err)
			} else {
				s.err = fmt.Errorf("read %s passphrase: %w", s.label, err)
			}
			return
		}
		if strings.TrimSpace(string(raw)) == "" {
			s.err = fmt.Errorf("%s passphrase cannot be empty", s.label)
			return
		}
		s.value = string(raw)
	})
	return s.value, s.err
}

func readTerminal() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("no terminal available")
	}
	return term.ReadPassword(fd)
}
