package main

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
)

// remoteBook is the on-disk list of servers the CLI knows about.
type remoteBook struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is a named server with the acting profile used against it.
type Remote struct {
	HTTPURL  string `toml:"http_url"`
	GRPCAddr string `toml:"grpc_addr,omitempty"`
	NATSURL  string `toml:"nats_url,omitempty"`
	Profile  string `toml:"profile,omitempty"`
}

var errNoRemote = errors.New("no such remote")

// remotesPath is $XDG_STATE_HOME/rendezvous/remotes.toml, falling back to
// ~/.local/state.
func remotesPath() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "rendezvous", "remotes.toml"), nil
}

func readRemotes() (*remoteBook, error) {
	path, err := remotesPath()
	if err != nil {
		return nil, err
	}
	b := &remoteBook{}
	if _, err := toml.DecodeFile(path, b); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if b.Remotes == nil {
		b.Remotes = make(map[string]Remote)
	}
	return b, nil
}

// write replaces the file atomically. The file holds profile ids so it is
// kept private.
func (b *remoteBook) write() error {
	path, err := remotesPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := toml.NewEncoder(tmp).Encode(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// editRemotes loads the book, applies fn and saves the result.
func editRemotes(fn func(*remoteBook) error) error {
	b, err := readRemotes()
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	return b.write()
}

// put adds or replaces a remote. The first remote becomes active.
func (b *remoteBook) put(name string, r Remote) error {
	u, err := url.Parse(r.HTTPURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote %q: %q is not an http(s) URL", name, r.HTTPURL)
	}
	b.Remotes[name] = r
	if len(b.Remotes) == 1 {
		b.Active = name
	}
	return nil
}

func (b *remoteBook) drop(name string) error {
	if _, ok := b.Remotes[name]; !ok {
		return fmt.Errorf("%w %q", errNoRemote, name)
	}
	delete(b.Remotes, name)
	if b.Active == name {
		b.Active = ""
	}
	return nil
}

func (b *remoteBook) activate(name string) error {
	if _, ok := b.Remotes[name]; !ok {
		return fmt.Errorf("%w %q", errNoRemote, name)
	}
	b.Active = name
	return nil
}

func (b *remoteBook) names() []string {
	return slices.Sorted(maps.Keys(b.Remotes))
}

// activeRemote is read once per process; a missing or broken file means
// no remote.
var activeRemote = sync.OnceValues(func() (Remote, bool) {
	b, err := readRemotes()
	if err != nil || b.Active == "" {
		return Remote{}, false
	}
	r, ok := b.Remotes[b.Active]
	return r, ok
})

func activeRemoteNATSURL() string {
	r, _ := activeRemote()
	return r.NATSURL
}
