// Package idgen mints entity ids: a kind prefix and a nanoid suffix.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	size     = 10
)

// Kind is the prefix that tells one entity's ids from another's.
type Kind string

const (
	Profile Kind = "pf-"
	Event   Kind = "ev-"
)

// New returns a fresh id of kind k, e.g. "ev-3fQ9aZk1Lm".
func (k Kind) New() (string, error) {
	suffix, err := nanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("new %sid: %w", k, err)
	}
	return string(k) + suffix, nil
}
