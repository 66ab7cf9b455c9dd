// Package idgen produces namespaced, collision-resistant identifiers for
// database entities, e.g. "ssn_9f86d081884c7d65".
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// Kind is the entity namespace prefixed onto generated ids.
type Kind string

const (
	Session      Kind = "ssn"
	Agent        Kind = "agt"
	SessionGroup Kind = "sg"
	Topic        Kind = "tpc"
)

// New returns a fresh identifier in the given namespace.
func New(kind Kind) string {
	entropy := strings.ReplaceAll(uuid.NewString(), "-", "")
	return string(kind) + "_" + entropy[:16]
}
