//go:build !linux

package commands

import (
	"strings"
	"time"

	"github.com/ugorji/go/codec"
)

// DefaultReplyTimeout bounds how long ExecuteWith waits for a reply when
// the caller supplies no timeout.
const DefaultReplyTimeout = 10 * time.Second

// ExecuteFunc submits a command line to the shim and returns the channel
// its decoded reply will arrive on.
type ExecuteFunc func(params []string) (chan Response, error)

type ArgumentMap = map[Argument]string
type NoResult = struct{}

// T is the return value type of the command. A NoResult command only
// reports errors.
type Command[T any] struct {
	cmd    string
	argmap ArgumentMap
}

// Response is a decoded reply from the shim.
type Response struct {
	Status string `json:"status"`

	RequestId int64        `json:"request_id,omitempty"`
	Error     CommandError `json:"error"`
	Data      codec.Raw    `json:"data"`
}

// CommandError is a structured error reported by the shim.
type CommandError struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

func (c CommandError) Error() string {
	sb := strings.Builder{}

	sb.WriteString(c.Name)
	sb.WriteString(": ")
	if c.Description == "" {
		sb.WriteString("No information is provided for this error")
	} else {
		sb.WriteString(c.Description)
	}

	if len(c.Metadata) > 0 {
		sb.WriteString(" (")
		count := 0
		for _, v := range c.Metadata {
			if count > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v)
			count++
		}
		sb.WriteString(")")
	}

	return sb.String()
}

func (c *Command[T]) String() string {
	sb := strings.Builder{}
	sb.Grow(len(c.cmd) + (len(c.argmap) * 2))

	sb.WriteString(c.cmd)
	for param, value := range c.argmap {
		sb.WriteString(" ")
		sb.WriteString(string(param))
		sb.WriteString(" ")
		sb.WriteString(value)
	}

	return sb.String()
}

// Slice returns the command line as argument tokens.
func (c *Command[T]) Slice() []string {
	return strings.Split(c.String(), " ")
}

// WithArgument appends a single argument to the command.
func (c *Command[T]) WithArgument(arg Argument, value string) *Command[T] {
	if c.argmap == nil {
		c.argmap = make(ArgumentMap)
	}

	c.argmap[arg] = value

	return c
}
