//go:build !linux

package commands

type Argument string

const (
	SocketArgument  Argument = "--socket-path"
	AddressArgument Argument = "--address"
)

func (a Argument) String() string {
	return string(a)
}
