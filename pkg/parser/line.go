package parser

import (
	"strings"
)

// Command is a single line typed into the command interface
type Command struct {
	Name string
	Args []string
}

// ParseCommandLine splits a line such as "/swap 0xabc... 0.01 1000000000"
// into its command name and arguments. The leading slash and any
// "@botname" suffix on the command are optional.
func ParseCommandLine(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrUnknownCommand
	}

	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(name)
	if name == "" {
		return nil, ErrUnknownCommand
	}

	return &Command{Name: name, Args: fields[1:]}, nil
}

// SplitSwapArgs separates the optional trailing mode argument from the
// three positional swap arguments.
func SplitSwapArgs(args []string) (swapArgs []string, mode string) {
	if len(args) == 4 {
		return args[:3], args[3]
	}
	return args, ""
}
