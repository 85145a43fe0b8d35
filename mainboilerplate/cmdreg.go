package mainboilerplate

import "github.com/jessevdk/go-flags"

// AddCommandFunc registers a sub-command with a parent.
type AddCommandFunc func(*flags.Command) error

// CommandRegistry builds a tree of go-flags commands. Programs register
// sub-commands from init() of the files implementing them, and the tree is
// assembled once the parser is built.
type CommandRegistry map[string][]AddCommandFunc

// NewCommandRegistry creates a new registry.
func NewCommandRegistry() CommandRegistry {
	return make(CommandRegistry)
}

// AddCommand registers |command| under the command |parentName|. A tree of
// commands is specified by separating parent names with dots, and the root
// is the empty name:
//
//	AddCommand("", "level1", ...)
//	AddCommand("level1", "level2", ...)
func (cr CommandRegistry) AddCommand(parentName, command, shortDescription, longDescription string, data interface{}) {
	cr[parentName] = append(cr[parentName], func(cmd *flags.Command) error {
		var _, err = cmd.AddCommand(command, shortDescription, longDescription, data)
		return err
	})
}

// AddCommands adds commands registered under |rootName| to |rootCmd|. If
// |recursive|, sub-commands of those commands are added as well.
func (cr CommandRegistry) AddCommands(rootName string, rootCmd *flags.Command, recursive bool) error {
	for _, addCommandFunc := range cr[rootName] {
		if err := addCommandFunc(rootCmd); err != nil {
			return err
		}
	}
	if !recursive {
		return nil
	}
	for _, cmd := range rootCmd.Commands() {
		var cmdName = cmd.Name
		if rootName != "" {
			cmdName = rootName + "." + cmdName
		}
		if err := cr.AddCommands(cmdName, cmd, recursive); err != nil {
			return err
		}
	}
	return nil
}
