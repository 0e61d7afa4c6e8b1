package ports

import "github.com/sglre6355/covenbot/internal/modules/relay/domain"

// CommandResolver looks up command descriptors by exact name.
type CommandResolver interface {
	Resolve(name string) (domain.CommandDescriptor, bool)
}
