package chain

import (
	"errors"

	"github.com/lumahq/chainmesh/core"
)

// Source identifies what to execute: a registry chain by name, or an inline
// ad-hoc step list. Resolution happens exactly once at the top of Execute so
// the executor never branches on "is this named" again.
type Source struct {
	name  string
	steps []core.StepDefinition
}

// NamedSource executes the registry chain with the given name.
func NamedSource(name string) Source { return Source{name: name} }

// InlineSource executes an ad-hoc ordered step list outside the registry.
func InlineSource(steps []core.StepDefinition) Source { return Source{steps: steps} }

// resolve produces the concrete step list. For named sources the registry is
// consulted (yielding core.ErrUnknownChain for unknown names) and the chain's
// output template is carried along; inline sources have no chain name and no
// output template.
func (s Source) resolve(registry core.Registry) (chainName string, steps []core.StepDefinition, outputTemplate string, err error) {
	if s.name != "" {
		if registry == nil {
			return "", nil, "", errors.New("named source requires a registry")
		}
		def, err := registry.Chain(s.name)
		if err != nil {
			return "", nil, "", err
		}
		return def.Name, def.Steps, def.OutputTemplate, nil
	}
	return "", s.steps, "", nil
}
