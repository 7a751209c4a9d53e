// Package persist defines the Persister contract and an explicit registry
// of persister constructors, replacing the reference implementation's
// eval()-based dynamic dispatch on a configured class name (spec.md §9
// "Dynamic dispatch by class name").
package persist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/esnet-tools/espersistd/internal/config"
	"github.com/esnet-tools/espersistd/internal/oidtype"
	"github.com/esnet-tools/espersistd/internal/pollresult"
)

// Persister commits one poll result to its final resting place: a TSDB, a
// relational history table, or a streaming log.
type Persister interface {
	Store(ctx context.Context, result pollresult.Result) error
}

// Constructor builds a Persister from a worker's resolved dependencies.
// Each field is optional; a given persister class only uses the ones it
// needs (e.g. the streaming persister ignores DB and TSDB entirely).
type Constructor func(Deps) (Persister, error)

// Deps bundles every external collaborator a persister constructor might
// need, resolved once by the worker at process start.
type Deps struct {
	TSDBRoot        string
	StreamingLogDir string
	DBURI           string
	QueueName       string
	WorkerOrdinal   int
	OIDSets         map[string]config.OIDSetConfig
	OIDTypes        *oidtype.Table
	Log             *slog.Logger
}

var registry = map[string]Constructor{}

// Register adds a named persister constructor to the registry. Intended
// to be called from each persister package's init().
func Register(className string, ctor Constructor) {
	registry[className] = ctor
}

// Resolve builds the persister registered under className, or returns an
// error for an unknown name instead of evaluating arbitrary code. The
// check happens when a worker builds its persister; config validation
// does not look at class names.
func Resolve(className string, deps Deps) (Persister, error) {
	ctor, ok := registry[className]
	if !ok {
		return nil, fmt.Errorf("persist: unknown persister class %q", className)
	}
	p, err := ctor(deps)
	if err != nil {
		return nil, fmt.Errorf("persist: construct %q: %w", className, err)
	}
	return p, nil
}

// Registered returns the known class names, in no particular order.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
