package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/esnet-tools/espersistd/internal/persist"
	"github.com/esnet-tools/espersistd/internal/pollresult"
)

func init() {
	persist.Register("IfRefPersister", newReconcilePersister("ifref", NewIfRefBuilder()))
	persist.Register("ALUIfRefPersister", newReconcilePersister("ifref", NewALUIfRefBuilder()))
	persist.Register("InfineraIfRefPersister", newReconcilePersister("ifref", NewInfineraIfRefBuilder()))
	persist.Register("ALUSAPRefPersister", newReconcilePersister("alusap", NewALUSAPBuilder()))
	persist.Register("LSPOpStatusPersister", newReconcilePersister("lspopstatus", NewLSPBuilder()))
}

// newReconcilePersister returns a persist.Constructor that wires a PGStore
// and the given RowBuilder into a ReconcilePersister for the named table.
func newReconcilePersister(table string, builder RowBuilder) persist.Constructor {
	return func(deps persist.Deps) (persist.Persister, error) {
		store, err := NewPGStore(context.Background(), deps.DBURI)
		if err != nil {
			return nil, err
		}
		log := deps.Log
		if log == nil {
			log = slog.Default()
		}
		return NewReconcilePersister(NewReconciler(store, table, builder), log), nil
	}
}

// ReconcilePersister adapts a Reconciler to the persist.Persister
// interface: each stored result is one device's fresh snapshot, and the
// reconciler folds it against the live history rows.
type ReconcilePersister struct {
	reconciler *Reconciler
	log        *slog.Logger
}

// NewReconcilePersister builds a ReconcilePersister over an already
// configured Reconciler.
func NewReconcilePersister(reconciler *Reconciler, log *slog.Logger) *ReconcilePersister {
	return &ReconcilePersister{reconciler: reconciler, log: log}
}

func (p *ReconcilePersister) Store(ctx context.Context, result pollresult.Result) error {
	raw, err := buildRaw(result)
	if err != nil {
		return fmt.Errorf("history persister: %w", err)
	}

	adds, changes, deletes, err := p.reconciler.Reconcile(ctx, result.DeviceName, raw, time.Now().UTC())
	if err != nil {
		return err
	}

	p.log.Info("history reconciled",
		"device", result.DeviceName,
		"oidset", result.OIDSetName,
		"adds", adds, "changes", changes, "deletes", deletes)
	return nil
}

// buildRaw converts a poll result's samples into the oid-name -> index ->
// value table shape the RowBuilder variants expect. Each sample's value
// must itself be a map[string]any keyed by SNMP table index; any other
// shape is a malformed result, dropped with an error.
func buildRaw(result pollresult.Result) (map[string]map[string]any, error) {
	raw := make(map[string]map[string]any, len(result.Data))
	for _, sample := range result.Data {
		table, ok := sample.Value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("sample %s: value is not an index table", sample.Name)
		}
		raw[sample.Name] = table
	}
	return raw, nil
}
