package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rseng/rseng-activity/internal/store"
)

// outputRoot returns the --outdir flag when set, else output.dir.
func outputRoot(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("outdir"); dir != "" {
		return dir
	}
	return cfg.Output.Dir
}

// ledgerPath returns the configured ledger file, defaulting to ledger.db in
// the output root.
func ledgerPath(outRoot string) string {
	if cfg.Store.LedgerPath != "" {
		return cfg.Store.LedgerPath
	}
	return filepath.Join(outRoot, "ledger.db")
}

func initLedger(ctx context.Context, outRoot string) (*store.SQLiteStore, error) {
	path := ledgerPath(outRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "create ledger directory")
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
