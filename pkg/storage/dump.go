package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Sriram-PR/img-rotator/pkg/models"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

const createImagesTable = "CREATE TABLE images (id INTEGER PRIMARY KEY, url TEXT, dirname TEXT, filename TEXT, status TEXT, created_at NUMERIC DEFAULT (strftime('%s','now')), run_id TEXT);"

// Dump writes every row of store as a SQL script that recreates the images table in SQLite
func Dump(ctx context.Context, w io.Writer, store StatusStore) error {
	rows, err := store.Rows(ctx)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "BEGIN TRANSACTION;")
	io.WriteString(bw, createImagesTable+"\n")
	for _, r := range rows {
		fmt.Fprintln(bw, insertStatement(r))
	}
	fmt.Fprintln(bw, "COMMIT;")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: writing dump: %w", utils.ErrFilesystem, err)
	}
	return nil
}

func insertStatement(r models.PersistedRow) string {
	return fmt.Sprintf("INSERT INTO images VALUES(%d,%s,%s,%s,%s,%d,%s);",
		r.ID, sqlQuote(r.URL), sqlQuote(r.Dirname), sqlQuote(r.Filename), sqlQuote(r.Status), r.CreatedAt, sqlQuote(r.RunID))
}

func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
