package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/img-rotator/pkg/models"
	"github.com/Sriram-PR/img-rotator/pkg/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "img-rotator "+version+"\n", out)
}

func TestValidate_OK(t *testing.T) {
	dir := t.TempDir()
	sites := writeFile(t, dir, "sites.txt", "# comment\nhttp://a.example\n\nhttp://b.example\n")
	cfgPath := writeFile(t, dir, "config.yaml", "quota: 7\nsites_file: "+sites+"\n")

	out, err := execute(t, "validate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK: quota 7, 2 sites")
	assert.Contains(t, out, "store none")
}

func TestValidate_SitesOverride(t *testing.T) {
	dir := t.TempDir()
	sites := writeFile(t, dir, "other.txt", "http://a.example\n")
	cfgPath := writeFile(t, dir, "config.yaml", "sites_file: /nonexistent/sites.txt\n")

	out, err := execute(t, "validate", "--config", cfgPath, "--sites", sites)
	require.NoError(t, err)
	assert.Contains(t, out, "1 sites in "+sites)
}

func TestValidate_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		config  string
		wantOut string
	}{
		{"same output dirs", "original_dir: x\nrotated_dir: x\n", "Configuration invalid"},
		{"bad driver", "store:\n  driver: mysql\n", "Configuration invalid"},
		{"missing site list", "sites_file: " + filepath.Join(dir, "missing.txt") + "\n", "Site list invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := writeFile(t, t.TempDir(), "config.yaml", tt.config)
			out, err := execute(t, "validate", "--config", cfgPath)
			require.Error(t, err)
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestValidate_ExplicitConfigMustExist(t *testing.T) {
	_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestRun_MissingSiteListFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", strings.Join([]string{
		"log_dir: " + filepath.Join(dir, "log"),
		"original_dir: " + filepath.Join(dir, "o"),
		"rotated_dir: " + filepath.Join(dir, "r"),
	}, "\n")+"\n")

	_, err := execute(t, "run", "--config", cfgPath, "--sites", filepath.Join(dir, "missing.txt"), "--quota", "3")
	require.Error(t, err)

	logs, globErr := filepath.Glob(filepath.Join(dir, "log", "*.log"))
	require.NoError(t, globErr)
	assert.Len(t, logs, 1, "run log file created")
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")
	cfgPath := writeFile(t, dir, "config.yaml", "store:\n  driver: sqlite\n  path: "+dbPath+"\n")

	l := logrus.New()
	l.SetOutput(io.Discard)
	store, err := storage.NewSQLiteStore(dbPath, "run-1", logrus.NewEntry(l))
	require.NoError(t, err)
	_, err = store.Insert(context.Background(), &models.ImageRecord{
		URL:       "http://a.example/x.png",
		Dirname:   "a.example",
		Filename:  "a.example--x.png",
		Status:    models.Processed,
		CreatedAt: time.Unix(1700000000, 0),
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := execute(t, "dump", "--config", cfgPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN TRANSACTION;\nCREATE TABLE images"))
	assert.Contains(t, out, "INSERT INTO images VALUES(1,'http://a.example/x.png','a.example','a.example--x.png','processed',1700000000,'run-1');")
	assert.True(t, strings.HasSuffix(out, "COMMIT;\n"))

	outFile := filepath.Join(dir, "dump.sql")
	_, err = execute(t, "dump", "--config", cfgPath, "-o", outFile)
	require.NoError(t, err)
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))
}

func TestDump_NoStore(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", "quota: 1\n")
	_, err := execute(t, "dump", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no durable store")
}
