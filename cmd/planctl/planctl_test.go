package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
id: short-stay
tenantId: tenant-a
name: Short stay
version: 1
nodes:
  - id: start
    type: start
    label: Admit
  - id: review
    type: stage
    label: Review
    mandatory: true
  - id: end
    type: end
    label: Home
edges:
  - id: e1
    source: start
    target: review
  - id: e2
    source: review
    target: end
    condition: cleared
startNodeId: start
endNodeIds: [end]
`

const brokenDoc = `
id: broken
tenantId: tenant-a
name: Broken
version: 1
nodes:
  - id: start
    type: start
    label: Admit
edges:
  - id: e1
    source: start
    target: ghost
startNodeId: start
endNodeIds: [end]
`

func writeDoc(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "def.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "", "validate", writeDoc(t, validDoc))
	require.NoError(t, err)
	assert.Contains(t, out, "short-stay is valid")

	out, err = execute(t, "", "validate", writeDoc(t, brokenDoc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 violation(s)")
	assert.Contains(t, out, "unknown_end_node")
	assert.Contains(t, out, "unknown_edge_target")
}

func TestValidateReadsStdin(t *testing.T) {
	out, err := execute(t, validDoc, "validate", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestValidateRejectsUnknownKeys(t *testing.T) {
	_, err := execute(t, "", "validate", writeDoc(t, validDoc+"owner: nobody\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode definition yaml")
}

func TestGraphCommand(t *testing.T) {
	path := writeDoc(t, validDoc)

	out, err := execute(t, "", "graph", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `review -- "cleared" --> end`)
	assert.NotContains(t, out, "classDef")

	out, err = execute(t, "", "graph", path, "--current", "review", "--visited", "start,review")
	require.NoError(t, err)
	assert.Contains(t, out, "class start visited;")
	assert.Contains(t, out, "class review current;")
	assert.NotContains(t, out, "class review visited;")
}

func TestFmtCommand(t *testing.T) {
	out, err := execute(t, "", "fmt", writeDoc(t, validDoc))
	require.NoError(t, err)
	assert.Contains(t, out, "startNodeId: start")
	assert.Contains(t, out, "status: draft")

	again, err := execute(t, out, "fmt", "-")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestMissingFile(t *testing.T) {
	_, err := execute(t, "", "graph", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open definition")
}
