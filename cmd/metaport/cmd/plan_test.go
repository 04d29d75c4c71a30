package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a minimal valid config file and points the global
// config flag at it for the duration of the test.
func writeTestConfig(t *testing.T, extra string) {
	t.Helper()

	writeRawConfig(t, `source:
  server_url: http://source.example.com:8585
  jwt_token: src-token
target:
  server_url: http://target.example.com:8585
  jwt_token: tgt-token
`+extra)
}

// writeRawConfig writes exactly the given config content and points the
// global config flag at it.
func writeRawConfig(t *testing.T, content string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "metaport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	originalCfgFile := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = originalCfgFile })
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	setOutputWriter(&buf)
	t.Cleanup(resetOutputWriter)
	return &buf
}

func TestPlanCommandStructure(t *testing.T) {
	assert.Equal(t, "plan", planCmd.Use)
	assert.NotEmpty(t, planCmd.Short)
	assert.NotNil(t, planCmd.RunE)
}

func TestRunPlan_AllKinds(t *testing.T) {
	writeTestConfig(t, "")
	buf := captureOutput(t)

	require.NoError(t, runPlan(planCmd, nil))
	out := buf.String()

	assert.Contains(t, out, "Processing order:")
	// Referenced kinds come before the kinds that need them.
	assert.Less(t, strings.Index(out, " domain\n"), strings.Index(out, "data_product"))
	assert.Contains(t, out, "data_product (needs domain)")
}

func TestRunPlan_RestrictedEntities(t *testing.T) {
	writeTestConfig(t, `entities:
  team: true
  user: true
`)
	buf := captureOutput(t)

	require.NoError(t, runPlan(planCmd, nil))
	out := buf.String()

	assert.Contains(t, out, "team")
	assert.Contains(t, out, "user (needs team)")
	assert.NotContains(t, out, "data_product")
}

func TestRunPlan_MissingConfig(t *testing.T) {
	originalCfgFile := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	defer func() { cfgFile = originalCfgFile }()

	require.Error(t, runPlan(planCmd, nil))
}
