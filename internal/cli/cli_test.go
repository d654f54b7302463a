package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const script = `
;; two plinths far from the origin
(def far (vec3 1000 2000 3000))
(direct-shape (translate (mesh-box (vec3 0 0 0) (vec3 2 2 2)) far) :category :Mass :name "plinth")
(direct-shapes (list (mesh-box (vec3 0 0 0) (vec3 1 1 1))
                     (mesh-box (vec3 9 0 0) (vec3 10 1 1)))
               :name "pair")
(direct-shape (rectangle 4 2) :name "pad")
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfg := writeFile(t, dir, "directshape.yaml", "units:\n  source: ft\n  host: ft\nexport:\n  dir: "+dir+"\n")

	var out, errOut bytes.Buffer
	cmd := RootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--config", cfg, "--log-level", "disabled"))
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCmd(t *testing.T) {
	t.Run("Should create a shape for every request", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "scene.lisp", script)
		out, err := execute(t, "run", path)
		require.NoError(t, err)

		assert.Contains(t, out, "CALLSITE")
		assert.Contains(t, out, "plinth")
		assert.Contains(t, out, "Mass")
		assert.Contains(t, out, "pair")
		assert.Contains(t, out, "pad")
		assert.Contains(t, out, "Generic Models")
	})

	t.Run("Should report script errors", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "bad.lisp", "(box 1 2)")
		_, err := execute(t, "run", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "box requires exactly 3 arguments")
	})

	t.Run("Should fail on a missing script", func(t *testing.T) {
		_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.lisp"))
		assert.Error(t, err)
	})

	t.Run("Should fail on an unknown category", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "cat.lisp", `(direct-shape (mesh-box (vec3 0 0 0) (vec3 1 1 1)) :category "Spaceships")`)
		_, err := execute(t, "run", path)
		assert.Error(t, err)
	})

	t.Run("Should require a script argument", func(t *testing.T) {
		_, err := execute(t, "run")
		assert.Error(t, err)
	})
}

func TestNormalizeCmd(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scene.lisp", script)
	out, err := execute(t, "normalize", path)
	require.NoError(t, err)

	assert.Contains(t, out, "RESTORATION (ft)")
	assert.Contains(t, out, "centroid")
	assert.Contains(t, out, "bounding-box")
	assert.Contains(t, out, "pass-through")
	assert.Contains(t, out, "(5, 0.5, 0.5)")
}
