package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runAsMainEnv makes the test binary behave as gopredict itself, so that "predict --jobs N"
// can start it again as its worker processes.
const runAsMainEnv = "GOPREDICT_TEST_RUN_AS_MAIN"

func TestMain(m *testing.M) {
	if os.Getenv(runAsMainEnv) == "1" {
		rootCmd := newRootCmd()
		rootCmd.SetArgs(os.Args[1:])
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigPrecedence(t *testing.T) {
	cfgPath := writeFile(t, "predict.yaml", "k: 5\nsignature: quad\nweighting: degree\n")
	t.Setenv("PREDICT_WEIGHTING", "uniform")

	cmd := newRootCmd()
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"--config", cfgPath, "--signature", "pair", "-j", "3"}))
	cfg, err := loadConfig(cmd.PersistentFlags())
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.K, "from the file")
	assert.Equal(t, "uniform", cfg.Weighting, "environment beats the file")
	assert.Equal(t, "pair", cfg.Signature, "flags beat everything")
	assert.Equal(t, 3, cfg.Jobs)

	cmd = newRootCmd()
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"--k", "9"}))
	_, err = loadConfig(cmd.PersistentFlags())
	assert.ErrorIs(t, err, gopredict.ErrBadK)
}

func TestPredictAndMerge(t *testing.T) {
	graphPath := writeFile(t, "square.el", "7 3\n9 7\n1 3\n1 9\n")

	out, err := execute(t, "7 3 9 1\n", "predict", graphPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, 6, "every pair of the sample")
	assert.Contains(t, out, "9:7 1\t")

	// merging a report with itself doubles every tally
	twice, err := execute(t, out+out, "merge", graphPath)
	require.NoError(t, err)
	assert.Equal(t, strings.Count(out, "\n"), strings.Count(twice, "\n"))
	assert.NotEqual(t, out, twice)
	again, err := execute(t, twice, "merge", graphPath)
	require.NoError(t, err)
	assert.Equal(t, twice, again, "a lone report merges to itself")

	_, err = execute(t, "7 3 9\n", "predict", graphPath)
	assert.ErrorIs(t, err, gopredict.ErrBadSample)

	_, err = execute(t, "", "merge", graphPath, "--jobs", "2")
	assert.ErrorIs(t, err, gopredict.ErrConfig)
}

func TestScore(t *testing.T) {
	path := writeFile(t, "preds.txt", "3 7 0.8 1\n1 9 0.35 1\n0 2 0.1 0\n2 4 0.4 0\n")
	out, err := execute(t, "", "score", path)
	require.NoError(t, err)
	assert.Equal(t, "positives\t2\nnegatives\t2\nAUROC\t0.750000\nAUPR\t0.791667\nNDCG\t0.907732\n", out)

	_, err = execute(t, "0.5 1\n", "score")
	assert.ErrorIs(t, err, gopredict.ErrOneClass)
}

func TestPredictWorkerProcesses(t *testing.T) {
	t.Setenv(runAsMainEnv, "1")

	// a triangulated square with a second square hanging off node 3
	graphPath := writeFile(t, "squares.el", "0 1\n1 2\n2 3\n3 0\n0 2\n3 4\n4 5\n5 6\n6 3\n")
	samples := "0 1 2 3\n1 2 3 4\n0 3 4 5\n3 4 5 6\n2 3 6 5\n0 2 3 6\n1 0 3 6\n"

	for _, args := range [][]string{
		{},
		{"--signature", "quad"},
		{"--weighting", "distinct", "--summarize"},
	} {
		single, err := execute(t, samples, append([]string{"predict", graphPath}, args...)...)
		require.NoError(t, err, args)
		require.NotEmpty(t, single)

		multi, err := execute(t, samples, append([]string{"predict", graphPath, "--jobs", "2"}, args...)...)
		require.NoError(t, err, args)
		assert.Equal(t, single, multi, args)
	}

	_, err := execute(t, "0 1 2 3\n0 1 2 5\n", "predict", graphPath, "--jobs", "2")
	assert.Error(t, err, "a worker rejecting its sample fails the run")
}
