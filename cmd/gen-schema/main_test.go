// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursebook/coursebook/pkg/errutil"
)

func TestRun_WritesToGivenPath(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "config.schema.json")
	var stdout bytes.Buffer

	require.NoError(t, run([]string{out}, &stdout))
	assert.Contains(t, stdout.String(), "Generated "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "properties")
}

func TestRun_Stdout(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-"}, &stdout))
	assert.True(t, json.Valid(stdout.Bytes()))
}

func TestRun_TooManyArgs(t *testing.T) {
	err := run([]string{"a", "b"}, &bytes.Buffer{})
	errutil.AssertErrorCode(t, err, "USAGE")
}
