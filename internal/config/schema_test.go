// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursebook/coursebook/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, SchemaID, schema["$id"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"http", "metrics", "database", "secret_key", "session", "hasher", "log"} {
		assert.Contains(t, props, key)
	}
	assert.NotContains(t, schema, "required", "every key is optional in a file")
}

func TestValidateYAML(t *testing.T) {
	assert.NoError(t, ValidateYAML([]byte("")), "empty document is allowed")
	assert.NoError(t, ValidateYAML([]byte("database:\n  url: postgres://h/db\n  connect_retries: 3\n")))

	err := ValidateYAML([]byte("http: [unclosed"))
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID_YAML")

	err = ValidateYAML([]byte("hasher:\n  threads: 0\n"))
	errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_VIOLATION")
}
