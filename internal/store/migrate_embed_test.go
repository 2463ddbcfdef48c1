// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		assert.True(t, pattern.MatchString(name), "file %s should match NNNNNN_name.(up|down).sql", name)
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			ups[base] = true
		} else if base, ok := strings.CutSuffix(name, ".down.sql"); ok {
			downs[base] = true
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}

func TestMigrationsFS_SchemaConstraints(t *testing.T) {
	users, err := migrationsFS.ReadFile("migrations/000001_users.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(users), "users_email_lower_key ON users (LOWER(email))")
	assert.Contains(t, string(users), "CHECK (role IN ('student', 'tutor'))")

	courses, err := migrationsFS.ReadFile("migrations/000003_courses.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(courses), "enrollments_user_course_key UNIQUE (user_id, course_id)")
}
