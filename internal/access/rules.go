// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package access

import "github.com/coursebook/coursebook/internal/auth"

// Action names checked by the course service.
const (
	ActionCourseCreate = "course:create"
	ActionCourseEdit   = "course:edit"
	ActionCourseEnroll = "course:enroll"
)

// Rule maps an action pattern to the role it requires.
type Rule struct {
	Pattern  string
	Required auth.Role
}

var tutorRules = []Rule{
	{Pattern: ActionCourseCreate, Required: auth.RoleTutor},
	{Pattern: ActionCourseEdit + ":*", Required: auth.RoleTutor},
}

var studentRules = []Rule{
	{Pattern: ActionCourseEnroll + ":*", Required: auth.RoleStudent},
}

// DefaultRules returns the application's rule set.
func DefaultRules() []Rule {
	return compose(tutorRules, studentRules)
}

// compose merges multiple rule slices into one.
func compose(groups ...[]Rule) []Rule {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]Rule, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}

// EditAction returns the action for editing courseID.
func EditAction(courseID string) string {
	return ActionCourseEdit + ":" + courseID
}

// EnrollAction returns the action for enrolling in courseID.
func EnrollAction(courseID string) string {
	return ActionCourseEnroll + ":" + courseID
}
