// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package access

import (
	"log/slog"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/coursebook/coursebook/internal/auth"
)

// compiledRule holds a rule and its compiled glob.
type compiledRule struct {
	Rule
	glob glob.Glob
}

// Gate checks users against action rules. It is immutable after
// construction and safe for concurrent use.
type Gate struct {
	rules  []compiledRule
	logger *slog.Logger
}

// NewGate creates a Gate with DefaultRules.
//
// Panics if the default rules contain invalid patterns (programming error).
func NewGate(logger *slog.Logger) *Gate {
	g, err := NewGateWithRules(DefaultRules(), logger)
	if err != nil {
		panic("invalid pattern in DefaultRules: " + err.Error())
	}
	return g
}

// NewGateWithRules creates a Gate with custom rules. The first matching rule
// decides. If logger is nil, slog.Default() is used.
func NewGateWithRules(rules []Rule, logger *slog.Logger) (*Gate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Required.Valid() {
			return nil, oops.In("access").
				Code("INVALID_RULE_ROLE").
				With("pattern", r.Pattern).
				With("role", string(r.Required)).
				Errorf("rule requires unknown role")
		}
		// ':' separates action segments so '*' never spans them.
		g, err := glob.Compile(r.Pattern, ':')
		if err != nil {
			return nil, oops.In("access").
				Code("INVALID_RULE_PATTERN").
				With("pattern", r.Pattern).
				Wrap(err)
		}
		compiled = append(compiled, compiledRule{Rule: r, glob: g})
	}
	return &Gate{rules: compiled, logger: logger}, nil
}

// Required returns the role needed for action, or false if no rule matches.
func (g *Gate) Required(action string) (auth.Role, bool) {
	for _, r := range g.rules {
		if r.glob.Match(action) {
			return r.Required, true
		}
	}
	return "", false
}

// Decide returns the decision for user performing action.
func (g *Gate) Decide(user *auth.User, action string) Decision {
	if user == nil {
		return Denied
	}
	required, ok := g.Required(action)
	if !ok {
		g.logger.Warn("no access rule for action", "action", action)
		return Denied
	}
	return Authorize(user.Role, required)
}

// Check returns nil if user may perform action, otherwise an error wrapping
// ErrPermissionDenied.
func (g *Gate) Check(user *auth.User, action string) error {
	if g.Decide(user, action) == Allowed {
		return nil
	}
	b := oops.In("access").Code("ACCESS_PERMISSION_DENIED").With("action", action)
	if user != nil {
		b = b.With("user_id", user.ID.String()).With("role", string(user.Role))
	}
	return b.Wrap(ErrPermissionDenied)
}
