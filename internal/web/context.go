// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package web

import (
	"context"

	"github.com/coursebook/coursebook/internal/auth"
)

type ctxKey struct{}

// requestState is the per-request auth and notice state. It lives in the
// request context; nothing about the current user is kept in package state.
type requestState struct {
	user    *auth.User
	session *auth.Session
	token   string

	csrfToken string

	flashes     []Flash
	flashCookie bool
}

func withState(ctx context.Context, st *requestState) context.Context {
	return context.WithValue(ctx, ctxKey{}, st)
}

func stateFrom(ctx context.Context) *requestState {
	if st, ok := ctx.Value(ctxKey{}).(*requestState); ok {
		return st
	}
	return &requestState{}
}

// CurrentUser returns the authenticated user for the request, if any.
func CurrentUser(ctx context.Context) (*auth.User, bool) {
	st := stateFrom(ctx)
	return st.user, st.user != nil
}
