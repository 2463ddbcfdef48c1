// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package web

import (
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/samber/oops"

	"github.com/coursebook/coursebook/pkg/errutil"
)

const flashCookieName = "coursebook_flash"

// Flash categories, used as CSS classes by the templates.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashDanger  = "danger"
)

// maxFlashes bounds the cookie size if notices pile up across redirects.
const maxFlashes = 8

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// flashMaxAge bounds how long a signed flash cookie is accepted, in seconds.
const flashMaxAge = 10 * 60

// flashCodec signs and verifies flash cookies.
type flashCodec struct {
	sc *securecookie.SecureCookie
}

func newFlashCodec(key []byte) flashCodec {
	sc := securecookie.New(key, nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(flashMaxAge)
	return flashCodec{sc: sc}
}

func (c flashCodec) encode(flashes []Flash) (string, error) {
	value, err := c.sc.Encode(flashCookieName, flashes)
	if err != nil {
		return "", oops.Code("FLASH_ENCODE_FAILED").Wrap(err)
	}
	return value, nil
}

// decode returns nil for anything that is malformed, expired or not signed
// with the codec's key.
func (c flashCodec) decode(value string) []Flash {
	var flashes []Flash
	if err := c.sc.Decode(flashCookieName, value, &flashes); err != nil {
		return nil
	}
	return flashes
}

// flash queues a notice for the next rendered page.
func (s *Server) flash(r *http.Request, category, message string) {
	st := stateFrom(r.Context())
	st.flashes = append(st.flashes, Flash{Category: category, Message: message})
	if len(st.flashes) > maxFlashes {
		st.flashes = st.flashes[len(st.flashes)-maxFlashes:]
	}
}

// takeFlashes returns queued notices and clears the flash cookie.
func (s *Server) takeFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	st := stateFrom(r.Context())
	flashes := st.flashes
	st.flashes = nil
	if st.flashCookie {
		http.SetCookie(w, s.expiredCookie(flashCookieName))
		st.flashCookie = false
	}
	return flashes
}

// persistFlashes writes queued notices to the cookie before a redirect.
func (s *Server) persistFlashes(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	if len(st.flashes) == 0 {
		if st.flashCookie {
			http.SetCookie(w, s.expiredCookie(flashCookieName))
		}
		return
	}
	value, err := s.flashes.encode(st.flashes)
	if err != nil {
		errutil.LogError(r.Context(), s.logger, "encode flash cookie", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
