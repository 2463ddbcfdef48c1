// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

//go:build integration

package integration

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/crypto/bcrypt"

	"github.com/coursebook/coursebook/internal/auth"
)

var _ = Describe("Authentication", func() {
	BeforeEach(func() {
		env.truncate()
	})

	Describe("registration", func() {
		It("stores the user with a normalized email and a hashed password", func() {
			user := register("Ada@Example.com", "ada lovelace", "")

			Expect(user.Email).To(Equal("ada@example.com"))
			Expect(user.DisplayName).To(Equal("Ada Lovelace"))
			Expect(user.Role).To(Equal(auth.RoleStudent))
			Expect(user.PasswordHash).To(HavePrefix("$argon2id$"))

			var stored string
			Expect(env.pool.QueryRow(env.ctx, `SELECT password_hash FROM users WHERE id = $1`, user.ID.String()).
				Scan(&stored)).To(Succeed())
			Expect(stored).NotTo(ContainSubstring(testPassword))
		})

		It("rejects a second account for the same email in any case", func() {
			register("ada@example.com", "Ada", "")

			_, err := env.Auth.Register(env.ctx, auth.RegisterInput{
				Email: "ADA@example.com", DisplayName: "Other", Password: testPassword,
			})
			Expect(err).To(MatchError(auth.ErrDuplicateEmail))

			users, err := env.Auth.ListUsers(env.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
		})

		It("creates exactly one account under concurrent registration", func() {
			const workers = 8
			var (
				wg        sync.WaitGroup
				succeeded atomic.Int32
				dupes     atomic.Int32
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := env.Auth.Register(env.ctx, auth.RegisterInput{
						Email: "race@example.com", DisplayName: "Racer", Password: testPassword,
					})
					switch {
					case err == nil:
						succeeded.Add(1)
					default:
						Expect(err).To(MatchError(auth.ErrDuplicateEmail))
						dupes.Add(1)
					}
				}()
			}
			wg.Wait()

			Expect(succeeded.Load()).To(Equal(int32(1)))
			Expect(dupes.Load()).To(Equal(int32(workers - 1)))
		})
	})

	Describe("login and sessions", func() {
		It("gives the same error for an unknown email and a wrong password", func() {
			register("ada@example.com", "Ada", "")

			_, unknownErr := env.Auth.Login(env.ctx, auth.LoginInput{Email: "nobody@example.com", Password: testPassword})
			_, wrongErr := env.Auth.Login(env.ctx, auth.LoginInput{Email: "ada@example.com", Password: "not the password"})

			Expect(unknownErr).To(MatchError(auth.ErrInvalidCredentials))
			Expect(wrongErr).To(MatchError(auth.ErrInvalidCredentials))
			Expect(unknownErr.Error()).To(Equal(wrongErr.Error()))
		})

		It("expires a short session after its TTL and keeps a remembered one", func() {
			user := register("ada@example.com", "Ada", "")

			short, err := env.Auth.Login(env.ctx, auth.LoginInput{Email: user.Email, Password: testPassword})
			Expect(err).NotTo(HaveOccurred())
			long, err := env.Auth.Login(env.ctx, auth.LoginInput{Email: user.Email, Password: testPassword, Remember: true})
			Expect(err).NotTo(HaveOccurred())

			got, _, err := env.Auth.Authenticate(env.ctx, short.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(user.ID))

			env.clock.Advance(env.Sessions.ShortTTL() + time.Second)
			DeferCleanup(func() { env.clock.Advance(-(env.Sessions.ShortTTL() + time.Second)) })

			_, _, err = env.Auth.Authenticate(env.ctx, short.Token)
			Expect(err).To(MatchError(auth.ErrSessionExpired))

			_, _, err = env.Auth.Authenticate(env.ctx, long.Token)
			Expect(err).NotTo(HaveOccurred())
		})

		It("revokes a session once and treats repeat logouts as no-ops", func() {
			user := register("ada@example.com", "Ada", "")
			res, err := env.Auth.Login(env.ctx, auth.LoginInput{Email: user.Email, Password: testPassword})
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Auth.Logout(env.ctx, res.Token)).To(Succeed())
			var first time.Time
			Expect(env.pool.QueryRow(env.ctx, `SELECT revoked_at FROM sessions WHERE id = $1`, res.Session.ID.String()).
				Scan(&first)).To(Succeed())

			Expect(env.Auth.Logout(env.ctx, res.Token)).To(Succeed())
			var second time.Time
			Expect(env.pool.QueryRow(env.ctx, `SELECT revoked_at FROM sessions WHERE id = $1`, res.Session.ID.String()).
				Scan(&second)).To(Succeed())
			Expect(second).To(BeTemporally("==", first))

			_, _, err = env.Auth.Authenticate(env.ctx, res.Token)
			Expect(err).To(MatchError(auth.ErrSessionRevoked))
		})

		It("upgrades a legacy bcrypt hash on login", func() {
			user := register("ada@example.com", "Ada", "")
			legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
			Expect(err).NotTo(HaveOccurred())
			_, err = env.pool.Exec(env.ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, user.ID.String(), string(legacy))
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Auth.Login(env.ctx, auth.LoginInput{Email: user.Email, Password: testPassword})
			Expect(err).NotTo(HaveOccurred())

			var stored string
			Expect(env.pool.QueryRow(env.ctx, `SELECT password_hash FROM users WHERE id = $1`, user.ID.String()).
				Scan(&stored)).To(Succeed())
			Expect(stored).To(HavePrefix("$argon2id$"))
		})

		It("sweeps sessions that have been inactive past retention", func() {
			user := register("ada@example.com", "Ada", "")
			res, err := env.Auth.Login(env.ctx, auth.LoginInput{Email: user.Email, Password: testPassword})
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Auth.Logout(env.ctx, res.Token)).To(Succeed())

			shift := auth.DefaultSessionRetention + time.Hour
			env.clock.Advance(shift)
			DeferCleanup(func() { env.clock.Advance(-shift) })

			n, err := env.Sessions.Sweep(env.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
		})
	})
})
