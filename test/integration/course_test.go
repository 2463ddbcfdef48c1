// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

//go:build integration

package integration

import (
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/coursebook/coursebook/internal/access"
	"github.com/coursebook/coursebook/internal/course"
)

var _ = Describe("Courses", func() {
	BeforeEach(func() {
		env.truncate()
	})

	It("lets a tutor create a course and a student enroll once", func() {
		tutor := register("tutor@example.com", "Tina", "tutor")
		student := register("student@example.com", "Sam", "")

		c, err := env.Courses.Create(env.ctx, tutor, course.Input{Title: "Algebra", Category: "Math"})
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Courses.Create(env.ctx, student, course.Input{Title: "Nope", Category: "Math"})
		Expect(err).To(MatchError(access.ErrPermissionDenied))

		_, err = env.Courses.Enroll(env.ctx, student, c.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Courses.Enroll(env.ctx, student, c.ID)
		Expect(err).To(MatchError(course.ErrAlreadyEnrolled))

		_, err = env.Courses.Enroll(env.ctx, tutor, c.ID)
		Expect(err).To(MatchError(access.ErrPermissionDenied))

		n, err := env.Courses.CountEnrollments(env.ctx, c.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		enrolled, err := env.Courses.EnrollmentsFor(env.ctx, student.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(enrolled).To(HaveLen(1))
		Expect(enrolled[0].Title).To(Equal("Algebra"))
	})

	It("updates a course in place", func() {
		tutor := register("tutor@example.com", "Tina", "tutor")
		c, err := env.Courses.Create(env.ctx, tutor, course.Input{Title: "Algebra", Category: "Math"})
		Expect(err).NotTo(HaveOccurred())

		updated, err := env.Courses.Update(env.ctx, tutor, c.ID, course.Input{Title: "Linear Algebra", Category: "Math"})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Title).To(Equal("Linear Algebra"))

		got, err := env.Courses.Get(env.ctx, c.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Title).To(Equal("Linear Algebra"))
	})

	It("records one enrollment under concurrent requests", func() {
		tutor := register("tutor@example.com", "Tina", "tutor")
		student := register("student@example.com", "Sam", "")
		c, err := env.Courses.Create(env.ctx, tutor, course.Input{Title: "Algebra", Category: "Math"})
		Expect(err).NotTo(HaveOccurred())

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				_, err := env.Courses.Enroll(env.ctx, student, c.ID)
				if err != nil {
					Expect(err).To(MatchError(course.ErrAlreadyEnrolled))
				}
			}()
		}
		wg.Wait()

		n, err := env.Courses.CountEnrollments(env.ctx, c.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})
})
