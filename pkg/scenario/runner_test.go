package scenario_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rcptr_go/pkg/parser"
	"rcptr_go/pkg/scenario"
)

var _ = Describe("Runner", func() {

	Describe("shared and weak handles", func() {
		It("tracks one in-place object through copies and a weak observer", func() {
			report, out, err := run(`
				(make a 42)
				(weak w a)
				(expect-count a 1)
				(copy b a)
				(expect-count a 2)
				(reset a)
				(expect-count b 1)
				(expect-expired w false)
				(reset b)
				(expect-expired w true)
				(expect-destroyed 42 true)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(report.Statements).To(Equal(11))
			Expect(report.Destroyed).To(Equal([]int64{42}))
			Expect(out).To(Equal("destroy 42\n"))

			Expect(report.Stats.BlocksCreated).To(BeEquivalentTo(1))
			Expect(report.Stats.ObjectsDestroyed).To(BeEquivalentTo(1))
			Expect(report.Stats.LiveBlocks()).To(BeZero())
		})

		It("releases a rebound name's previous handle", func() {
			report, _, err := run(`
				(make a 1)
				(make a 2)
				(expect-destroyed 1 true)
				(expect-destroyed 2 false)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(report.Destroyed).To(Equal([]int64{1, 2}))
		})

		It("releases leftover bindings in name order on close", func() {
			report, out, err := run(`
				(new b 2)
				(new a 1)
				(new c 3)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Destroyed).To(Equal([]int64{1, 2, 3}))
			Expect(out).To(Equal("destroy 1\ndestroy 2\ndestroy 3\n"))
		})

		It("moves ownership without changing counts", func() {
			report, out, err := run(`
				(new a 1)
				(move b a)
				(expect-null a true)
				(expect-count b 1)
				(move-assign a b)
				(expect-null b true)
				(print a)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(out).To(HavePrefix("a: count=1 value=1\n"))
		})

		It("assigns and swaps", func() {
			report, out, err := run(`
				(make a 1)
				(make b 2)
				(swap a b)
				(print a)
				(assign a b)
				(expect-destroyed 2 true)
				(expect-count b 2)
				(assign a b)
				(expect-count b 2)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(out).To(HavePrefix("a: count=1 value=2\ndestroy 2\n"))
		})

		It("resets to a fresh object", func() {
			report, _, err := run(`
				(new a 1)
				(copy b a)
				(reset-to a 2)
				(expect-count a 1)
				(expect-count b 1)
				(expect-destroyed 1 false)
				(reset b)
				(expect-destroyed 1 true)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
		})

		It("locks and promotes weak handles", func() {
			report, out, err := run(`
				(make a 1)
				(weak w a)
				(lock l w)
				(expect-count a 2)
				(reset l)
				(reset a)
				(lock l w)
				(expect-null l true)
				(promote p w)
				(expect-null p true)
				(print w)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("promote w: memory: handle already expired\n"))
			Expect(out).To(ContainSubstring("w: count=0 expired=true\n"))
		})
	})

	Describe("views", func() {
		It("keeps the owner alive through an alias to a sub-object", func() {
			report, out, err := run(`
				(make a 7)
				(alias p a)
				(reset a)
				(expect-destroyed 7 false)
				(expect-count p 1)
				(print p)
				(reset p)
				(expect-destroyed 7 true)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(out).To(Equal("p: count=1 label=part-7\ndestroy 7\n"))
		})

		It("compares tracked addresses across handle kinds", func() {
			report, _, err := run(`
				(new a 3)
				(upcast b a)
				(alias p a)
				(expect-count a 3)
				(expect-equal a b true)
				(expect-equal a p false)
				(expect-equal b p false)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
		})
	})

	Describe("self references", func() {
		It("hands out owners of an object already owned", func() {
			report, _, err := run(`
				(make a 5)
				(self s a)
				(expect-count a 2)
				(expect-equal a s true)
				(self-weak w a)
				(reset a)
				(reset s)
				(expect-expired w true)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(report.Stats.LiveBlocks()).To(BeZero())
		})

		It("returns empty handles for an object no shared handle owns", func() {
			report, _, err := run(`
				(unique u 9)
				(self s u)
				(expect-null s true)
				(self-weak w u)
				(expect-expired w true)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(report.Destroyed).To(Equal([]int64{9}))
		})
	})

	Describe("unique handles", func() {
		It("destroys on reset and gives up ownership on release", func() {
			report, out, err := run(`
				(unique u 4)
				(unique-reset u 5)
				(expect-destroyed 4 true)
				(unique-release u)
				(expect-null u true)
				(unique-reset u)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(report.Destroyed).To(Equal([]int64{4}))
			Expect(out).To(Equal("destroy 4\nreleased 5\n"))
		})

		It("refuses to copy", func() {
			_, _, err := run(`
				(unique u 1)
				(copy v u)
			`)
			Expect(err).To(MatchError(ContainSubstring("unique handles cannot be copied")))
		})
	})

	Describe("expectations", func() {
		It("collects every failure", func() {
			report, _, err := run(`
				(make a 1)
				(expect-count a 2)
				(expect-destroyed 1 true)
				(expect-null a false)
			`)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Failures.Errors).To(HaveLen(2))
			Expect(report.Err()).To(MatchError(ContainSubstring("line 3: a: use count is 1, want 2")))
			Expect(report.Err()).To(MatchError(ContainSubstring("line 4: object 1: destroyed is false, want true")))
		})

		It("stops at the first failure under fail-fast", func() {
			report, _, err := run(`
				(make a 1)
				(expect-count a 2)
				(expect-count a 3)
			`, scenario.WithFailFast(true))
			Expect(err).To(MatchError(ContainSubstring("use count is 1, want 2")))
			Expect(report.Statements).To(Equal(2))
			Expect(report.Failures.Errors).To(HaveLen(1))
			Expect(report.Destroyed).To(Equal([]int64{1}))
		})
	})

	DescribeTable("malformed scripts",
		func(src, msg string) {
			_, _, err := run(src)
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("unknown statement", "(frobnicate a)", `unknown statement "frobnicate"`),
		Entry("unbound handle", "(copy b a)", `unbound handle "a"`),
		Entry("wrong arity", "(make a)", "make takes 2 arguments, got 1"),
		Entry("non-integer value", "(make a b)", "expected an integer"),
		Entry("bad boolean", "(make a 1) (expect-null a maybe)", "expected true or false"),
		Entry("weak required", "(make a 1) (lock l a)", "expected a weak handle, got shared"),
		Entry("kind mismatch", "(make a 1) (upcast b a) (assign a b)", "cannot assign shared base to shared"),
		Entry("not a list", "42", "statement must be a list"),
		Entry("line number", "\n\n(bogus)", "line 3"),
		Entry("parse error", "(make a 1", "parse script"),
	)

	It("keeps bindings between statements until closed", func() {
		var out bytes.Buffer
		r := scenario.NewRunner(scenario.WithOutput(&out))

		for _, src := range []string{"(make a 1)", "(weak w a)", "(print a)"} {
			expr, err := parser.ParseString(src)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Exec(expr)).To(Succeed())
		}
		Expect(r.Bindings()).To(Equal([]string{"a", "w"}))
		Expect(out.String()).To(Equal("a: count=1 value=1\n"))

		report := r.Close()
		Expect(report.Statements).To(Equal(3))
		Expect(report.Destroyed).To(Equal([]int64{1}))
		Expect(r.Bindings()).To(BeEmpty())
	})
})
