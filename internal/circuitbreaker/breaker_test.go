package circuitbreaker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/resilient-client/internal/apierror"
	"github.com/angeloszaimis/resilient-client/internal/circuitbreaker"
)

var errBackend = errors.New("backend down")

var _ = Describe("CircuitBreaker", func() {
	var (
		cb    *circuitbreaker.CircuitBreaker
		clock *fakeClock
		ctx   context.Context
		calls int
	)

	succeed := func(context.Context) error { calls++; return nil }
	fail := func(context.Context) error { calls++; return errBackend }

	trip := func(n int) {
		for i := 0; i < n; i++ {
			Expect(cb.Call(ctx, fail)).To(MatchError(errBackend))
		}
	}

	BeforeEach(func() {
		clock = newFakeClock()
		ctx = context.Background()
		calls = 0
		cb = circuitbreaker.NewCircuitBreaker("primary", circuitbreaker.Settings{
			FailureThreshold: 3,
			Cooldown:         30 * time.Second,
			TrialRequests:    1,
			Now:              clock.Now,
		})
	})

	Describe("NewCircuitBreaker", func() {
		It("should create a circuit breaker in closed state", func() {
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Name()).To(Equal("primary"))
		})

		It("should apply defaults for zero settings", func() {
			snap := circuitbreaker.NewCircuitBreaker("x", circuitbreaker.Settings{}).Snapshot()
			Expect(snap.FailureThreshold).To(Equal(circuitbreaker.DefaultFailureThreshold))
			Expect(snap.Cooldown).To(Equal(circuitbreaker.DefaultCooldown))
			Expect(snap.TrialRequests).To(Equal(circuitbreaker.DefaultTrialRequests))
		})
	})

	Context("when in closed state", func() {
		It("should pass calls through", func() {
			Expect(cb.Call(ctx, succeed)).To(Succeed())
			Expect(calls).To(Equal(1))
		})

		It("should remain closed after failures below threshold", func() {
			trip(2)
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Snapshot().Failures).To(Equal(2))
		})

		It("should open after exactly threshold consecutive failures", func() {
			trip(3)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(cb.Snapshot().OpenedAt).To(Equal(clock.Now()))
		})

		It("should reset the failure count on success", func() {
			trip(2)
			Expect(cb.Call(ctx, succeed)).To(Succeed())
			trip(2)
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should not count caller cancellation as a failure", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			for i := 0; i < 5; i++ {
				err := cb.Call(cctx, func(c context.Context) error { return c.Err() })
				Expect(err).To(MatchError(context.Canceled))
			}
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Snapshot().Failures).To(BeZero())
		})

		It("should count a deadline as a failure", func() {
			for i := 0; i < 3; i++ {
				_ = cb.Call(ctx, func(context.Context) error { return context.DeadlineExceeded })
			}
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Context("when in open state", func() {
		BeforeEach(func() {
			trip(3)
			calls = 0
		})

		It("should reject calls without running them", func() {
			err := cb.Call(ctx, succeed)
			Expect(errors.Is(err, apierror.ErrCircuitOpen)).To(BeTrue())
			Expect(calls).To(BeZero())
		})

		It("should keep rejecting before the cooldown elapses", func() {
			clock.Advance(29 * time.Second)
			Expect(cb.Allows()).To(BeFalse())
			Expect(cb.Call(ctx, succeed)).To(MatchError(apierror.ErrCircuitOpen))
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should report Allows after cooldown without changing state", func() {
			clock.Advance(30 * time.Second)
			Expect(cb.Allows()).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Context("when the cooldown has elapsed", func() {
		BeforeEach(func() {
			trip(3)
			clock.Advance(31 * time.Second)
			calls = 0
		})

		It("should close after a successful trial and reset failures", func() {
			Expect(cb.Call(ctx, succeed)).To(Succeed())
			Expect(calls).To(Equal(1))
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Snapshot().Failures).To(BeZero())
		})

		It("should reopen after a failed trial and restart the cooldown", func() {
			Expect(cb.Call(ctx, fail)).To(MatchError(errBackend))
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(cb.Snapshot().OpenedAt).To(Equal(clock.Now()))

			clock.Advance(10 * time.Second)
			Expect(cb.Call(ctx, succeed)).To(MatchError(apierror.ErrCircuitOpen))
		})

		It("should admit only the configured number of trial calls", func() {
			release := make(chan struct{})
			started := make(chan struct{})
			done := make(chan error, 1)

			go func() {
				done <- cb.Call(ctx, func(context.Context) error {
					close(started)
					<-release
					return nil
				})
			}()

			Eventually(started).Should(BeClosed())
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			Expect(cb.Call(ctx, succeed)).To(MatchError(apierror.ErrCircuitOpen))

			close(release)
			Eventually(done).Should(Receive(BeNil()))
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should admit several trials when configured", func() {
			multi := circuitbreaker.NewCircuitBreaker("multi", circuitbreaker.Settings{
				FailureThreshold: 1,
				Cooldown:         time.Second,
				TrialRequests:    2,
				Now:              clock.Now,
			})
			_ = multi.Call(ctx, fail)
			clock.Advance(2 * time.Second)

			var wg sync.WaitGroup
			release := make(chan struct{})
			admitted := make(chan struct{}, 3)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = multi.Call(ctx, func(context.Context) error {
						admitted <- struct{}{}
						<-release
						return nil
					})
				}()
			}

			Eventually(admitted).Should(HaveLen(2))
			Expect(multi.Call(ctx, succeed)).To(MatchError(apierror.ErrCircuitOpen))
			close(release)
			wg.Wait()
			Expect(multi.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("stale outcomes", func() {
		It("should not let a call admitted before a transition move the breaker", func() {
			release := make(chan struct{})
			started := make(chan struct{})
			done := make(chan error, 1)

			go func() {
				done <- cb.Call(ctx, func(context.Context) error {
					close(started)
					<-release
					return nil
				})
			}()
			Eventually(started).Should(BeClosed())

			trip(3)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			close(release)
			Eventually(done).Should(Receive(BeNil()))
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Describe("panics", func() {
		It("should record a failure and re-panic", func() {
			single := circuitbreaker.NewCircuitBreaker("p", circuitbreaker.Settings{FailureThreshold: 1, Now: clock.Now})
			Expect(func() {
				_ = single.Call(ctx, func(context.Context) error { panic("boom") })
			}).To(PanicWith("boom"))
			Expect(single.State()).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Describe("OnStateChange", func() {
		It("should report every transition once", func() {
			var mutex sync.Mutex
			var seen []string
			observed := circuitbreaker.NewCircuitBreaker("obs", circuitbreaker.Settings{
				FailureThreshold: 1,
				Cooldown:         time.Second,
				Now:              clock.Now,
				OnStateChange: func(name string, from, to circuitbreaker.State) {
					mutex.Lock()
					defer mutex.Unlock()
					seen = append(seen, name+":"+from.String()+"->"+to.String())
				},
			})

			_ = observed.Call(ctx, fail)
			clock.Advance(2 * time.Second)
			_ = observed.Call(ctx, succeed)

			mutex.Lock()
			defer mutex.Unlock()
			Expect(seen).To(Equal([]string{
				"obs:closed->open",
				"obs:open->half-open",
				"obs:half-open->closed",
			}))
		})
	})

	Describe("Classify", func() {
		It("should let ignored outcomes free trial slots without transitions", func() {
			ignoring := circuitbreaker.NewCircuitBreaker("i", circuitbreaker.Settings{
				FailureThreshold: 1,
				Cooldown:         time.Second,
				Now:              clock.Now,
				Classify: func(_ context.Context, err error) circuitbreaker.Outcome {
					if errors.Is(err, errBackend) {
						return circuitbreaker.OutcomeFailure
					}
					if err != nil {
						return circuitbreaker.OutcomeIgnored
					}
					return circuitbreaker.OutcomeSuccess
				},
			})
			_ = ignoring.Call(ctx, fail)
			clock.Advance(2 * time.Second)

			_ = ignoring.Call(ctx, func(context.Context) error { return errors.New("client error") })
			Expect(ignoring.State()).To(Equal(circuitbreaker.StateHalfOpen))
			Expect(ignoring.Allows()).To(BeTrue())

			Expect(ignoring.Call(ctx, succeed)).To(Succeed())
			Expect(ignoring.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Reset", func() {
		It("should close an open breaker", func() {
			trip(3)
			cb.Reset()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Call(ctx, succeed)).To(Succeed())
		})
	})

	Describe("State.String", func() {
		It("should return correct string representation", func() {
			Expect(circuitbreaker.StateClosed.String()).To(Equal("closed"))
			Expect(circuitbreaker.StateOpen.String()).To(Equal("open"))
			Expect(circuitbreaker.StateHalfOpen.String()).To(Equal("half-open"))
		})
	})
})
