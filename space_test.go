package qsim

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

const testTimeout = 2 * time.Second

func TestResultSpace(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	Convey("Given a result space", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		rs := newResultSpace(10 * time.Millisecond)

		Reset(func() {
			rs.Close()
		})

		Convey("A stored value should be retrievable", func() {
			rs.Store("job-1", &JobResult{JobID: "job-1"}, nil, time.Minute)

			select {
			case <-ctx.Done():
				t.Fatal("timed out waiting for a stored value")
			case outcome := <-rs.Await("job-1"):
				So(outcome.Error, ShouldBeNil)
				So(outcome.Result.JobID, ShouldEqual, "job-1")
			}
		})

		Convey("A waiter registered first should be woken by the store", func() {
			ch := rs.Await("job-2")
			rs.Store("job-2", nil, ErrUnsampleableCircuit, time.Minute)

			select {
			case <-ctx.Done():
				t.Fatal("timed out waiting for a pending value")
			case outcome := <-ch:
				So(errors.Is(outcome.Error, ErrUnsampleableCircuit), ShouldBeTrue)
			}
		})

		Convey("Expired values should be cleaned up", func() {
			rs.Store("job-3", &JobResult{}, nil, time.Millisecond)

			So(func() bool {
				deadline := time.Now().Add(testTimeout)
				for time.Now().Before(deadline) {
					rs.mu.Lock()
					_, ok := rs.values["job-3"]
					rs.mu.Unlock()
					if !ok {
						return true
					}
					time.Sleep(5 * time.Millisecond)
				}
				return false
			}(), ShouldBeTrue)
		})

		Convey("Closing should fail outstanding waiters", func() {
			ch := rs.Await("never")
			rs.Close()

			outcome := <-ch
			So(errors.Is(outcome.Error, ErrPoolClosed), ShouldBeTrue)

			late := <-rs.Await("later")
			So(errors.Is(late.Error, ErrPoolClosed), ShouldBeTrue)
		})
	})
}
