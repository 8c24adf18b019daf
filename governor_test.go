package qsim

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestResourceGovernor(t *testing.T) {
	Convey("Given a resource governor", t, func() {
		governor := NewResourceGovernor(30, 0.5, time.Minute)

		Convey("When memory holds 2^20 amplitudes at half share", func() {
			governor.probe = func() (uint64, error) {
				return 2 * bytesPerAmplitude * (1 << 20), nil
			}

			Convey("It should allow 20 qubits and no more", func() {
				So(governor.MaxQubits(), ShouldEqual, 20)
				So(governor.Admit(20), ShouldBeNil)
				So(errors.Is(governor.Admit(21), ErrCapacityExceeded), ShouldBeTrue)
			})
		})

		Convey("When memory is plentiful", func() {
			governor.probe = func() (uint64, error) {
				return 1 << 62, nil
			}

			Convey("It should stop at the hard cap", func() {
				So(governor.MaxQubits(), ShouldEqual, 30)
			})
		})

		Convey("When the probe fails", func() {
			governor.probe = func() (uint64, error) {
				return 0, errors.New("no meminfo")
			}

			Convey("It should fall back to the hard cap", func() {
				So(governor.MaxQubits(), ShouldEqual, 30)
			})
		})

		Convey("It should cache the reading for the check interval", func() {
			calls := 0
			governor.probe = func() (uint64, error) {
				calls++
				return 1 << 40, nil
			}

			governor.MaxQubits()
			governor.MaxQubits()
			So(calls, ShouldEqual, 1)
		})
	})
}
