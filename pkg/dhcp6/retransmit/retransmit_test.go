package retransmit

import (
	"testing"
	"time"
)

func TestSchedulerFirstWaitBounds(t *testing.T) {
	p := Params{IRT: 1 * time.Second, MRT: 120 * time.Second}
	for i := 0; i < 200; i++ {
		s := NewScheduler(p)
		rt := s.Next()
		lo := time.Duration(float64(p.IRT) * 0.9)
		hi := time.Duration(float64(p.IRT) * 1.1)
		if rt < lo || rt > hi {
			t.Fatalf("first RT = %v, want in [%v, %v]", rt, lo, hi)
		}
		if s.Try() != 1 {
			t.Fatalf("Try() = %d after first Next(), want 1", s.Try())
		}
	}
}

func TestSchedulerSubsequentWaitDoublesWithJitter(t *testing.T) {
	p := Params{IRT: 1 * time.Second, MRT: 0}
	for i := 0; i < 200; i++ {
		s := NewScheduler(p)
		first := s.Next()
		second := s.Next()
		lo := time.Duration(float64(first) * 1.9)
		hi := time.Duration(float64(first) * 2.1)
		if second < lo || second > hi {
			t.Fatalf("second RT = %v, want in [%v, %v] (first=%v)", second, lo, hi, first)
		}
	}
}

func TestSchedulerClampsToMRT(t *testing.T) {
	p := Params{IRT: 50 * time.Second, MRT: 60 * time.Second}
	for i := 0; i < 200; i++ {
		s := NewScheduler(p)
		s.Next() // ~50s
		rt := s.Next()
		lo := time.Duration(float64(p.MRT) * 0.9)
		hi := time.Duration(float64(p.MRT) * 1.1)
		if rt < lo || rt > hi {
			t.Fatalf("clamped RT = %v, want in [%v, %v]", rt, lo, hi)
		}
	}
}

func TestSchedulerDoneAtMRC(t *testing.T) {
	s := NewScheduler(Params{IRT: time.Millisecond, MRT: time.Millisecond, MRC: 3})
	for i := 0; i < 3; i++ {
		if s.Done() {
			t.Fatalf("Done() = true before MRC reached (try=%d)", i)
		}
		s.Next()
	}
	if !s.Done() {
		t.Fatalf("Done() = false at MRC, want true")
	}
}

func TestSchedulerUnlimitedMRCNeverDone(t *testing.T) {
	s := NewScheduler(Params{IRT: time.Millisecond, MRT: time.Millisecond, MRC: 0})
	for i := 0; i < 1000; i++ {
		s.Next()
	}
	if s.Done() {
		t.Fatalf("Done() = true with MRC=0, want false (unlimited)")
	}
}

func TestSchedulerResetClearsState(t *testing.T) {
	s := NewScheduler(Params{IRT: time.Second, MRT: 10 * time.Second})
	s.Next()
	s.Next()
	s.Reset()
	if s.Try() != 0 {
		t.Fatalf("Try() after Reset = %d, want 0", s.Try())
	}
}

func TestInitialDelayBounds(t *testing.T) {
	max := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		d := InitialDelay(max)
		if d < 0 || d >= max {
			t.Fatalf("InitialDelay(%v) = %v, want in [0, %v)", max, d, max)
		}
	}
	if got := InitialDelay(0); got != 0 {
		t.Fatalf("InitialDelay(0) = %v, want 0", got)
	}
}
