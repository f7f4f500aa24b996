package sysclock

import (
	"testing"
	"time"
)

func TestAfterFuncFires(t *testing.T) {
	var clk Clock
	done := make(chan struct{})
	clk.AfterFunc(10*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AfterFunc callback did not fire")
	}
}

func TestAfterFuncStopPreventsFire(t *testing.T) {
	var clk Clock
	fired := make(chan struct{}, 1)
	timer := clk.AfterFunc(50*time.Millisecond, func() { fired <- struct{}{} })
	if !timer.Stop() {
		t.Fatal("Stop() = false, want true for an un-fired timer")
	}
	select {
	case <-fired:
		t.Fatal("callback fired after Stop()")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNowAdvances(t *testing.T) {
	var clk Clock
	t1 := clk.Now()
	time.Sleep(time.Millisecond)
	t2 := clk.Now()
	if !t2.After(t1) {
		t.Fatalf("Now() did not advance: %v then %v", t1, t2)
	}
}
