package quiescence

import (
	"context"
	"testing"
	"time"

	"simplepage/internal/driver"
)

// fakeChannel is a driver.DebugChannel whose Subscribe hands the caller's
// handler back to the test so events can be injected synchronously.
type fakeChannel struct {
	handler driver.EventHandler
}

func (f *fakeChannel) FrameTree(ctx context.Context) ([]driver.FrameInfo, error) { return nil, nil }
func (f *fakeChannel) FullAXTree(ctx context.Context, frameID string) ([]driver.AXNode, error) {
	return nil, nil
}
func (f *fakeChannel) DescribeNodes(ctx context.Context, frameID string, ids []int64) (map[int64]driver.DOMNodeInfo, error) {
	return nil, nil
}
func (f *fakeChannel) FrameOwner(ctx context.Context, frameID string) (int64, bool, error) {
	return 0, false, nil
}
func (f *fakeChannel) Subscribe(ctx context.Context, handler driver.EventHandler) func() {
	f.handler = handler
	return func() {}
}

func (f *fakeChannel) ResolveSelector(ctx context.Context, isXPath bool, selector string) (int64, bool, error) {
	return 0, false, nil
}

func (f *fakeChannel) emit(e driver.Event) { f.handler(e) }

func TestWaitForSettledResolvesAfterQuietWindowWithNoTraffic(t *testing.T) {
	ch := &fakeChannel{}
	d := New(ch, nil)
	d.Start(context.Background())
	defer d.Stop()

	start := time.Now()
	if err := d.WaitForSettled(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("WaitForSettled: %v", err)
	}
	if elapsed := time.Since(start); elapsed < quietWindow {
		t.Fatalf("resolved too early: %v", elapsed)
	}
}

func TestWaitForSettledWaitsOutInFlightRequest(t *testing.T) {
	ch := &fakeChannel{}
	d := New(ch, nil)
	d.Start(context.Background())
	defer d.Stop()

	ch.emit(driver.Event{Kind: driver.EventRequestWillBeSent, RequestID: "r1", Type: driver.ResourceOther})

	done := make(chan error, 1)
	go func() { done <- d.WaitForSettled(context.Background(), 2*time.Second) }()

	select {
	case <-done:
		t.Fatalf("resolved while a request was still in flight")
	case <-time.After(200 * time.Millisecond):
	}

	ch.emit(driver.Event{Kind: driver.EventLoadingFinished, RequestID: "r1"})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForSettled: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("did not resolve after request finished")
	}
}

func TestWaitForSettledIgnoresWebSocketTraffic(t *testing.T) {
	ch := &fakeChannel{}
	d := New(ch, nil)
	d.Start(context.Background())
	defer d.Stop()

	ch.emit(driver.Event{Kind: driver.EventRequestWillBeSent, RequestID: "ws1", Type: driver.ResourceWebSocket})

	if err := d.WaitForSettled(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("WaitForSettled: %v", err)
	}
}

func TestWaitForSettledHardDeadlineIsNotAnError(t *testing.T) {
	ch := &fakeChannel{}
	d := New(ch, nil)
	d.Start(context.Background())
	defer d.Stop()

	ch.emit(driver.Event{Kind: driver.EventRequestWillBeSent, RequestID: "stuck", Type: driver.ResourceOther})

	start := time.Now()
	if err := d.WaitForSettled(context.Background(), 300*time.Millisecond); err != nil {
		t.Fatalf("hard deadline must not surface as an error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("took too long to hit hard deadline: %v", elapsed)
	}
}

func TestWaitForSettledFrameStoppedLoadingForceCompletesDocument(t *testing.T) {
	ch := &fakeChannel{}
	d := New(ch, nil)
	d.Start(context.Background())
	defer d.Stop()

	ch.emit(driver.Event{Kind: driver.EventRequestWillBeSent, RequestID: "doc1", FrameID: "f1", Type: driver.ResourceDocument})
	ch.emit(driver.Event{Kind: driver.EventFrameStoppedLoading, FrameID: "f1"})

	if err := d.WaitForSettled(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("WaitForSettled: %v", err)
	}
}

func TestWaitForSettledRespectsCallerContextCancellation(t *testing.T) {
	ch := &fakeChannel{}
	d := New(ch, nil)
	d.Start(context.Background())
	defer d.Stop()

	ch.emit(driver.Event{Kind: driver.EventRequestWillBeSent, RequestID: "stuck", Type: driver.ResourceOther})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.WaitForSettled(ctx, 10*time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected context cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatalf("did not observe context cancellation")
	}
}

func TestConcurrentWaitersShareOneQuietResolution(t *testing.T) {
	ch := &fakeChannel{}
	d := New(ch, nil)
	d.Start(context.Background())
	defer d.Stop()

	n := 5
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() { errs <- d.WaitForSettled(context.Background(), 2*time.Second) }()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("waiter %d: %v", i, err)
		}
	}
}
