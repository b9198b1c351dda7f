package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"consolefwd/pkg/model"
)

func rec(msg string) model.Record {
	return model.Record{
		Metadata: model.Metadata{Level: model.LevelInfo, Target: "mirrord"},
		Message:  msg,
	}
}

func TestQueue_NormalOperation(t *testing.T) {
	q, err := NewQueue(4)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	for _, m := range []string{"msg1", "msg2"} {
		if err := q.Push(rec(m)); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}
	if got := q.Usage(); got != 2 {
		t.Errorf("Expected usage 2, got %d", got)
	}

	for _, want := range []string{"msg1", "msg2"} {
		out, ok := q.Pop()
		if !ok {
			t.Fatal("Pop returned closed on a non-empty queue")
		}
		if out.Message != want {
			t.Errorf("Expected %s, got %s", want, out.Message)
		}
	}
}

func TestQueue_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := NewQueue(size); err == nil {
			t.Errorf("Expected error for size %d", size)
		}
	}
	// Sizes need not be powers of two.
	q, err := NewQueue(3)
	if err != nil {
		t.Fatalf("NewQueue(3): %v", err)
	}
	for round := 0; round < 5; round++ {
		for i := 0; i < 3; i++ {
			if err := q.Push(rec(fmt.Sprint(round, i))); err != nil {
				t.Fatalf("Push: %v", err)
			}
		}
		for i := 0; i < 3; i++ {
			out, _ := q.Pop()
			if want := fmt.Sprint(round, i); out.Message != want {
				t.Fatalf("Expected %s, got %s", want, out.Message)
			}
		}
	}
}

func TestQueue_PushBlocksWhenFull(t *testing.T) {
	q, _ := NewQueue(2)
	_ = q.Push(rec("1"))
	_ = q.Push(rec("2"))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(rec("3"))
	}()

	select {
	case err := <-pushed:
		t.Fatalf("Push on a full queue returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if out, _ := q.Pop(); out.Message != "1" {
		t.Fatalf("Order corrupted: got %s", out.Message)
	}

	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("Blocked push failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Push did not resume after Pop freed a slot")
	}

	for _, want := range []string{"2", "3"} {
		if out, _ := q.Pop(); out.Message != want {
			t.Errorf("Expected %s, got %s", want, out.Message)
		}
	}
}

func TestQueue_PopBlocksWhenEmpty(t *testing.T) {
	q, _ := NewQueue(2)

	popped := make(chan model.Record, 1)
	go func() {
		r, _ := q.Pop()
		popped <- r
	}()

	select {
	case <-popped:
		t.Fatal("Pop on an empty queue returned early")
	case <-time.After(50 * time.Millisecond):
	}

	_ = q.Push(rec("late"))
	select {
	case r := <-popped:
		if r.Message != "late" {
			t.Errorf("Expected late, got %s", r.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestQueue_CloseSendDrains(t *testing.T) {
	q, _ := NewQueue(4)
	_ = q.Push(rec("a"))
	_ = q.Push(rec("b"))
	q.CloseSend()

	if err := q.Push(rec("c")); err != ErrQueueShutdown {
		t.Errorf("Expected ErrQueueShutdown, got %v", err)
	}

	for _, want := range []string{"a", "b"} {
		out, ok := q.Pop()
		if !ok || out.Message != want {
			t.Fatalf("Expected %s, got %q (ok=%v)", want, out.Message, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Expected Pop to report closed after drain")
	}
}

func TestQueue_CloseSendWakesConsumer(t *testing.T) {
	q, _ := NewQueue(1)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.CloseSend()

	select {
	case ok := <-done:
		if ok {
			t.Error("Expected closed result")
		}
	case <-time.After(time.Second):
		t.Fatal("Consumer not woken by CloseSend")
	}
}

func TestQueue_CloseRecvRejectsProducers(t *testing.T) {
	q, _ := NewQueue(1)
	_ = q.Push(rec("fill"))

	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Push(rec("waiting"))
	}()
	time.Sleep(20 * time.Millisecond)
	q.CloseRecv()

	select {
	case err := <-blocked:
		if err != ErrQueueClosed {
			t.Errorf("Expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Blocked producer not released by CloseRecv")
	}

	if err := q.Push(rec("after")); err != ErrQueueClosed {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
	if got := q.RejectedCount(); got != 2 {
		t.Errorf("Expected 2 rejected pushes, got %d", got)
	}
	if _, ok := q.Pop(); ok {
		t.Error("Expected Pop to fail after CloseRecv")
	}
	if got := q.Usage(); got != 0 {
		t.Errorf("Expected buffered records to be discarded, usage %d", got)
	}
}

func TestQueue_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	const producers = 8
	const perProducer = 500

	q, _ := NewQueue(16)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Push(rec(fmt.Sprintf("%d:%d", p, i))); err != nil {
					t.Errorf("Push: %v", err)
					return
				}
			}
		}(p)
	}
	go func() {
		wg.Wait()
		q.CloseSend()
	}()

	next := make([]int, producers)
	total := 0
	for {
		r, ok := q.Pop()
		if !ok {
			break
		}
		var p, i int
		if _, err := fmt.Sscanf(r.Message, "%d:%d", &p, &i); err != nil {
			t.Fatalf("bad message %q: %v", r.Message, err)
		}
		if i != next[p] {
			t.Fatalf("producer %d: got %d, want %d", p, i, next[p])
		}
		next[p]++
		total++
	}
	if total != producers*perProducer {
		t.Errorf("Expected %d records, got %d", producers*perProducer, total)
	}
}

func TestQueue_ShutdownOutlivesConsumerExit(t *testing.T) {
	q, _ := NewQueue(2)
	q.CloseSend()
	q.CloseRecv()

	err := q.Push(rec("late"))
	if err != ErrQueueShutdown {
		t.Errorf("Expected ErrQueueShutdown, got %v", err)
	}
	if !errors.Is(err, ErrQueueClosed) {
		t.Error("ErrQueueShutdown should match ErrQueueClosed")
	}
	if got := q.RejectedCount(); got != 1 {
		t.Errorf("Expected 1 rejected push, got %d", got)
	}
}
