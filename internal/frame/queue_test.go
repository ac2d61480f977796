package frame

import (
	"context"
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	q := New(8)
	for _, b := range []byte{'A', 'B', 'C'} {
		if !q.Push(Frame{b}) {
			t.Fatalf("Push(%c) unexpectedly dropped", b)
		}
	}
	for _, want := range []byte{'A', 'B', 'C'} {
		got, ok := q.TryPop()
		if !ok {
			t.Fatalf("TryPop failed, expected %c", want)
		}
		if got[0] != want {
			t.Fatalf("TryPop = %c, want %c", got[0], want)
		}
	}
}

func TestPushDropsWhenFull(t *testing.T) {
	q := New(1)
	if !q.Push(Frame{1}) {
		t.Fatalf("first push should succeed")
	}
	if q.Push(Frame{2}) {
		t.Fatalf("push into full queue should be dropped")
	}
}

func TestTryPopEmpty(t *testing.T) {
	q := New(1)
	if _, ok := q.TryPop(); ok {
		t.Fatalf("TryPop on empty queue should report ok=false")
	}
}

func TestPopBlocksUntilCancel(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, ok := q.Pop(ctx)
	if ok {
		t.Fatalf("Pop on empty queue with cancelled ctx should report ok=false")
	}
}

func TestPopReturnsPushedFrame(t *testing.T) {
	q := New(1)
	q.Push(Frame{9})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	f, ok := q.Pop(ctx)
	if !ok || f[0] != 9 {
		t.Fatalf("Pop = %v, %v; want [9], true", f, ok)
	}
}

func TestDrainEmpties(t *testing.T) {
	q := New(4)
	q.Push(Frame{1})
	q.Push(Frame{2})
	q.Drain()
	if !q.Empty() {
		t.Fatalf("queue should be empty after Drain")
	}
}
