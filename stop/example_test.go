package stop_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/usnistgov/labbench-sub000/stop"
)

func ExampleSignal_Sleep() {
	sig := stop.New()

	go func() {
		time.Sleep(10 * time.Millisecond)
		sig.Request()
	}()

	err := sig.Sleep(context.Background(), time.Minute)
	if errors.Is(err, stop.ErrEndedByMaster) {
		fmt.Println("ended early")
	}
	// Output:
	// ended early
}

func ExampleWith() {
	sig := stop.New()
	ctx := stop.With(context.Background(), sig)

	// A task body checkpoints against whichever signal its runner attached.
	if err := stop.Sleep(ctx, time.Millisecond); err == nil {
		fmt.Println("slept")
	}
	// Output:
	// slept
}
