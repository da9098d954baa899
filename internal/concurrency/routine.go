package concurrency

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// SafeGo runs fn in a goroutine with panic recovery. onPanic, if set, runs on
// the same goroutine after the panic is logged.
func SafeGo(fn func(), onPanic func(recovered any)) {
	go func() {
		defer recoverPanic(onPanic)
		fn()
	}()
}

// Fan runs every task concurrently and waits for all of them. A panicking
// task is recovered and reported through onPanic with its index; the other
// tasks are unaffected.
func Fan(tasks []func(), onPanic func(i int, recovered any)) {
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		i, task := i, task
		go func() {
			defer wg.Done()
			defer recoverPanic(func(r any) {
				if onPanic != nil {
					onPanic(i, r)
				}
			})
			task()
		}()
	}
	wg.Wait()
}

func recoverPanic(onPanic func(any)) {
	if r := recover(); r != nil {
		slog.Error("Panic recovered", "panic", r, "stack", string(debug.Stack()))
		if onPanic != nil {
			onPanic(r)
		}
	}
}
