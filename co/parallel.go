package co

import (
	"runtime"
)

// Parallel runs a batch of work using as many CPUs as it can.
// cb receives the queue to push work into, and the returned channel is
// closed once all pushed work has finished.
func Parallel(cb func(queue chan<- func())) <-chan struct{} {
	queue := make(chan func(), runtime.NumCPU()*2)
	done := make(chan struct{})

	var goes Goes
	for i := 0; i < runtime.NumCPU(); i++ {
		goes.Go(func() {
			for work := range queue {
				work()
			}
		})
	}
	go func() {
		defer close(done)
		goes.Wait()
	}()

	cb(queue)
	close(queue)
	return done
}
