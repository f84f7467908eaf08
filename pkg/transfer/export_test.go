package transfer

// WorkerDone is closed once w's goroutine has returned.
func WorkerDone(w *Worker) <-chan struct{} {
	return w.done
}
