package flagcore

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// errorBoundary recovers panics escaping any public Client method, reports
// the first occurrence of each distinct error to the exception endpoint, and
// lets the caller substitute a safe zero value instead of crashing the host
// process.
type errorBoundary struct {
	fetcher *fetcher
	mu      sync.Mutex
	seen    map[string]bool
}

type logExceptionRequestBody struct {
	Exception string `json:"exception"`
	Info      string `json:"info"`
}

type logExceptionResponse struct {
	Success bool `json:"success"`
}

func newErrorBoundary(sdkKey string, options *Options, _ *diagnostics) *errorBoundary {
	return &errorBoundary{fetcher: newFetcher(sdkKey, options), seen: make(map[string]bool)}
}

// logException reports exception to the exception endpoint at most once per
// distinct message — a sync that fails every tick would otherwise flood the
// endpoint with an identical report every interval.
func (e *errorBoundary) logException(exception error) error {
	if exception == nil {
		return nil
	}
	msg := exception.Error()
	e.mu.Lock()
	if e.seen[msg] {
		e.mu.Unlock()
		return nil
	}
	e.seen[msg] = true
	e.mu.Unlock()

	body := logExceptionRequestBody{Exception: msg, Info: string(debug.Stack())}
	var resp logExceptionResponse
	_, err := e.fetcher.post("/sdk_exception", body, &resp, requestOptions{})
	return err
}

// capture runs task, recovering any panic into a logged exception. onPanic,
// if non-nil, runs after recovery so the caller can return its method's
// zero value instead of propagating the panic.
func (e *errorBoundary) capture(tag string, task func(), onPanic func(recovered interface{})) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			_ = e.logException(err)
			Logger().LogError(fmt.Sprintf("%s: %v", tag, r))
			if onPanic != nil {
				onPanic(r)
			}
		}
	}()
	task()
}
