// Package filter runs a user supplied JavaScript predicate over post text.
//
// A filter script defines a global function:
//
//	function filter(text) {
//	    return text.length > 10 && !/crypto/i.test(text);
//	}
//
// Posts for which filter returns a falsy value are not shown.
package filter

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout bounds a single filter call
const DefaultTimeout = 50 * time.Millisecond

// Script is a compiled filter. A goja runtime is single threaded, so calls are
// serialized.
type Script struct {
	Timeout time.Duration

	name string
	mu   sync.Mutex
	vm   *goja.Runtime
	fn   goja.Callable
}

// Compile runs src once and looks up its filter function
func Compile(src, name string) (*Script, error) {
	vm := goja.New()

	vm.Set("sprintf", fmt.Sprintf)
	vm.Set("println", func(args ...interface{}) {
		log.Println(append([]interface{}{"[FILTER " + name + "]"}, args...)...)
	})

	if err := runWithDeadline(vm, time.Second, func() error {
		_, err := vm.RunString(src)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to run script %s: %w", name, err)
	}

	fn, ok := goja.AssertFunction(vm.Get("filter"))
	if !ok {
		return nil, fmt.Errorf("script %s does not define filter(text)", name)
	}

	return &Script{
		Timeout: DefaultTimeout,
		name:    name,
		vm:      vm,
		fn:      fn,
	}, nil
}

// Load compiles the script at path
func Load(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter %s: %w", path, err)
	}
	return Compile(string(src), path)
}

// Allow reports whether text passes the filter. A script error or timeout
// rejects the post and is returned.
func (s *Script) Allow(text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result goja.Value
	err := runWithDeadline(s.vm, s.Timeout, func() error {
		var err error
		result, err = s.fn(goja.Undefined(), s.vm.ToValue(text))
		return err
	})
	if err != nil {
		return false, fmt.Errorf("script %s: %w", s.name, err)
	}
	return result.ToBoolean(), nil
}

// Name returns the script name used in errors and logs
func (s *Script) Name() string {
	return s.name
}

// runWithDeadline interrupts the runtime if run takes longer than timeout
func runWithDeadline(vm *goja.Runtime, timeout time.Duration, run func() error) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("timeout")
	})
	err := run()
	timer.Stop()
	vm.ClearInterrupt()
	return err
}
