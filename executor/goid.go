// File: executor/goid.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// goroutineID recovers the runtime's numeric goroutine id from the
// current goroutine's stack trace. It is the only portable way to tag
// "the goroutine currently running this worker's loop" without
// requiring callers to thread a context value through every posted
// task. Used solely to answer Executor.Running(); never for
// scheduling decisions.

package executor

import (
	"bytes"
	"runtime"
	"strconv"
)

func goroutineID() int64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	idx := bytes.IndexByte(buf, ' ')
	if idx < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(buf[:idx]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
