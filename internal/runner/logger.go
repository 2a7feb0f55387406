package runner

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// CapturingLogger keeps the debug output of one test case so the reporter
// can decide afterwards whether to show it.
type CapturingLogger struct {
	mu     sync.Mutex
	output []CapturedMessage
}

func (l *CapturingLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(format, args...)})
	l.mu.Unlock()
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append(CapturedOutput(nil), l.output...)
}

func (out CapturedOutput) Dump(w io.Writer, prefix string) {
	for _, m := range out {
		fmt.Fprintf(w, "%s[%s] %s\n", prefix, m.Time.Format(timestampFormat), m.Message)
	}
}
