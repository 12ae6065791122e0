package rpapi

import (
	"log"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/jeremywhuff/rpapi/errs"
)

type Logger interface {
	LogMessage(msg string)
	LogStageStart(name string, s *Stack)
	LogStageComplete(success bool, elapsed time.Duration, name string)
	LogStageError(e *errs.Error)
}

type DefaultLogger struct{}

func (l DefaultLogger) LogMessage(msg string) {
	log.Print(msg)
}

func (l DefaultLogger) LogStageStart(name string, s *Stack) {
	// Ignore
}

func (l DefaultLogger) LogStageComplete(success bool, elapsed time.Duration, name string) {

	// Column 1: Success or failure
	lbl := color.New(color.FgWhite).Add(color.BgGreen).Sprintf(" OK  ")
	if !success {
		lbl = color.New(color.FgWhite).Add(color.BgRed).Sprintf(" ERR ")
	}

	// Column 2: Time elapsed
	tclr := color.New(color.FgWhite, color.Faint)
	if elapsed > time.Millisecond {
		tclr = color.New(color.FgWhite).Add(color.BgCyan)
	}
	t := tclr.Sprintf("%13v", elapsed)

	// Column 3: Stage name
	log.Print("|" + lbl + "| " + t + " | " + name)
}

func (l DefaultLogger) LogStageError(e *errs.Error) {
	log.Printf("")
	log.Printf("Error: %s (%d)", e.Error(), e.StatusCode)
	log.Printf("")
}

// SlogLogger writes stage events as structured records.
type SlogLogger struct {
	L *slog.Logger
}

func (l SlogLogger) LogMessage(msg string) {
	l.L.Info(msg)
}

func (l SlogLogger) LogStageStart(name string, s *Stack) {
	if s == nil {
		l.L.Debug("stage start", "stage", name)
		return
	}
	l.L.Debug("stage start", "stage", name, "request_id", s.ID)
}

func (l SlogLogger) LogStageComplete(success bool, elapsed time.Duration, name string) {
	l.L.Debug("stage complete", "stage", name, "success", success, "elapsed", elapsed)
}

func (l SlogLogger) LogStageError(e *errs.Error) {
	l.L.Warn("request failed", "error", e.Name, "status", e.StatusCode, "message", e.Message)
}

// execute runs ch against c. Each stage receives a continuation bound to the stage
// after it; the continuation of the last stage calls done with nil. A continuation
// given an error calls done with that error. Continuations fire at most once.
func execute(ch *Chain, c *gin.Context, lgr Logger, done func(error)) {
	var run func(st *Stage)
	run = func(st *Stage) {
		if st == nil {
			done(nil)
			return
		}

		if lgr != nil {
			lgr.LogStageStart(st.Name, StackOf(c))
		}
		t := time.Now()

		called := false
		st.F(c, func(err error) {
			if called {
				return
			}
			called = true
			if lgr != nil {
				lgr.LogStageComplete(err == nil, time.Since(t), st.Name)
			}
			if err != nil {
				done(err)
				return
			}
			run(st.n)
		})

		// The stage answered the request itself or stalled.
		if !called && lgr != nil {
			lgr.LogStageComplete(true, time.Since(t), st.Name+" (end)")
		}
	}
	run(ch.First)
}
