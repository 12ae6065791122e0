package rpapi

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeremywhuff/rpapi/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string, f RawFunc) *Stage {
	return &Stage{Name: name, F: f}
}

func pass(c *gin.Context, next NextFunc) { next(nil) }

func TestChain(t *testing.T) {
	ch := First(named("a", pass)).Then(named("b", pass))
	assert.Equal(t, 2, ch.Len)
	assert.Equal(t, []string{"a", "b"}, ch.Names())
	assert.Equal(t, "b", ch.First.Next().Name)

	empty := &Chain{}
	empty.Then(named("x", pass))
	assert.Equal(t, []string{"x"}, empty.Names())

	all := Append(&Chain{}, ch, nil, First(named("c", pass)))
	assert.Equal(t, []string{"a", "b", "c"}, all.Names())
	assert.Equal(t, 3, all.Len)
	assert.Same(t, ch, all)

	assert.Empty(t, Append().Names())
}

func TestStagesSkipZeroHandlers(t *testing.T) {
	ch := stages(Handler{}, Raw(pass).Named("a"), Handler{}, Func(func(s *Stack) { s.Next() }).Named("b"))
	assert.Equal(t, []string{"a", "b"}, ch.Names())
	assert.True(t, Handler{}.IsZero())
	assert.Equal(t, "a", Raw(pass).Named("a").Name())
}

type recordingLogger struct {
	completed []string
	failures  []bool
}

func (l *recordingLogger) LogMessage(string)            {}
func (l *recordingLogger) LogStageStart(string, *Stack) {}
func (l *recordingLogger) LogStageError(*errs.Error)    {}
func (l *recordingLogger) LogStageComplete(success bool, _ time.Duration, name string) {
	l.completed = append(l.completed, name)
	l.failures = append(l.failures, !success)
}

func runChain(t *testing.T, ch *Chain) (bool, *recordingLogger, error) {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	lgr := &recordingLogger{}
	var (
		result error
		calls  int
	)
	execute(ch, c, lgr, func(err error) {
		calls++
		result = err
	})
	require.LessOrEqual(t, calls, 1)
	return calls == 1, lgr, result
}

func TestExecute(t *testing.T) {
	var order []string
	step := func(name string) *Stage {
		return named(name, func(c *gin.Context, next NextFunc) {
			order = append(order, name)
			next(nil)
		})
	}

	done, lgr, err := runChain(t, First(step("a")).Then(step("b")).Then(step("c")))
	assert.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []string{"a", "b", "c"}, lgr.completed)
}

func TestExecuteStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	ran := false

	done, lgr, err := runChain(t, First(named("a", pass)).
		Then(named("fail", func(c *gin.Context, next NextFunc) { next(boom) })).
		Then(named("never", func(c *gin.Context, next NextFunc) { ran = true; next(nil) })))

	assert.True(t, done)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
	assert.Equal(t, []bool{false, true}, lgr.failures)
}

func TestExecuteContinuationOnce(t *testing.T) {
	count := 0
	done, _, _ := runChain(t, First(named("twice", func(c *gin.Context, next NextFunc) {
		next(nil)
		next(errors.New("late"))
		next(nil)
	})).Then(named("count", func(c *gin.Context, next NextFunc) {
		count++
		next(nil)
	})))

	assert.True(t, done)
	assert.Equal(t, 1, count)
}

func TestExecuteStageThatDoesNotContinue(t *testing.T) {
	ran := false
	done, lgr, _ := runChain(t, First(named("answer", func(c *gin.Context, next NextFunc) {})).
		Then(named("after", func(c *gin.Context, next NextFunc) { ran = true; next(nil) })))

	assert.False(t, done)
	assert.False(t, ran)
	assert.Equal(t, []string{"answer (end)"}, lgr.completed)
}

func TestFuncWithoutStack(t *testing.T) {
	ch := stages(Func(func(s *Stack) { s.Next() }).Named("orphan"))
	done, _, err := runChain(t, ch)
	assert.True(t, done)
	assert.ErrorIs(t, err, errs.ErrInternalServerError)
}

func TestFuncKeepsItsOwnContinuation(t *testing.T) {
	r, err := NewRoute(RouteConfig{Path: "/", Resource: emptyResource(t)})
	require.NoError(t, err)

	ran := false
	ch := stages(
		Raw(func(c *gin.Context, next NextFunc) { newStack(c, r); next(nil) }).Named("stack"),
		Func(func(s *Stack) {
			s.Next()
			s.Fail(errors.New("late"))
		}).Named("a"),
		Func(func(s *Stack) {}).Named("b"),
		Func(func(s *Stack) { ran = true; s.Next() }).Named("c"),
	)

	done, lgr, err := runChain(t, ch)
	assert.False(t, done)
	assert.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, []string{"stack", "a", "b (end)"}, lgr.completed)
}

func TestIf(t *testing.T) {
	var got string
	then := func(s *Stack) { got = "then"; s.Next() }
	els := func(s *Stack) { got = "else"; s.Next() }

	s := &Stack{}
	If(func(*Stack) bool { return true }, then, els)(s)
	assert.Equal(t, "then", got)
	If(func(*Stack) bool { return false }, then, els)(s)
	assert.Equal(t, "else", got)

	next := false
	s.next = func(error) { next = true }
	If(func(*Stack) bool { return false }, then, nil)(s)
	assert.True(t, next)
}
