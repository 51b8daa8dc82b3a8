package engine

import (
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kolkov/mudflap/internal/mudflap/cemetery"
	"github.com/kolkov/mudflap/internal/mudflap/heuristics"
	"github.com/kolkov/mudflap/internal/mudflap/lookupcache"
	"github.com/kolkov/mudflap/internal/mudflap/object"
	"github.com/kolkov/mudflap/internal/mudflap/objtree"
	"github.com/kolkov/mudflap/internal/mudflap/options"
	"github.com/kolkov/mudflap/internal/mudflap/stackdepot"
)

const (
	// maxHeuristicPasses bounds how often the checker consults the
	// heuristics for one access.
	maxHeuristicPasses = 2

	// rebalanceInterval is the number of insertions between tree rebuilds
	// when optimize-object-tree is set.
	rebalanceInterval = 4096

	// nearbyMaxObjects and nearbyMaxTries bound the nearby-object search of
	// violation reports.
	nearbyMaxObjects = 3
	nearbyMaxTries   = 16
)

// Runtime is one independent instance of the checking runtime: its object
// database, lookup cache, cemetery, statistics and configuration.
//
// All entry points are safe for concurrent use. They serialize on one
// mutex; a goroutine that re-enters the runtime while already inside it
// (from a violation hook, a terminator or a heuristic) is turned away
// without effect instead of deadlocking.
type Runtime struct {
	mu        sync.Mutex
	owner     atomic.Int64
	reentered atomic.Uint64

	opts  options.Options
	out   io.Writer
	log   *zap.Logger
	clock func() time.Time

	customLog bool

	tree     *objtree.Tree
	cache    *lookupcache.Cache
	cemetery *cemetery.Cemetery
	depot    *stackdepot.Depot

	heur        heuristics.Set
	customHeur  bool
	procMap     *heuristics.ProcMap
	guessReg    guessRegistrar
	inserts     uint64
	violationNo uint64

	stats counters

	terminate  func(options.ViolationPolicy, *Violation)
	hook       func(*Violation)
	callerSkip int

	freeMu    sync.Mutex
	freeQueue []func()
	freeHead  int
	freeLen   int
}

// counters are the raw statistics; see Stats for the exported snapshot.
type counters struct {
	checks            uint64
	cacheHits         uint64
	registrations     [object.NumTypes]uint64
	registeredBytes   [object.NumTypes]uint64
	unregistrations   uint64
	unregisteredBytes uint64
	violations        [NumKinds]uint64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithOutput sets the writer for violation, leak and statistics reports
// and trace logging. The default is os.Stderr.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) { r.out = w }
}

// WithLogger replaces the trace logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		r.log = l
		r.customLog = true
	}
}

// WithHeuristics replaces the heuristics selected by the heur-* options.
func WithHeuristics(h ...heuristics.Heuristic) Option {
	return func(r *Runtime) {
		r.heur = h
		r.customHeur = true
	}
}

// WithTerminator replaces the terminal action taken after each violation.
// The function receives the configured policy and the violation. The
// default sends SIGABRT or SIGSEGV to the process or attaches gdb.
func WithTerminator(fn func(options.ViolationPolicy, *Violation)) Option {
	return func(r *Runtime) { r.terminate = fn }
}

// WithViolationHook registers fn to observe every violation before the
// terminal action. fn runs with the runtime held; calls it makes back
// into the runtime are ignored.
func WithViolationHook(fn func(*Violation)) Option {
	return func(r *Runtime) { r.hook = fn }
}

// WithCallerSkip sets the number of wrapper frames between instrumented
// code and the runtime entry points, so that recorded program counters and
// backtraces point at the instrumented caller.
func WithCallerSkip(n int) Option {
	return func(r *Runtime) { r.callerSkip = max(n, 0) }
}

// WithClock overrides the time source used for allocation and violation
// timestamps.
func WithClock(fn func() time.Time) Option {
	return func(r *Runtime) { r.clock = fn }
}

// New creates a runtime configured by opts.
func New(opts options.Options, extra ...Option) *Runtime {
	r := &Runtime{
		opts:      opts,
		out:       os.Stderr,
		clock:     time.Now,
		terminate: terminate,
	}
	for _, o := range extra {
		o(r)
	}
	if !r.customLog {
		r.log = newLogger(r.out, opts)
	}
	r.guessReg = guessRegistrar{r}
	r.init()
	return r
}

// init builds the state derived from r.opts.
func (r *Runtime) init() {
	r.tree = objtree.New()
	r.cache = lookupcache.New(r.opts.LCMask, r.opts.LCShift)
	r.cemetery = cemetery.New(r.opts.PersistentCount)
	r.depot = stackdepot.New()

	r.freeMu.Lock()
	r.freeQueue = make([]func(), r.opts.FreeQueueLength)
	r.freeHead, r.freeLen = 0, 0
	r.freeMu.Unlock()

	if !r.customHeur {
		r.heur = r.defaultHeuristics()
	}
}

func (r *Runtime) defaultHeuristics() heuristics.Set {
	var set heuristics.Set
	if r.opts.HeurStackBound {
		set = append(set, heuristics.NewStackBound(nil))
	}
	if r.opts.HeurProcMap {
		r.procMap = heuristics.NewProcMap(nil)
		set = append(set, r.procMap)
	}
	if r.opts.HeurStartEnd {
		set = append(set, heuristics.NewStartEnd(nil))
	}
	return set
}

// newLogger builds the development-style trace logger. Calls and internal
// events are logged at debug level, which is enabled by trace-calls or
// verbose-trace.
func newLogger(w io.Writer, opts options.Options) *zap.Logger {
	level := zap.WarnLevel
	if opts.TraceCalls || opts.VerboseTrace {
		level = zap.DebugLevel
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core).Named("mf")
}

// Options returns the configuration of the runtime. It may be called from
// a violation hook.
func (r *Runtime) Options() options.Options {
	if r.enter() {
		defer r.leave()
	}
	return r.opts
}

// Logger returns the trace logger, which Reset may replace.
func (r *Runtime) Logger() *zap.Logger {
	if r.enter() {
		defer r.leave()
	}
	return r.log
}

// Reset discards every live and dead object and all statistics and
// reconfigures the runtime with opts. Pending deferred releases are run
// first.
func (r *Runtime) Reset(opts options.Options) {
	r.FlushFrees()
	if !r.enter() {
		return
	}
	defer r.leave()

	r.opts = opts
	if !r.customLog {
		r.log = newLogger(r.out, opts)
	}
	r.stats = counters{}
	r.inserts = 0
	r.violationNo = 0
	r.init()
}

// now returns the current time from the runtime clock.
func (r *Runtime) now() time.Time {
	return r.clock()
}

// site records the current event for an object: caller pc, time and,
// with backtrace enabled, a stack depot handle. skip is the number of
// frames between the caller of site and instrumented code.
func (r *Runtime) site(pc uintptr, skip int) object.Site {
	return object.Site{
		PC:    pc,
		Time:  r.now(),
		Stack: r.depot.Capture(skip+1, r.opts.Backtrace),
	}
}

// release drops the backtraces held by a retired object.
func (r *Runtime) release(o *object.Object) {
	r.depot.Release(o.Alloc.Stack)
	r.depot.Release(o.Dealloc.Stack)
}

// insert adds o to the live tree. The caller has resolved all overlaps, so
// a failure means the database is corrupt.
func (r *Runtime) insert(o *object.Object) {
	if err := r.tree.Insert(o); err != nil {
		r.fatal(err, "insert")
	}
	if r.opts.OptimizeObjectTree {
		r.inserts++
		if r.inserts%rebalanceInterval == 0 {
			r.tree.Rebalance()
			r.log.Debug("rebalanced object tree", zap.Int("objects", r.tree.Len()))
		}
	}
}

// remove deletes o from the live tree.
func (r *Runtime) remove(o *object.Object) {
	if err := r.tree.Remove(o); err != nil {
		r.fatal(err, "remove")
	}
}
