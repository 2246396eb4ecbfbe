package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sethvargo/go-retry"

	"github.com/randalmurphal/guaclink/guacamole"
	"github.com/randalmurphal/guaclink/hostaddr"
	"github.com/randalmurphal/guaclink/notify"
)

// Broker is the subset of the broker API a run needs.
// *guacamole.Client implements it.
type Broker interface {
	Authenticate(ctx context.Context, username, password string) (*guacamole.Session, error)
	Logout(ctx context.Context, token string) error
	CreateConnection(ctx context.Context, token string, conn *guacamole.Connection) (*guacamole.Connection, error)
	VerifyConnection(ctx context.Context, token, id string) error
	FindConnectionByName(ctx context.Context, token, name string) (*guacamole.Connection, error)
	TestConnection(ctx context.Context, token, id string, override map[string]string) (guacamole.Tunnel, error)
	DeepLink(id string) string
	DashboardURL() string
}

var _ Broker = (*guacamole.Client)(nil)

// VerifyPoll bounds the wait for a created connection to become readable.
type VerifyPoll struct {
	// Initial is the delay before the second read; it doubles per attempt.
	Initial time.Duration
	// Max caps a single delay.
	Max time.Duration
	// MaxAttempts is the total number of reads.
	MaxAttempts int
}

// DefaultVerifyPoll returns the default verification poll.
func DefaultVerifyPoll() VerifyPoll {
	return VerifyPoll{
		Initial:     time.Second,
		Max:         10 * time.Second,
		MaxAttempts: 5,
	}
}

func (p VerifyPoll) withDefaults() VerifyPoll {
	d := DefaultVerifyPoll()
	if p.Initial <= 0 {
		p.Initial = d.Initial
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	return p
}

func (p VerifyPoll) backoff() retry.Backoff {
	b := retry.NewExponential(p.Initial)
	b = retry.WithCappedDuration(p.Max, b)
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Options configures a run.
type Options struct {
	Username string
	Password string

	// SSH are the parameters of the created connection. An empty Hostname
	// is filled from Resolver.
	SSH guacamole.SSHParameters

	// Resolver discovers the hostname when SSH.Hostname is empty.
	// Defaults to hostaddr.FromConfig("").
	Resolver hostaddr.Resolver

	VerifyPoll VerifyPoll

	// TestTunnel opens a tunnel to the located connection before linking.
	TestTunnel bool

	// Now returns the time the connection name is derived from.
	Now func() time.Time
}

// Validate checks that a run can be attempted.
func (o Options) Validate() error {
	if o.Username == "" || o.Password == "" {
		return ErrCredentialsRequired
	}
	if o.SSH.Username == "" {
		return ErrSSHUsernameRequired
	}
	return nil
}

// Result describes a run. On failure it holds what was reached before it.
type Result struct {
	RunID        string
	Stage        Stage
	Session      *guacamole.Session
	Connection   *guacamole.Connection
	Hostname     string
	DeepLink     string
	DashboardURL string
	TunnelTested bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithNotifier sets the notifier that receives run events.
func WithNotifier(n notify.Notifier) RunnerOption {
	return func(r *Runner) {
		r.notifier = n
	}
}

// WithRunIDGenerator replaces the run ID generator.
func WithRunIDGenerator(gen func() (string, error)) RunnerOption {
	return func(r *Runner) {
		r.newRunID = gen
	}
}

// Runner executes provisioning runs.
type Runner struct {
	broker   Broker
	opts     Options
	logger   *slog.Logger
	notifier notify.Notifier
	newRunID func() (string, error)
}

// NewRunner creates a runner.
func NewRunner(b Broker, opts Options, runnerOpts ...RunnerOption) *Runner {
	r := &Runner{
		broker:   b,
		opts:     opts,
		logger:   slog.Default(),
		notifier: notify.NopNotifier{},
		newRunID: generateRunID,
	}
	for _, opt := range runnerOpts {
		opt(r)
	}

	if r.opts.Resolver == nil {
		r.opts.Resolver = hostaddr.FromConfig("")
	}
	if r.opts.Now == nil {
		r.opts.Now = time.Now
	}
	r.opts.VerifyPoll = r.opts.VerifyPoll.withDefaults()

	return r
}

const runIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func generateRunID() (string, error) {
	return nanoid.Generate(runIDAlphabet, 12)
}

// run carries the state of a single Run call.
type run struct {
	*Runner
	result *Result
	logger *slog.Logger
}

// Run executes the lifecycle once. The returned Result is never nil; on
// failure the error is a *StageError and Result.DashboardURL is set so the
// caller can point the user at the web UI.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	result := &Result{Stage: StageUnauthenticated}
	if r.broker == nil {
		return result, &StageError{Stage: StageUnauthenticated, Op: "start run", Err: ErrNoBroker}
	}
	result.DashboardURL = r.broker.DashboardURL()

	runID, idErr := r.newRunID()
	if idErr != nil {
		return result, &StageError{Stage: StageUnauthenticated, Op: "generate run id", Err: idErr}
	}
	result.RunID = runID

	rn := &run{
		Runner: r,
		result: result,
		logger: r.logger.With("run_id", runID),
	}

	if err := r.opts.Validate(); err != nil {
		return result, rn.fail(ctx, "validate options", err)
	}

	rn.emit(ctx, notify.EventRunStarted, "Provisioning run started", nil)

	if err := rn.execute(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func (rn *run) execute(ctx context.Context) error {
	session, authErr := rn.broker.Authenticate(ctx, rn.opts.Username, rn.opts.Password)
	if authErr != nil {
		return rn.fail(ctx, "authenticate", authErr)
	}
	rn.result.Session = session
	defer rn.logout(ctx, session.Token)
	rn.advance(ctx, StageAuthenticated, notify.EventAuthenticated, "Authenticated", map[string]any{
		"username":    session.Username,
		"data_source": session.DataSource,
	})

	params := rn.opts.SSH
	if params.Hostname == "" {
		addr, resolveErr := rn.opts.Resolver.Resolve(ctx)
		if resolveErr != nil {
			return rn.fail(ctx, "resolve host address", resolveErr)
		}
		params.Hostname = addr
	}
	rn.result.Hostname = params.Hostname

	name := guacamole.ConnectionName(rn.opts.Now())
	created, createErr := rn.broker.CreateConnection(ctx, session.Token, guacamole.NewSSHConnection(name, params))
	if createErr != nil {
		return rn.fail(ctx, "create connection", createErr)
	}
	rn.result.Connection = created
	rn.logger = rn.logger.With("connection_id", created.Identifier)
	rn.advance(ctx, StageCreated, notify.EventConnectionCreated, "Connection created", map[string]any{
		"name":     created.Name,
		"hostname": params.Hostname,
	})

	if verifyErr := rn.verify(ctx, session.Token, created.Identifier); verifyErr != nil {
		return rn.fail(ctx, "verify connection", verifyErr)
	}
	rn.advance(ctx, StageVerified, notify.EventConnectionVerified, "Connection verified", nil)

	found, findErr := rn.broker.FindConnectionByName(ctx, session.Token, name)
	if findErr != nil {
		return rn.fail(ctx, "locate connection", findErr)
	}
	// Names only have one-second resolution, so another run may own the
	// match. The created identifier is authoritative.
	if found.Identifier != created.Identifier {
		rn.logger.Warn("located connection differs from created one",
			"created", created.Identifier, "located", found.Identifier)
	} else {
		rn.result.Connection = found
	}
	rn.advance(ctx, StageLocated, notify.EventConnectionLocated, "Connection located", map[string]any{
		"name": found.Name,
	})

	if rn.opts.TestTunnel {
		tunnel, tunnelErr := rn.broker.TestConnection(ctx, session.Token, created.Identifier, nil)
		if tunnelErr != nil {
			return rn.fail(ctx, "test tunnel", tunnelErr)
		}
		rn.result.TunnelTested = true
		meta := map[string]any{}
		if id, ok := tunnel["uuid"]; ok {
			meta["tunnel"] = id
		}
		rn.emit(ctx, notify.EventTunnelTested, "Tunnel opened", meta)
	}

	rn.result.DeepLink = rn.broker.DeepLink(created.Identifier)
	rn.advance(ctx, StageLinked, notify.EventLinkReady, "Deep link ready", map[string]any{
		"link": rn.result.DeepLink,
	})

	return nil
}

// verify polls until the connection is readable. Only not-found and
// transient errors are retried.
func (rn *run) verify(ctx context.Context, token, id string) error {
	attempt := 0
	return retry.Do(ctx, rn.opts.VerifyPoll.backoff(), func(ctx context.Context) error {
		attempt++
		err := rn.broker.VerifyConnection(ctx, token, id)
		if err == nil {
			return nil
		}
		if !guacamole.IsNotFound(err) && !guacamole.IsRetryable(err) {
			return err
		}

		rn.logger.Debug("connection not yet readable", "attempt", attempt, "error", err)
		if attempt < rn.opts.VerifyPoll.MaxAttempts {
			rn.emit(ctx, notify.EventVerificationPending, "Waiting for connection", map[string]any{
				"attempt": attempt,
			})
		}
		return retry.RetryableError(fmt.Errorf("attempt %d: %w", attempt, err))
	})
}

func (rn *run) logout(ctx context.Context, token string) {
	// Revoke even if the run's context was cancelled.
	if err := rn.broker.Logout(context.WithoutCancel(ctx), token); err != nil {
		rn.logger.Warn("logout failed", "error", err)
		return
	}
	rn.logger.Debug("session revoked")
}

func (rn *run) advance(ctx context.Context, stage Stage, typ notify.EventType, msg string, meta map[string]any) {
	rn.result.Stage = stage
	rn.logger.Debug(msg, "stage", stage.String())
	rn.emit(ctx, typ, msg, meta)
}

func (rn *run) fail(ctx context.Context, op string, err error) error {
	stageErr := &StageError{Stage: rn.result.Stage, Op: op, Err: err}
	rn.logger.Error("run failed", "op", op, "stage", stageErr.Stage.String(), "error", err)

	event := rn.event(notify.EventRunFailed, stageErr.Error(), map[string]any{
		"op":        op,
		"dashboard": rn.result.DashboardURL,
	})
	event.Severity = notify.SeverityError
	rn.notify(ctx, event)

	return stageErr
}

func (rn *run) emit(ctx context.Context, typ notify.EventType, msg string, meta map[string]any) {
	rn.notify(ctx, rn.event(typ, msg, meta))
}

func (rn *run) event(typ notify.EventType, msg string, meta map[string]any) notify.Event {
	event := notify.Event{
		Type:      typ,
		RunID:     rn.result.RunID,
		Stage:     rn.result.Stage.String(),
		Message:   msg,
		Severity:  notify.SeverityInfo,
		Timestamp: time.Now(),
		Metadata:  meta,
	}
	if rn.result.Connection != nil {
		event.ConnectionID = rn.result.Connection.Identifier
	}
	return event
}

// notify sends an event. Notification errors never fail the run.
func (rn *run) notify(ctx context.Context, event notify.Event) {
	if err := rn.notifier.Notify(ctx, event); err != nil {
		rn.logger.Warn("notification failed", "event", string(event.Type), "error", err)
	}
}
