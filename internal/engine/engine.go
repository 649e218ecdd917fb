// Package engine runs one catalog or consumption sync from credentials to
// publication, retrying whole attempts with backoff.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/systmms/landdsync/internal/checkpoint"
	"github.com/systmms/landdsync/internal/config"
	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/identity"
	"github.com/systmms/landdsync/internal/logging"
	"github.com/systmms/landdsync/internal/mapping"
	"github.com/systmms/landdsync/internal/publish"
	"github.com/systmms/landdsync/internal/secrets"
	"github.com/systmms/landdsync/internal/source"
	"github.com/systmms/landdsync/internal/transport"
)

// Header names sent to the source and destination APIs.
const (
	HeaderSourceAPIKey    = "X_API_KEY"
	HeaderSubscriptionKey = "Ocp-Apim-Subscription-Key"
)

// Deps are the collaborators of an Engine. Nil fields are built from the
// configuration.
type Deps struct {
	Client      *http.Client
	Local       identity.LocalTokenSource
	Destination identity.DestinationTokenSource
	Resolver    secrets.Resolver
	Checkpoint  *checkpoint.Store
	Metrics     *Metrics
	Logger      logging.Printer
	Now         func() time.Time
	Sleep       func(ctx context.Context, d time.Duration) error
}

// Engine executes sync runs for one configuration.
type Engine struct {
	def *config.Definition

	local       identity.LocalTokenSource
	destination identity.DestinationTokenSource
	resolver    secrets.Resolver
	checkpoint  *checkpoint.Store
	metrics     *Metrics
	logger      logging.Printer
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	backoff     Backoff

	fetcher   *source.Fetcher
	mapper    *mapping.Mapper
	publisher *publish.Publisher
}

type masker interface {
	Mask(values ...string)
}

// New wires an Engine. def must already be validated.
func New(def *config.Definition, deps Deps) (*Engine, error) {
	if def == nil {
		return nil, errors.New("engine: nil configuration")
	}
	if deps.Logger == nil {
		return nil, errors.New("engine: logger is required")
	}

	client := deps.Client
	if client == nil {
		client = transport.NewClient(def.General.HTTPTimeout)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		def:         def,
		local:       deps.Local,
		destination: deps.Destination,
		resolver:    deps.Resolver,
		checkpoint:  deps.Checkpoint,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         now,
		sleep:       deps.Sleep,
		backoff: Backoff{
			Initial: def.General.RetryInitialWait,
			Max:     def.General.RetryMaxWait,
			Jitter:  def.General.RetryJitter,
		},
		fetcher:   &source.Fetcher{Client: client, MaxPages: def.General.MaxPages, Logger: deps.Logger},
		publisher: &publish.Publisher{Client: client, Logger: deps.Logger},
	}
	e.mapper = mapping.NewMapper(def, deps.Logger)
	e.mapper.Now = now

	if e.sleep == nil {
		e.sleep = sleepContext
	}
	if e.local == nil {
		e.local = identity.LocalIdentity{
			Endpoint: def.Identity.Endpoint,
			Resource: def.Identity.Resource,
			Client:   client,
			Now:      now,
		}
	}
	if e.destination == nil {
		e.destination = identity.NewDestination(client)
	}
	if e.resolver == nil {
		e.resolver = newResolver(def.KeyVault, client)
	}
	if e.checkpoint == nil {
		e.checkpoint = checkpoint.Open(def.Consumption.CheckpointFile)
	}
	return e, nil
}

func newResolver(kv config.KeyVaultConfig, client *http.Client) secrets.Resolver {
	switch kv.Backend {
	case config.BackendSDK:
		return secrets.NewKeyVaultResolver(kv.URL, kv.APIVersion, client)
	case config.BackendKeyring:
		return secrets.KeyringResolver{Service: kv.KeyringService}
	default:
		return secrets.RESTResolver{VaultURL: kv.URL, APIVersion: kv.APIVersion, Client: client}
	}
}

// Run executes mode until an attempt succeeds, a fatal error occurs, the
// attempt limit is reached or ctx is cancelled. The report is returned in
// every case.
func (e *Engine) Run(ctx context.Context, mode config.Mode) (*Report, error) {
	report := &Report{Mode: mode, State: StateIdle, Transitions: []State{StateIdle}, StartedAt: e.now()}
	if _, err := config.ParseMode(string(mode)); err != nil {
		e.finish(report, StateFailed, err)
		return report, err
	}

	attempts := e.def.General.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		report.Attempts = attempt
		report.resetCounters()
		e.metrics.RecordAttempt(string(mode))
		e.logger.Info("Starting %s sync, attempt %d of %d", mode, attempt, attempts)

		lastErr = e.attempt(ctx, mode, report)
		if lastErr == nil {
			e.finish(report, StateCompleted, nil)
			return report, nil
		}

		e.logger.Error("Attempt %d of %d failed: %v", attempt, attempts, lastErr)
		if dserrors.IsFatal(lastErr) {
			e.logger.Error("Not retrying: the failure will not clear on its own")
			break
		}
		if !dserrors.IsRetryable(lastErr) {
			e.logger.Error("Not retrying: %v is not a transient failure", lastErr)
			break
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}

		delay := e.backoff.Delay(attempt)
		e.logger.Debug("Waiting %s before the next attempt", delay)
		if err := e.sleep(ctx, delay); err != nil {
			lastErr = fmt.Errorf("retry wait interrupted: %w", err)
			break
		}
		e.transition(report, StateIdle)
	}

	e.finish(report, StateFailed, lastErr)
	return report, lastErr
}

func (e *Engine) finish(report *Report, state State, err error) {
	e.transition(report, state)
	report.Err = err
	report.FinishedAt = e.now()
	e.metrics.RecordRun(string(report.Mode), state,
		report.FinishedAt.Sub(report.StartedAt).Seconds(),
		float64(report.FinishedAt.Unix()))
	if state == StateCompleted {
		e.logger.Info("%s sync completed: %d records published in %d batches", report.Mode, report.Published, report.Batches)
	}
}

func (e *Engine) transition(report *Report, state State) {
	if report.State == state {
		return
	}
	e.logger.Debug("State %s -> %s", report.State, state)
	report.State = state
	report.Transitions = append(report.Transitions, state)
}

// session holds everything acquired for one attempt.
type session struct {
	bundle      *secrets.Bundle
	sourceHdr   http.Header
	destination http.Header
}

func (e *Engine) attempt(ctx context.Context, mode config.Mode, report *Report) error {
	e.transition(report, StateAcquiringCredentials)
	provider := identity.NewProvider(e.local, e.destination, e.logger, e.now)
	defer provider.Close()

	sess, err := e.acquire(ctx, mode, provider)
	if err != nil {
		return err
	}
	defer sess.bundle.Destroy()

	switch mode {
	case config.ModeCatalog:
		return e.syncCatalog(ctx, sess, report)
	case config.ModeConsumption:
		return e.syncConsumption(ctx, sess, report)
	default:
		return fmt.Errorf("unsupported mode %q", mode)
	}
}

func (e *Engine) acquire(ctx context.Context, mode config.Mode, provider *identity.Provider) (*session, error) {
	var storeToken identity.Token
	if e.def.KeyVault.Backend != config.BackendKeyring {
		tok, err := provider.SecretStoreToken(ctx)
		if err != nil {
			return nil, err
		}
		storeToken = tok
	}

	bundle, err := secrets.ResolveBundle(ctx, e.resolver, storeToken, e.def.KeyVault.Secrets, config.RequiredSecrets(mode), e.logger)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(bundle.Names()))
	for _, name := range bundle.Names() {
		value, err := bundle.Get(name)
		if err != nil {
			bundle.Destroy()
			return nil, err
		}
		values[name] = value
	}
	if m, ok := e.logger.(masker); ok {
		for _, value := range values {
			m.Mask(value)
		}
	}

	destToken, err := provider.DestinationToken(ctx, identity.ClientCredentials{
		AuthorityHost: e.def.LandD.AuthorityHostURL,
		Tenant:        e.def.LandD.Tenant,
		Resource:      e.def.LandD.Resource,
		ClientID:      values[config.SecretLandDClientID],
		ClientSecret:  values[config.SecretLandDClientSecret],
	})
	if err != nil {
		bundle.Destroy()
		return nil, err
	}
	if m, ok := e.logger.(masker); ok {
		m.Mask(destToken.Value)
	}

	return &session{
		bundle: bundle,
		sourceHdr: http.Header{
			"Authorization":    {"Bearer " + values[config.SecretEdXAccessToken]},
			HeaderSourceAPIKey: {values[config.SecretEdXAPIKey]},
		},
		destination: http.Header{
			"Authorization":       {destToken.Bearer()},
			HeaderSubscriptionKey: {values[config.SecretSubscriptionKey]},
		},
	}, nil
}

func (e *Engine) syncCatalog(ctx context.Context, sess *session, report *Report) error {
	e.transition(report, StateFetchingSource)
	e.logger.Info("Fetching the course catalog")

	raw, pages, err := e.fetcher.FetchAll(ctx, e.def.EdX.CatalogURL, sess.sourceHdr)
	if err != nil {
		return err
	}
	report.Pages = pages
	e.metrics.RecordPages(string(report.Mode), pages)

	e.transition(report, StateMappingAndPublishing)
	records, stats, err := e.mapper.Catalog(raw)
	if err != nil {
		return err
	}
	report.Skipped = stats.Skipped
	e.logger.Info("Mapped %d of %d catalog records", len(records), len(raw))
	e.metrics.RecordRecords(string(report.Mode), "skipped", report.Skipped)
	if len(records) == 0 {
		e.logger.Warn("Nothing to publish")
		return nil
	}

	if _, err := e.publisher.Publish(ctx, e.def.LandD.CatalogURL, sess.destination, records); err != nil {
		return err
	}
	report.Batches++
	report.Published += len(records)
	e.metrics.RecordRecords(string(report.Mode), "published", len(records))
	e.logger.Info("Published %d catalog records", len(records))
	return nil
}

func (e *Engine) syncConsumption(ctx context.Context, sess *session, report *Report) error {
	start, err := e.checkpoint.Read()
	if err != nil {
		return err
	}
	endTime := e.now().Add(-e.def.Consumption.RetentionDelay)
	end := checkpoint.Format(endTime)
	report.WindowStart, report.WindowEnd = start, end

	if start != "" {
		startTime, err := checkpoint.Parse(start)
		if err != nil {
			return dserrors.ConfigError{
				Field:      "consumption.checkpoint_file",
				Value:      start,
				Message:    err.Error(),
				Suggestion: "Fix it with 'landdsync checkpoint set' or clear it with 'landdsync checkpoint reset'",
			}
		}
		if startTime.After(endTime) {
			e.logger.Warn("Window start %s is after window end %s, nothing to sync", start, end)
			return nil
		}
	}

	windowURL, err := source.WindowURL(e.def.EdX.ConsumptionURL, start, end)
	if err != nil {
		return err
	}

	e.transition(report, StateFetchingSource)
	e.logger.Info("Fetching course consumption from %q to %q", start, end)

	offset := 0
	for page, err := range e.fetcher.Pages(ctx, windowURL, sess.sourceHdr) {
		if err != nil {
			return err
		}
		report.Pages++
		e.metrics.RecordPages(string(report.Mode), 1)
		e.transition(report, StateMappingAndPublishing)

		records, stats, err := e.mapper.Consumption(page.Records)
		if err != nil {
			return offsetMappingError(err, offset)
		}
		offset += len(page.Records)
		report.Skipped += stats.Skipped
		report.Excluded += stats.Excluded
		e.metrics.RecordRecords(string(report.Mode), "skipped", stats.Skipped)
		e.metrics.RecordRecords(string(report.Mode), "excluded", stats.Excluded)

		if len(records) == 0 {
			e.logger.Debug("Page %d has nothing to publish", page.Index+1)
			continue
		}
		if _, err := e.publisher.Publish(ctx, e.def.LandD.ConsumptionURL, sess.destination, records); err != nil {
			return err
		}
		report.Batches++
		report.Published += len(records)
		e.metrics.RecordRecords(string(report.Mode), "published", len(records))
		e.logger.Info("Published page %d with %d consumption records", page.Index+1, len(records))
	}

	if err := e.checkpoint.Write(end); err != nil {
		return err
	}
	e.logger.Info("Checkpoint moved to %s", end)
	return nil
}

// offsetMappingError makes a page-relative record index run-relative.
func offsetMappingError(err error, offset int) error {
	var mappingErr dserrors.MappingError
	if errors.As(err, &mappingErr) {
		mappingErr.Index += offset
		return mappingErr
	}
	return err
}
