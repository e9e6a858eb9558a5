package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/crm"
	"github.com/sells-group/leadscore/internal/enrich"
	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/internal/source"
	"github.com/sells-group/leadscore/internal/store"
	"github.com/sells-group/leadscore/internal/webtech"
	"github.com/sells-group/leadscore/pkg/companydata"
	"github.com/sells-group/leadscore/pkg/places"
	"github.com/sells-group/leadscore/pkg/salesforce"
)

// pipelineEnv holds the wired pipeline and the resources it owns.
type pipelineEnv struct {
	Store        store.Store
	Breakers     *resilience.SourceBreakers
	Browser      *webtech.Browser
	Writer       *crm.Writer
	Orchestrator *enrich.Orchestrator
}

// Close releases the browser and the store connections.
func (e *pipelineEnv) Close() {
	if e.Browser != nil {
		e.Browser.Shutdown()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadscore.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline wires the three source adapters, the CRM writer, and the
// orchestrator from the loaded config.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	breakers := resilience.NewSourceBreakers(resilience.DefaultCircuitBreakerConfig())
	sourceTimeout := time.Duration(cfg.Enrich.SourceTimeoutSecs) * time.Second

	var placesOpts []places.Option
	if cfg.Places.BaseURL != "" {
		placesOpts = append(placesOpts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	placesSource := source.NewPlacesSource(
		places.NewClient(cfg.Places.Key, placesOpts...), breakers, sourceTimeout)

	var companyOpts []companydata.Option
	if cfg.CompanyData.BaseURL != "" {
		companyOpts = append(companyOpts, companydata.WithBaseURL(cfg.CompanyData.BaseURL))
	}
	companySource := source.NewCompanySource(
		companydata.NewClient(cfg.CompanyData.Key, companyOpts...), breakers, sourceTimeout)

	browser := webtech.NewBrowser(time.Duration(cfg.WebTech.PageTimeoutSecs) * time.Second)
	detector, err := webtech.NewDetector(browser)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	webtechSource := source.NewWebTechSource(detector, breakers, sourceTimeout)

	sfClient := salesforce.NewClient(salesforce.Config{
		LoginURL:      cfg.Salesforce.LoginURL,
		Username:      cfg.Salesforce.Username,
		Password:      cfg.Salesforce.Password,
		SecurityToken: cfg.Salesforce.SecurityToken,
		ClientID:      cfg.Salesforce.ClientID,
		ClientSecret:  cfg.Salesforce.ClientSecret,
	}, salesforce.WithRateLimit(cfg.Salesforce.RateLimitPerSec))
	writer := crm.NewWriter(sfClient, st)

	orchestrator := enrich.NewOrchestrator(
		placesSource, companySource, webtechSource, writer, st,
		enrich.WithRequestTimeout(time.Duration(cfg.Enrich.RequestTimeoutSecs)*time.Second),
	)

	return &pipelineEnv{
		Store:        st,
		Breakers:     breakers,
		Browser:      browser,
		Writer:       writer,
		Orchestrator: orchestrator,
	}, nil
}
