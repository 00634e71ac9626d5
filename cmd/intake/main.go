// Command intake drives one document workspace from the terminal.
//
// Usage:
//
//	intake -file lease.pdf                      # upload, classify, analyze
//	intake -file coi.pdf -state CA -tab letter  # print the negotiation letter
//	intake -text "..." -email me@example.com    # join the waitlist if unsupported
//	intake -login me@example.com                # log in (password from INTAKE_PASSWORD)
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/boddenberg/doc-intake-bfa-go/internal/config"
	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/client"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/offers"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/tokenstore"
	"github.com/boddenberg/doc-intake-bfa-go/internal/service"

	"go.uber.org/zap"
)

// cliWorkspace namespaces the stored login so it survives between runs.
const cliWorkspace = "cli"

type flags struct {
	file        string
	text        string
	state       string
	projectType string
	leaseType   string
	tab         string
	email       string
	login       string
	logout      bool
	accept      bool
}

func main() {
	var f flags
	flag.StringVar(&f.file, "file", "", "document to upload (PDF, image or text)")
	flag.StringVar(&f.text, "text", "", "document text, instead of -file")
	flag.StringVar(&f.state, "state", "", "two-letter state code")
	flag.StringVar(&f.projectType, "project-type", "", "COI project type preset")
	flag.StringVar(&f.leaseType, "lease-type", "", "lease type (commercial or residential)")
	flag.StringVar(&f.tab, "tab", "report", "what to print: report or letter")
	flag.StringVar(&f.email, "email", "", "waitlist email for unsupported documents")
	flag.StringVar(&f.login, "login", "", "log in as this email (password from INTAKE_PASSWORD)")
	flag.BoolVar(&f.logout, "logout", false, "log out and exit")
	flag.BoolVar(&f.accept, "accept-disclaimer", false, "accept the disclaimer without prompting")
	flag.Parse()

	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, f, logger); err != nil {
		fmt.Fprintln(os.Stderr, "intake:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, f flags, logger *zap.Logger) error {
	tab, err := domain.ParseTab(f.tab)
	if err != nil {
		return err
	}

	ws, cleanup, err := openWorkspace(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	session := ws.Session()
	switch {
	case f.logout:
		session.Logout(ctx)
		fmt.Println("logged out")
		return nil
	case f.login != "":
		err := session.Login(ctx, domain.Credentials{Email: f.login, Password: os.Getenv("INTAKE_PASSWORD")})
		if err != nil {
			return fmt.Errorf("login: %s", session.Snapshot().AuthError)
		}
		fmt.Printf("logged in as %s (%d credits)\n", f.login, session.Snapshot().Credits)
		if f.file == "" && f.text == "" {
			return nil
		}
	}

	ws.SetOptions(domain.AnalysisOptions{
		ProjectType: f.projectType,
		State:       optional(f.state),
		LeaseType:   f.leaseType,
	})

	if err := load(ctx, ws, f); err != nil {
		printNotices(ws)
		return err
	}

	outcome, err := ws.Analyze(ctx)
	if err != nil {
		printNotices(ws)
		return err
	}

	switch outcome {
	case service.OutcomeUnsupported:
		return waitlist(ctx, ws, f.email)
	case service.OutcomeNeedsDisclaimer:
		if err := confirmDisclaimer(ctx, ws, f.accept); err != nil {
			printNotices(ws)
			return err
		}
	}

	printNotices(ws)
	return printActive(ws, tab)
}

func openWorkspace(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*service.Workspace, func(), error) {
	metrics := observability.NewMetrics()
	cb := resilience.NewCircuitBreaker("analyzer-api", resilience.WithSuccessCheck(client.BreakerSuccess))
	backend := client.NewBackendClient(
		&http.Client{Timeout: cfg.AnalyzeTimeout},
		cfg.AnalyzerAPIURL,
		cb,
		resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff},
		metrics,
	)

	db, err := tokenstore.Open(cfg.TokenDBPath)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := tokenstore.New(db, cfg.TokenStoreKey)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := tokens.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	catalog, err := offers.Load(cfg.OffersFile)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	ws := service.NewWorkspace(cliWorkspace, service.Dependencies{
		OCR:        backend,
		Classifier: backend,
		Waitlist:   backend,
		Analyzer:   backend,
		Auth:       backend,
		Unlocker:   backend,
		Tokens:     tokens,
		Offers:     catalog,
		Metrics:    metrics,
		Logger:     logger,
	}, service.Options{
		MaxPDFPages:                 cfg.MaxPDFPages,
		EditInvalidatesReports:      cfg.EditInvalidatesReports,
		DisclaimerResetsOnFullReset: cfg.DisclaimerResetsOnFullReset,
		AffiliateInterval:           cfg.AffiliateInterval,
		AnalyzeTimeout:              cfg.AnalyzeTimeout,
		DefaultProjectType:          cfg.DefaultProjectType,
	})
	if err := ws.Mount(ctx); err != nil {
		ws.Close()
		db.Close()
		return nil, nil, err
	}

	return ws, func() {
		ws.Close()
		db.Close()
	}, nil
}

// load puts the document into the workspace, either from -file or -text.
func load(ctx context.Context, ws *service.Workspace, f flags) error {
	if f.file == "" {
		if strings.TrimSpace(f.text) == "" {
			return errors.New("nothing to analyze: pass -file or -text")
		}
		ws.Upload().EditText(f.text)
		return nil
	}

	data, err := os.ReadFile(f.file)
	if err != nil {
		return err
	}
	return ws.Upload().Drop(ctx, []domain.FileUpload{{Name: filepath.Base(f.file), Data: data}})
}

func confirmDisclaimer(ctx context.Context, ws *service.Workspace, accept bool) error {
	gate := ws.Disclaimer()
	if accept {
		gate.SetInput(service.DisclaimerPhrase)
	} else {
		fmt.Fprintf(os.Stderr, "This is not legal advice. Type %q to continue: ", service.DisclaimerPhrase)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		gate.SetInput(strings.TrimRight(line, "\r\n"))
	}

	if !gate.CanConfirm() {
		gate.Cancel()
		return errors.New("disclaimer not accepted")
	}
	_, err := ws.ConfirmDisclaimer(ctx)
	return err
}

func waitlist(ctx context.Context, ws *service.Workspace, email string) error {
	flow := ws.Upload().Snapshot().Unsupported
	fmt.Printf("%s documents are not supported yet.\n", flow.DisplayName)
	if email == "" {
		fmt.Println("Pass -email to be notified when they are.")
		return nil
	}
	if err := ws.Upload().SetWaitlistEmail(email); err != nil {
		return err
	}
	if err := ws.Upload().SubmitWaitlist(ctx); err != nil {
		return err
	}
	fmt.Printf("%s added to the waitlist.\n", email)
	return nil
}

func printActive(ws *service.Workspace, tab domain.Tab) error {
	v := ws.View()
	if v.Active == nil || v.Active.Report == nil {
		return errors.New("no report was produced")
	}

	if tab == domain.TabLetter {
		if v.Active.Letter == "" {
			return fmt.Errorf("%s reports have no letter", v.Active.DisplayName)
		}
		fmt.Println(v.Active.Letter)
		return nil
	}

	risk := v.Active.Report.Risk()
	fmt.Printf("%s: %s", v.Active.DisplayName, risk.Level)
	if risk.Score != nil {
		fmt.Printf(" (%d/100)", *risk.Score)
	}
	fmt.Println()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v.Active.Report)
}

func printNotices(ws *service.Workspace) {
	for _, n := range ws.DrainNotices() {
		fmt.Fprintln(os.Stderr, "!", n)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
