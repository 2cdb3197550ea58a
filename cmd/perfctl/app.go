package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/backend"
	"github.com/noah-isme/dealer-insights/internal/export"
	"github.com/noah-isme/dealer-insights/internal/obs"
	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/period"
	"github.com/noah-isme/dealer-insights/internal/report"
	"github.com/noah-isme/dealer-insights/internal/stock"
)

type envKey struct{}

// env is the per-invocation wiring shared by every command.
type env struct {
	creds   auth.Credentials
	client  *backend.Client
	reports *performance.Service
	loc     *time.Location
	display *report.Display
	logger  zerolog.Logger
}

func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "scope", Usage: "brands or models", Value: "brands"},
		&cli.StringFlag{Name: "period", Usage: "week, month, quarter, year, lifetime or custom", EnvVars: []string{"REPORT_DEFAULT_PERIOD"}},
		&cli.StringFlag{Name: "start", Usage: "custom range start (YYYY-MM-DD or RFC 3339)"},
		&cli.StringFlag{Name: "end", Usage: "custom range end (YYYY-MM-DD or RFC 3339)"},
		&cli.StringFlag{Name: "sort", Usage: "amount, quantity or none (defaults per scope)"},
		&cli.StringFlag{Name: "dealer", Usage: "dealer id override (admin tokens only)"},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "format", Usage: "xlsx, pdf or all", Value: "all"},
		&cli.StringFlag{Name: "out", Usage: "output directory", Value: "."},
	}
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:   "perfctl",
		Usage:  "Dealer performance reports and exports",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend-url", Usage: "dealer backend base url", Required: true, EnvVars: []string{"BACKEND_BASE_URL"}},
			&cli.StringFlag{Name: "token", Usage: "dealer bearer token", Required: true, EnvVars: []string{"DEALER_TOKEN"}},
			&cli.StringFlag{Name: "jwt-secret", Usage: "verify the token signature with this secret", EnvVars: []string{"JWT_SECRET"}},
			&cli.StringFlag{Name: "timezone", Usage: "IANA zone periods are resolved in", Value: "Asia/Kolkata", EnvVars: []string{"REPORT_TIMEZONE"}},
			&cli.StringFlag{Name: "currency", Value: "₹", EnvVars: []string{"CURRENCY_SYMBOL"}},
			&cli.StringFlag{Name: "locale", Value: "en-IN", EnvVars: []string{"DISPLAY_LOCALE"}},
			&cli.DurationFlag{Name: "timeout", Usage: "per-request backend timeout", Value: 10 * time.Second},
			&cli.StringFlag{Name: "log-level", Value: "warn", EnvVars: []string{"OBS_LOG_LEVEL"}},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "report",
				Usage:  "Print a ranked performance report",
				Flags:  append(selectionFlags(), &cli.BoolFlag{Name: "json", Usage: "print the rendered view as JSON"}),
				Action: runReport,
			},
			{
				Name:   "export",
				Usage:  "Write a performance report as xlsx and/or pdf",
				Flags:  append(selectionFlags(), outputFlags()...),
				Action: runExport,
			},
			{
				Name:  "stock",
				Usage: "Write the stock history as xlsx and/or pdf",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "brand", Usage: "brand id filter"},
					&cli.StringFlag{Name: "model", Usage: "model id filter"},
					&cli.StringFlag{Name: "start", Usage: "history range start"},
					&cli.StringFlag{Name: "end", Usage: "history range end"},
				}, outputFlags()...),
				Action: runStock,
			},
		},
	}
}

func setup(c *cli.Context) error {
	logger := obs.NewLogger("console", c.String("log-level")).With().Str("cmd", "perfctl").Logger()

	loc, err := time.LoadLocation(c.String("timezone"))
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	creds, err := auth.NewParser(auth.Config{Secret: c.String("jwt-secret")}).Parse(c.String("token"))
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	client, err := backend.New(backend.Config{
		BaseURL:     c.String("backend-url"),
		Timeout:     c.Duration("timeout"),
		MaxAttempts: 3,
		RetryBase:   200 * time.Millisecond,
		RetryJitter: 0.2,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	e := &env{
		creds:  creds,
		client: client,
		reports: performance.NewService(performance.ServiceConfig{
			Backend:  client,
			Location: loc,
			Logger:   logger,
		}),
		loc:     loc,
		display: report.NewDisplay(c.String("currency"), c.String("locale")),
		logger:  logger,
	}
	c.Context = context.WithValue(logger.WithContext(c.Context), envKey{}, e)
	return nil
}

func envFrom(c *cli.Context) *env {
	return c.Context.Value(envKey{}).(*env)
}

func fetchReport(c *cli.Context) (*performance.Report, error) {
	e := envFrom(c)
	scope, err := performance.ParseScope(c.String("scope"))
	if err != nil {
		return nil, err
	}
	sel, err := period.ParseSelection(c.String("period"), c.String("start"), c.String("end"), period.DefaultKind, e.loc)
	if err != nil {
		return nil, err
	}
	sortKey, err := performance.ParseSortKey(c.String("sort"))
	if err != nil {
		return nil, err
	}
	return e.reports.FetchReport(c.Context, e.creds, performance.Request{
		Scope:     scope,
		DealerID:  e.creds.ForDealer(c.String("dealer")),
		Selection: sel,
		Sort:      sortKey,
	})
}

func runReport(c *cli.Context) error {
	rep, err := fetchReport(c)
	if err != nil {
		return err
	}
	view := report.Render(rep, envFrom(c).display)
	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	fmt.Fprintf(out, "%s: %s\n", report.Title(rep.Scope), view.Label)
	if view.Empty {
		fmt.Fprintln(out, "No data for this period.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(view.Table.Columns, "\t")+"\t")
	for i, row := range view.Table.Rows {
		bar := strings.Repeat("#", int(view.Bars[i].WidthPercent/5))
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t"+bar)
	}
	return tw.Flush()
}

func runExport(c *cli.Context) error {
	rep, err := fetchReport(c)
	if err != nil {
		return err
	}
	if rep.Empty() {
		envFrom(c).logger.Warn().Str("period", rep.Interval.Label()).Msg("report is empty; exporting headers only")
	}
	return writeFiles(c, report.FileBase, report.BuildTable(rep))
}

func runStock(c *cli.Context) error {
	e := envFrom(c)
	filter := stock.Filter{BrandID: c.String("brand"), ModelID: c.String("model")}
	if c.String("start") != "" && c.String("end") != "" {
		sel, err := period.ParseSelection(string(period.Custom), c.String("start"), c.String("end"), period.DefaultKind, e.loc)
		if err != nil {
			return err
		}
		filter.Start, filter.End = sel.Start, sel.End
	}
	items, err := stock.NewService(e.client, e.logger).History(c.Context, e.creds, filter)
	if err != nil {
		return err
	}
	return writeFiles(c, stock.FileBase, stock.BuildTable(items))
}

// writeFiles renders every requested format concurrently into --out.
func writeFiles(c *cli.Context, base string, t export.Table) error {
	formats, err := parseFormats(c.String("format"))
	if err != nil {
		return err
	}
	dir := c.String("out")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	paths := make([]string, len(formats))
	var g errgroup.Group
	for i, f := range formats {
		g.Go(func() error {
			body, err := export.Bytes(f, t)
			if err != nil {
				return err
			}
			paths[i] = filepath.Join(dir, export.Filename(base, f))
			return os.WriteFile(paths[i], body, 0o644)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(c.App.Writer, p)
	}
	return nil
}

func parseFormats(raw string) ([]export.Format, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "all") {
		return []export.Format{export.Spreadsheet, export.PDF}, nil
	}
	f, err := export.ParseFormat(raw)
	if err != nil {
		return nil, err
	}
	return []export.Format{f}, nil
}
