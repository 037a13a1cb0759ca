// Package report renders a human-readable inspection report of a SQLite
// database holding container state snapshots and interaction logs.
//
// Every section is evaluated independently. A section that fails is rendered
// with an inline "Error ..." line and the remaining sections still run; only a
// missing database file aborts a run.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/kalambet/dbcheck/internal/storage"
)

// Source is the read-only data access the generator needs.
// *storage.Store satisfies it.
type Source interface {
	TableExists(ctx context.Context, name string) (bool, error)
	ListTables(ctx context.Context) ([]string, error)
	TableColumns(ctx context.Context, table string) ([]storage.Column, error)

	ContainerStates(ctx context.Context) ([]storage.ContainerState, error)
	StatePreview(ctx context.Context, n int) ([]byte, bool, error)

	CountInteractions(ctx context.Context) (int64, error)
	TopInteractionTypes(ctx context.Context, limit int) ([]storage.TypeCount, error)
	InteractionsByUserAndType(ctx context.Context) ([]storage.UserTypeCount, error)
	RecentInteractions(ctx context.Context, limit int) ([]storage.Interaction, error)
}

// Generator produces the report text for one data source.
type Generator struct {
	Target  string // shown in the header
	Options Options
	Logger  *slog.Logger
}

// NewGenerator returns a Generator with default limits filled in.
func NewGenerator(target string, opts Options) *Generator {
	return &Generator{Target: target, Options: opts.withDefaults(), Logger: slog.Default()}
}

// Sections evaluates every section in report order.
func (g *Generator) Sections(ctx context.Context, src Source) []SectionResult {
	opts := g.Options.withDefaults()
	log := g.Logger
	if log == nil {
		log = slog.Default()
	}

	builders := []struct {
		title string
		rule  int
		build func(*SectionResult)
	}{
		{"1. Container States Table:", 30, func(r *SectionResult) { containerStatesSection(ctx, src, opts, r) }},
		{"2. Interaction Data Table:", 30, func(r *SectionResult) { interactionDataSection(ctx, src, opts, r) }},
		{"3. Table Schemas:", 20, func(r *SectionResult) { schemaSection(ctx, src, r) }},
	}

	results := make([]SectionResult, 0, len(builders))
	for _, b := range builders {
		start := time.Now()
		res := newSection(b.title, b.rule)
		isolate(&res, b.build)
		if res.Degraded() {
			log.Warn("section degraded", "section", res.Title, "error", res.Err)
		} else {
			log.Debug("section done", "section", res.Title, "duration_ms", time.Since(start).Milliseconds())
		}
		results = append(results, res)
	}
	return results
}

// isolate runs build on res and turns a panic into a degraded section,
// keeping the lines produced so far.
func isolate(res *SectionResult, build func(*SectionResult)) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			res.add("  Error: %v", res.Err)
		}
	}()
	build(res)
}

// Generate renders the full report. It never fails: section errors are
// rendered inline.
func (g *Generator) Generate(ctx context.Context, src Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checking database: %s\n", g.Target)
	b.WriteString(strings.Repeat("=", 50))
	b.WriteByte('\n')

	for _, res := range g.Sections(ctx, src) {
		res.render(&b)
	}

	b.WriteString("\nDatabase check complete!\n")
	return b.String()
}

// Run opens the database at path read-only, generates the report and closes
// the handle again. A missing file returns an error wrapping
// storage.ErrNotFound before any section runs.
func Run(ctx context.Context, path string, opts Options) (string, error) {
	log := slog.With("run_id", uuid.NewString(), "database", path)

	store, err := storage.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("closing database", "error", err)
		}
	}()

	target := store.Path()
	if info, err := os.Stat(target); err == nil {
		target = fmt.Sprintf("%s (%s)", target, humanize.Bytes(uint64(info.Size())))
	}

	start := time.Now()
	g := NewGenerator(target, opts)
	g.Logger = log
	text := g.Generate(ctx, store)
	log.Info("report generated", "duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// TableSchema is one entry of the schema dump.
type TableSchema struct {
	Name    string           `json:"name"`
	Columns []storage.Column `json:"columns"`
}

// Describe returns the column layout of every table at path. Unlike the text
// report it fails as a whole on the first catalog error.
func Describe(ctx context.Context, path string) ([]TableSchema, error) {
	store, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return describe(ctx, store)
}

func describe(ctx context.Context, src Source) ([]TableSchema, error) {
	tables, err := src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	schemas := make([]TableSchema, 0, len(tables))
	for _, table := range tables {
		cols, err := src.TableColumns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("reading columns of %s: %w", table, err)
		}
		if cols == nil {
			cols = []storage.Column{}
		}
		schemas = append(schemas, TableSchema{Name: table, Columns: cols})
	}
	return schemas, nil
}
