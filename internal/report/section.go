package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/dbcheck/internal/storage"
)

// SectionResult is the outcome of one report section. A non-nil Err marks the
// section as degraded: Lines holds whatever was produced before the failure.
type SectionResult struct {
	Title string
	Rule  string
	Lines []string
	Err   error
}

func (r SectionResult) Degraded() bool {
	return r.Err != nil
}

func (r *SectionResult) add(format string, args ...any) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}

func (r SectionResult) render(b *strings.Builder) {
	fmt.Fprintf(b, "\n%s\n%s\n", r.Title, r.Rule)
	for _, line := range r.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

const recentTimeLayout = "2006-01-02 15:04:05"

func newSection(title string, ruleWidth int) SectionResult {
	return SectionResult{Title: title, Rule: strings.Repeat("-", ruleWidth)}
}

func (r *SectionResult) fail(table string, err error) {
	r.Err = err
	r.add("  Error checking %s: %v", table, err)
}

func containerStatesSection(ctx context.Context, src Source, opts Options, res *SectionResult) {
	fail := func(err error) { res.fail(storage.TableContainerStates, err) }

	exists, err := src.TableExists(ctx, storage.TableContainerStates)
	if err != nil {
		fail(err)
		return
	}
	if !exists {
		res.add("  Table '%s' not found", storage.TableContainerStates)
		return
	}

	states, err := src.ContainerStates(ctx)
	if err != nil {
		fail(err)
		return
	}
	if len(states) == 0 {
		res.add("  No container states found")
		return
	}

	for _, st := range states {
		res.add("  User: %s", st.UserID)
		res.add("  State Data Size: %d bytes", st.DataSize)
		res.add("  Version: %d", st.Version)
		if opts.StateTimestamps {
			if st.HasCreatedAt {
				res.add("  Created: %s", st.CreatedAt)
			}
			if st.HasUpdatedAt {
				res.add("  Updated: %s", st.UpdatedAt)
			}
		}
	}

	if opts.StatePreview {
		data, ok, err := src.StatePreview(ctx, opts.PreviewBytes)
		if err != nil {
			fail(err)
			return
		}
		if ok {
			res.add("  State data preview (first %d bytes): %s", opts.PreviewBytes, formatPreview(data))
		}
	}
}

func formatPreview(data []byte) string {
	if len(data) == 0 {
		return "None"
	}
	return fmt.Sprintf("% x", data)
}

func interactionDataSection(ctx context.Context, src Source, opts Options, res *SectionResult) {
	fail := func(err error) { res.fail(storage.TableInteractionData, err) }

	exists, err := src.TableExists(ctx, storage.TableInteractionData)
	if err != nil {
		fail(err)
		return
	}
	if !exists {
		res.add("  Table '%s' not found", storage.TableInteractionData)
		return
	}

	count, err := src.CountInteractions(ctx)
	if err != nil {
		fail(err)
		return
	}
	res.add("  Total interactions: %d", count)
	if count == 0 {
		res.add("  No interaction data found")
		return
	}

	if opts.TopTypes {
		types, err := src.TopInteractionTypes(ctx, opts.TopTypesLimit)
		if err != nil {
			fail(err)
			return
		}
		if len(types) > 0 {
			res.add("  Interaction types:")
			for _, tc := range types {
				res.add("    %s: %d occurrences", tc.Type, tc.Count)
			}
		}
	}

	if opts.UserTypes {
		pairs, err := src.InteractionsByUserAndType(ctx)
		if err != nil {
			fail(err)
			return
		}
		if len(pairs) > 0 {
			res.add("  Interactions by user and type:")
			for _, uc := range pairs {
				res.add("    User: %s, Type: %s, Count: %d", uc.UserID, uc.Type, uc.Count)
			}
		}
	}

	recent, err := src.RecentInteractions(ctx, opts.RecentLimit)
	if err != nil {
		fail(err)
		return
	}
	if len(recent) > 0 {
		res.add("  Most recent interactions:")
		for _, ix := range recent {
			line := fmt.Sprintf("    %s: %s (user: %s)", ix.Time().Format(recentTimeLayout), ix.Type, ix.UserID)
			if opts.RecentDetails && ix.Details != "" {
				line += ", details: " + ix.Details
			}
			res.Lines = append(res.Lines, line)
		}
	}
}

func schemaSection(ctx context.Context, src Source, res *SectionResult) {
	tables, err := src.ListTables(ctx)
	if err != nil {
		res.Err = err
		res.add("  Error checking schemas: %v", err)
		return
	}
	if len(tables) == 0 {
		res.add("  No tables found")
		return
	}

	res.add("  Tables: %s", strings.Join(tables, ", "))
	for _, table := range tables {
		res.add("")
		res.add("  Table: %s", table)
		cols, err := src.TableColumns(ctx, table)
		if err != nil {
			// A broken table does not hide the remaining ones.
			res.Err = err
			res.add("    Error reading columns: %v", err)
			continue
		}
		for _, c := range cols {
			res.add("    %s (%s)", c.Name, c.Type)
		}
	}
}
