package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	vcli "github.com/hyperjump/vecsync/internal/cli"
	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/query"
	"github.com/hyperjump/vecsync/internal/trainer"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output format: text, compact, or json",
		Value:   "text",
	}
}

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "server",
		Usage: "server URL; empty uses the store directly",
	}
}

func trainCmd() *cli.Command {
	return &cli.Command{
		Name:      "train",
		Usage:     "Ingest sources and synchronize the collection",
		ArgsUsage: "<file|dir|glob>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "strategy",
				Aliases: []string{"s"},
				Usage:   "retrain_from_scratch, incremental_add, incremental_update, or process_only (default from config)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "items synchronized at once within an extension group (default from config)",
			},
			&cli.BoolFlag{
				Name:  "continue-on-error",
				Usage: "record failed items and keep going",
			},
			outputFlag(),
		},
		Action: trainAction,
	}
}

func trainAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("train: at least one source is required")
	}
	format, err := vcli.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	comps, err := openComponents(c, nil)
	if err != nil {
		return err
	}
	defer comps.Close()
	defer comps.Logger.Sync()

	cfg := comps.Config
	if c.IsSet("concurrency") {
		cfg.Training.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("continue-on-error") {
		cfg.Training.ContinueOnError = c.Bool("continue-on-error")
	}
	name := c.String("strategy")
	if name == "" {
		name = cfg.Training.Strategy
	}
	strategy, err := trainer.ParseStrategy(name)
	if err != nil {
		return err
	}
	sources, err := expandSources(c.Args().Slice(), cfg.Watch.Extensions)
	if err != nil {
		return err
	}
	t, err := comps.Trainer(strategy)
	if err != nil {
		return err
	}
	res, err := t.Train(c.Context, sources)
	if res != nil {
		if strategy == trainer.ProcessOnly {
			if werr := vcli.WriteItems(c.App.Writer, res.Items, format); werr != nil {
				return werr
			}
		} else if werr := vcli.WriteTrainResult(c.App.Writer, res, format); werr != nil {
			return werr
		}
	}
	return err
}

func searchCmd() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find the stored chunks most similar to a query",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "number of results",
				Value:   10,
			},
			serverFlag(),
			outputFlag(),
		},
		Action: searchAction,
	}
}

func searchAction(c *cli.Context) error {
	q := &models.SearchQuery{Query: strings.Join(c.Args().Slice(), " "), Limit: c.Int("limit")}
	if err := q.Validate(); err != nil {
		return err
	}
	format, err := vcli.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	if url := c.String("server"); url != "" {
		resp, err := searchViaHTTP(c.Context, url, q)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return vcli.WriteSearchResults(c.App.Writer, resp, format)
	}

	comps, err := openComponents(c, nil)
	if err != nil {
		return err
	}
	defer comps.Close()
	start := time.Now()
	vec, err := comps.Embedder.Embed(c.Context, q.Query)
	if err != nil {
		return &models.EmbeddingError{Source: "query", Err: err}
	}
	hits, err := comps.Store.Search(c.Context, vec, q.Limit)
	if err != nil {
		return &models.StoreError{Op: "search", Err: err}
	}
	return vcli.WriteSearchResults(c.App.Writer, toSearchResponse(q.Query, hits, time.Since(start)), format)
}

func toSearchResponse(q string, hits []vectorstore.Hit, took time.Duration) *models.SearchResponse {
	resp := &models.SearchResponse{Query: q, QueryTime: took.Milliseconds(), Total: len(hits)}
	for i, h := range hits {
		text, _ := h.Metadata[models.MetaText].(string)
		source, _ := h.Metadata[models.MetaSource].(string)
		resp.Results = append(resp.Results, &models.SearchResult{
			ID: h.ID, Score: h.Score, Text: text, Source: source, Metadata: h.Metadata, Rank: i + 1,
		})
	}
	return resp
}

func itemsCmd() *cli.Command {
	return &cli.Command{
		Name:  "items",
		Usage: "List stored items, optionally filtered by a metadata key",
		Description: "With --key and --value, items whose metadata equals the value are listed. " +
			"With --min and/or --max, items whose value lies in the inclusive range are listed. " +
			"Values are numbers, RFC3339 times, or strings.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "show one item"},
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "metadata key"},
			&cli.StringFlag{Name: "value", Usage: "exact value for --key"},
			&cli.StringFlag{Name: "min", Usage: "lower bound for --key (inclusive)"},
			&cli.StringFlag{Name: "max", Usage: "upper bound for --key (inclusive)"},
			outputFlag(),
		},
		Action: itemsAction,
	}
}

func itemsAction(c *cli.Context) error {
	format, err := vcli.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	ranged := c.IsSet("min") || c.IsSet("max")
	key := c.String("key")
	if key == "" && (ranged || c.IsSet("value")) {
		return models.NewConfigurationError("key", "required with --value, --min, or --max")
	}
	comps, err := openComponents(c, nil)
	if err != nil {
		return err
	}
	defer comps.Close()

	scanner := query.NewScanner(comps.Store)
	var recs []vectorstore.Record
	switch {
	case c.IsSet("id"):
		rec, err := scanner.GetOne(c.Context, c.String("id"))
		if err != nil {
			return err
		}
		recs = []vectorstore.Record{*rec}
	case ranged:
		recs, err = scanner.ScanByRange(c.Context, key, query.ParseValue(c.String("min")), query.ParseValue(c.String("max")))
	case key != "":
		recs, err = scanner.ScanByFilter(c.Context, key, query.ParseValue(c.String("value")))
	default:
		recs, err = scanner.ScanAll(c.Context)
	}
	if err != nil {
		return err
	}
	return vcli.WriteRecords(c.App.Writer, recs, format)
}

func deleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete items by id, or every item of a source",
		ArgsUsage: "[id]...",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "source", Usage: "delete every item from this source file"},
		},
		Action: deleteAction,
	}
}

func deleteAction(c *cli.Context) error {
	ids := c.Args().Slice()
	sources := c.StringSlice("source")
	if len(ids) == 0 && len(sources) == 0 {
		return fmt.Errorf("delete: give item ids or --source")
	}
	comps, err := openComponents(c, nil)
	if err != nil {
		return err
	}
	defer comps.Close()

	scanner := query.NewScanner(comps.Store)
	for _, src := range sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return err
		}
		found, err := scanner.ScanIDs(c.Context, models.MetaSource, abs)
		if err != nil {
			return err
		}
		ids = append(ids, found...)
	}
	if len(ids) == 0 {
		fmt.Fprintln(c.App.Writer, "Nothing to delete")
		return nil
	}
	if err := comps.Store.Delete(c.Context, ids...); err != nil {
		return &models.StoreError{Op: "delete", Err: err}
	}
	fmt.Fprintf(c.App.Writer, "Deleted %d item(s)\n", len(ids))
	return nil
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show collection size, backend, and disk usage",
		Flags:  []cli.Flag{serverFlag(), outputFlag()},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	format, err := vcli.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	if url := c.String("server"); url != "" {
		st, err := statusViaHTTP(c.Context, url)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		return vcli.WriteStatus(c.App.Writer, st, format)
	}
	comps, err := openComponents(c, nil)
	if err != nil {
		return err
	}
	defer comps.Close()
	st, err := collectStatus(c.Context, comps)
	if err != nil {
		return err
	}
	return vcli.WriteStatus(c.App.Writer, st, format)
}

func collectStatus(ctx context.Context, comps *Components) (*models.Status, error) {
	n, err := comps.Store.Count(ctx)
	if err != nil {
		return nil, &models.StoreError{Op: "count", Err: err}
	}
	cfg := comps.Config
	st := &models.Status{
		Items:       n,
		Collection:  cfg.Storage.Collection,
		Backend:     cfg.Storage.Backend,
		Strategy:    cfg.Training.Strategy,
		Provider:    cfg.Embedding.Provider,
		Dimensions:  comps.Embedder.Dimensions(),
		StoragePath: cfg.Storage.Path,
	}
	if paths := cfg.StoreConfig(nil).StoragePaths(); len(paths) > 0 {
		if bytes, err := vectorstore.DiskUsageBytes(paths...); err == nil {
			st.DiskUsageBytes = &bytes
		} else {
			comps.Logger.Debug("disk usage unavailable", zap.Error(err))
		}
	}
	return st, nil
}
