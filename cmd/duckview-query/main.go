// duckview-query loads one dataset into an engine session and runs SQL
// against it, either once or from an interactive shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/peterh/liner"

	"github.com/seantiz/duckview/internal/bundle/builtin"
	"github.com/seantiz/duckview/internal/config"
	"github.com/seantiz/duckview/internal/dataset"
	"github.com/seantiz/duckview/internal/engine"
	"github.com/seantiz/duckview/internal/render"
)

type options struct {
	Dataset  string        `short:"d" long:"dataset" env:"DUCKVIEW_DATASET" description:"dataset url (http, https, s3, file or path)" required:"true"`
	Select   string        `short:"s" long:"select" description:"dotted path selecting the rows inside a json document"`
	Format   string        `long:"format" description:"dataset format" choice:"json" choice:"csv" default:"json"`
	File     string        `short:"f" long:"file" description:"logical file name queries refer to (default res.json or data.csv)"`
	Bundles  []string      `short:"b" long:"bundle" env:"DUCKVIEW_BUNDLES" env-delim:"," description:"engine bundles in preference order"`
	Query    string        `short:"q" long:"query" description:"query to run (default: all rows of the dataset)"`
	Output   string        `short:"o" long:"output" description:"output format" choice:"text" choice:"csv" choice:"json" choice:"jsonl" default:"text"`
	Timeout  time.Duration `long:"timeout" env:"DUCKVIEW_QUERY_TIMEOUT" description:"per query timeout" default:"30s"`
	Shell    bool          `long:"shell" description:"start an interactive shell"`
	History  string        `long:"history" description:"shell history file" default:"~/.duckview_history"`
	S3Region string        `long:"s3-region" env:"DUCKVIEW_S3_REGION" description:"region for s3:// datasets"`
	S3URL    string        `long:"s3-endpoint" env:"DUCKVIEW_S3_ENDPOINT" description:"custom s3 endpoint"`
	Dbg      bool          `long:"dbg" description:"debug logging"`
}

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		os.Exit(1)
	}

	level := slog.LevelWarn
	if opts.Dbg {
		level = slog.LevelDebug
	}
	logger := config.NewLogger(os.Stderr, level)

	if err := run(opts, logger, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "failed, %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fileName := opts.File
	if fileName == "" {
		fileName = engine.DefaultFileName
		if opts.Format == dataset.FormatCSV {
			fileName = "data.csv"
		}
	}

	sessOpts := engine.Options{
		Registry:   builtin.Registry(),
		Bundles:    opts.Bundles,
		DatasetURL: opts.Dataset,
		Format:     opts.Format,
		FileName:   fileName,
		Fetcher: dataset.NewFetcher(dataset.FetcherConfig{
			S3: dataset.S3Config{Endpoint: opts.S3URL, Region: opts.S3Region},
		}),
		QueryTimeout: opts.Timeout,
		Logger:       logger,
	}
	if opts.Select != "" {
		sessOpts.Preprocessor = dataset.SelectPath(opts.Select)
	}

	sess, err := engine.Initialize(ctx, sessOpts)
	if err != nil {
		return fmt.Errorf("can't initialize engine: %w", err)
	}
	defer sess.Close()

	if opts.Shell {
		return shell(ctx, sess, opts, out)
	}

	query := opts.Query
	if query == "" {
		query = fmt.Sprintf("SELECT * FROM '%s'", strings.ReplaceAll(fileName, "'", "''"))
	}
	res, err := sess.ExecuteQuery(ctx, query)
	if err != nil {
		return fmt.Errorf("query error: %w", err)
	}
	return render.WriteResult(out, opts.Output, res)
}

// shell reads statements until EOF. Each line is one statement; a failing
// statement is reported and the shell keeps going.
func shell(ctx context.Context, sess *engine.Session, opts options, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := expandHome(opts.History)
	if f, err := os.Open(histPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	info := sess.Info()
	fmt.Fprintf(out, "duckview: %s on %s as '%s'. End with Ctrl-D.\n", info.DatasetURL, info.Bundle, info.FileName)

	for {
		input, err := line.Prompt("duckview> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		stmt := strings.TrimSpace(input)
		if stmt == "" {
			continue
		}
		line.AppendHistory(stmt)

		if err := statement(ctx, sess, stmt, opts.Output, out); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// statement runs one shell statement. A query error is printed rather than
// returned; only output failures end the shell.
func statement(ctx context.Context, sess *engine.Session, stmt, format string, out io.Writer) error {
	res, err := sess.ExecuteQuery(ctx, strings.TrimSuffix(stmt, ";"))
	if err != nil {
		fmt.Fprintf(out, "Query error: %v\n", err)
		return nil
	}
	if err := render.WriteResult(out, format, res); err != nil {
		return err
	}
	fmt.Fprintf(out, "(%d rows, %s)\n", len(res.Rows), res.Duration.Round(time.Millisecond))
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
