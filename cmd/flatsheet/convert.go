package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/JonMunkholm/flatsheet/internal/config"
	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/JonMunkholm/flatsheet/internal/export"
	"github.com/JonMunkholm/flatsheet/internal/logging"
)

// sniffLength is how many leading bytes declaredType inspects.
const sniffLength = 3072

type convertOptions struct {
	input    string
	format   string
	out      string
	sheet    string
	maxDepth int
}

type inspectOptions struct {
	input string
	json  bool
}

// pipeline loads the configuration and creates a single-session service
// logging to stderr at warn level.
func pipeline(sheet string, maxDepth int, stderr io.Writer) (*core.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if sheet == "" {
		sheet = cfg.Export.SheetName
	}
	sc := cfg.ServiceConfig()
	sc.MaxSessions = 1
	if maxDepth > 0 {
		sc.MaxDepth = maxDepth
	}

	logger := logging.New(stderr, "warn", cfg.Logging.Format)
	return core.NewService(sc, core.Serializers{
		Workbook: export.NewWorkbook(sheet),
		CSV:      export.NewCSV(),
	}, core.WithLogger(logger)), nil
}

// load runs path through a fresh session and returns the session ID.
func load(ctx context.Context, svc *core.Service, path string) (string, core.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", core.State{}, err
	}
	defer f.Close()

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	declared, body := declaredType(path, f)
	id := svc.NewSession()
	st, err := svc.Upload(ctx, id, core.FileInput{
		Name:         filepath.Base(path),
		DeclaredMIME: declared,
		Size:         size,
		Body:         body,
	})
	if err != nil {
		return "", st, fmt.Errorf("%s: %s", core.FormatUserError(err), err)
	}
	return id, st, nil
}

// declaredType returns the media type to declare for path. Files whose
// extension maps to neither JSON nor plain text are sniffed, so a JSON export
// named data.out still converts. The returned reader replays the sniffed head.
func declaredType(path string, r io.Reader) (string, io.Reader) {
	declared := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if _, err := core.DetectType(declared); err == nil {
		return declared, r
	}

	br := bufio.NewReaderSize(r, sniffLength)
	head, _ := br.Peek(sniffLength)
	for m := mimetype.Detect(head); m != nil; m = m.Parent() {
		switch {
		case m.Is(core.MIMEJSON):
			return core.MIMEJSON, br
		case m.Is(core.MIMEText):
			return core.MIMEText, br
		}
	}
	return declared, br
}

func runConvert(ctx context.Context, opts convertOptions, stdout, stderr io.Writer) error {
	format, err := core.ParseExportFormat(opts.format)
	if err != nil {
		return err
	}
	svc, err := pipeline(opts.sheet, opts.maxDepth, stderr)
	if err != nil {
		return err
	}
	defer svc.Close(context.WithoutCancel(ctx))

	id, st, err := load(ctx, svc, opts.input)
	if err != nil {
		return err
	}

	if opts.out == "-" {
		_, err := svc.Export(ctx, id, format, stdout)
		return err
	}

	out := opts.out
	if out == "" {
		out = filepath.Join(filepath.Dir(opts.input), core.DeriveFilename(st.FileName, format.Extension()))
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := svc.Export(ctx, id, format, f); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	slog.Debug("converted", "input", opts.input, "output", out)
	fmt.Fprintf(stdout, "wrote %s (%d rows, %d columns)\n", out, st.Dataset.Len(), len(st.Columns()))
	return nil
}

func runInspect(ctx context.Context, opts inspectOptions, stdout io.Writer) error {
	svc, err := pipeline("", 0, io.Discard)
	if err != nil {
		return err
	}
	defer svc.Close(context.WithoutCancel(ctx))

	_, st, err := load(ctx, svc, opts.input)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st.Rows())
	}

	fmt.Fprintf(stdout, "file:       %s\n", st.FileName)
	fmt.Fprintf(stdout, "rows:       %d\n", st.Dataset.Len())
	fmt.Fprintf(stdout, "collisions: %d\n", st.Dataset.Collisions())
	fmt.Fprintf(stdout, "columns:    %d\n", len(st.Columns()))
	for _, c := range st.Columns() {
		fmt.Fprintf(stdout, "  %s\n", c)
	}
	return nil
}
