package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ucexplorer/ucexplorer/internal/core/events/bus"
	"github.com/ucexplorer/ucexplorer/internal/core/feed"
	"github.com/ucexplorer/ucexplorer/internal/core/imagecapture"
	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
	"github.com/ucexplorer/ucexplorer/internal/core/navigation"
	"github.com/ucexplorer/ucexplorer/internal/core/optimistic"
	"github.com/ucexplorer/ucexplorer/internal/injector"
)

func initApp(path string) (*injector.App, func(), error) {
	return injector.InitializeApp(injector.ConfigPath(path))
}

// stage builds the profile's ledger and records the edit file on it.
func stage(e *env, app *injector.App, f *EditFile, view *terminalView, confirm ledger.Confirmer) (*ledger.Ledger, error) {
	l, err := app.Ledger(f.Profile,
		ledger.WithView(view),
		ledger.WithNotifier(printNotice(e.stdout)),
		ledger.WithConfirmer(confirm))
	if err != nil {
		return nil, err
	}
	if err := f.Apply(l); err != nil {
		return nil, err
	}
	return l, nil
}

func printPending(e *env, l *ledger.Ledger) {
	changes := l.Pending()
	if len(changes) == 0 {
		fmt.Fprintln(e.stdout, "No pending changes.")
		return
	}
	fmt.Fprintf(e.stdout, "%d pending %s, %d fields:\n",
		len(changes), plural(len(changes), "entity", "entities"), l.PendingFieldCount())
	for _, c := range changes {
		for _, field := range c.FieldNames() {
			fmt.Fprintf(e.stdout, "  %s %s: %v -> %v\n", c.Ref, field, c.Original[field], c.Fields[field])
		}
	}
}

func planCmd(_ context.Context, e *env, args []string) error {
	fs, configPath := newFlagSet("plan", e)
	edits := fs.String("edits", "", "YAML file of staged edits")
	verbose := fs.Bool("v", false, "print every mark as it changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := readEditFile(*edits)
	if err != nil {
		return err
	}
	app, cleanup, err := initApp(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	l, err := stage(e, app, f, &terminalView{w: e.stdout, verbose: *verbose}, ledger.AutoConfirm)
	if err != nil {
		return err
	}
	printPending(e, l)
	if l.PendingCount() == 0 {
		return nil
	}
	body, err := l.Body()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "POST %s\n", l.Endpoint())
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}

func discardCmd(ctx context.Context, e *env, args []string) error {
	fs, configPath := newFlagSet("discard", e)
	edits := fs.String("edits", "", "YAML file of staged edits")
	yes := fs.Bool("yes", false, "discard without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := readEditFile(*edits)
	if err != nil {
		return err
	}
	app, cleanup, err := initApp(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	confirm := newPromptConfirmer(e.stdin, e.stdout, *yes)
	l, err := stage(e, app, f, &terminalView{w: e.stdout, verbose: true}, confirm)
	if err != nil {
		return err
	}
	res, err := l.DiscardAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "status: %s\n", res.Status)
	return nil
}

func commitCmd(ctx context.Context, e *env, args []string) error {
	fs, configPath := newFlagSet("commit", e)
	edits := fs.String("edits", "", "YAML file of staged edits")
	yes := fs.Bool("yes", false, "commit without asking")
	verbose := fs.Bool("v", false, "print every mark as it changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := readEditFile(*edits)
	if err != nil {
		return err
	}
	app, cleanup, err := initApp(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	confirm := newPromptConfirmer(e.stdin, e.stdout, *yes)
	l, err := stage(e, app, f, &terminalView{w: e.stdout, verbose: *verbose}, confirm)
	if err != nil {
		return err
	}
	res, err := l.CommitAll(ctx)
	printResult(e, res)
	return err
}

func printResult(e *env, res ledger.CommitResult) {
	fmt.Fprintf(e.stdout, "status: %s\n", res.Status)
	if res.TotalUpdates > 0 {
		fmt.Fprintf(e.stdout, "updates: %d/%d\n", res.SuccessfulUpdates, res.TotalUpdates)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(e.stdout, "  failed %s %s: %s\n", f.Ref, f.Field, f.Reason)
	}
}

func injectCmd(ctx context.Context, e *env, args []string) error {
	fs, configPath := newFlagSet("inject", e)
	plan := fs.String("plan", "", "YAML file with the plan rows and edits")
	yes := fs.Bool("yes", false, "apply without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := readEditFile(*plan)
	if err != nil {
		return err
	}
	if len(f.Rows) == 0 {
		return errors.New("plan has no rows")
	}
	app, cleanup, err := initApp(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	confirm := newPromptConfirmer(e.stdin, e.stdout, *yes)
	p, err := app.Preview(f.Rows,
		ledger.WithNotifier(printNotice(e.stdout)),
		ledger.WithConfirmer(confirm))
	if err != nil {
		return err
	}
	if err := f.ApplyPreview(p); err != nil {
		return err
	}
	for _, r := range p.Rows() {
		fmt.Fprintf(e.stdout, "  %-6s %s %v\n", r.Action, r.ID, r.Fields)
	}
	if p.Ledger().PendingCount() == 0 {
		ok, err := confirm.Confirm(ctx, fmt.Sprintf("Apply %d rows?", len(f.Rows)))
		if err != nil || !ok {
			fmt.Fprintln(e.stdout, "status: cancelled")
			return err
		}
	}
	res, err := p.Apply(ctx)
	printResult(e, res)
	return err
}

func navCmd(ctx context.Context, e *env, args []string) error {
	fs, configPath := newFlagSet("nav", e)
	useCase := fs.String("usecase", "", "print the breadcrumb of this use case")
	if err := fs.Parse(args); err != nil {
		return err
	}
	app, cleanup, err := initApp(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	tree, err := app.Navigation.Get(ctx)
	if err != nil {
		return err
	}
	if *useCase != "" {
		trail, err := tree.Trail(*useCase)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, navigation.Label(trail))
		return nil
	}
	counts := tree.Counts()
	for _, a := range tree.Areas() {
		fmt.Fprintf(e.stdout, "%s (%s)\n", a.Name, a.ID)
		for _, s := range tree.StepsInArea(string(a.ID)) {
			n := counts[string(s.ID)]
			fmt.Fprintf(e.stdout, "  %s (%s) %d %s\n", s.Name, s.ID, n, plural(n, "use case", "use cases"))
			for _, uc := range tree.UseCasesInStep(string(s.ID)) {
				fmt.Fprintf(e.stdout, "    %s (%s)\n", uc.Name, uc.ID)
			}
		}
	}
	return nil
}

func inlineCmd(ctx context.Context, e *env, args []string) error {
	fs, configPath := newFlagSet("inline", e)
	path := fs.String("path", "", "resource path, e.g. /api/usecases/3")
	field := fs.String("field", "", "field to update")
	value := fs.String("value", "", "new value")
	current := fs.String("current", "", "value currently shown; saving it again is skipped")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" || *field == "" {
		return errors.New("-path and -field are required")
	}
	app, cleanup, err := initApp(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	editor := app.InlineEditor(
		optimistic.WithNotifier(printNotice(e.stdout)),
		optimistic.WithDisplay(func(path, field string, v any) {
			fmt.Fprintf(e.stdout, "  %s %s = %v\n", path, field, v)
		}))
	if *current != "" {
		editor.Set(*path, *field, *current)
	}
	return editor.Save(ctx, *path, *field, *value)
}

func imageCmd(ctx context.Context, e *env, args []string) error {
	fs, configPath := newFlagSet("image", e)
	file := fs.String("file", "", "image to check")
	useCase := fs.String("usecase", "", "attach the image to this use case")
	field := fs.String("field", "image", "use case field holding the image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("missing -file")
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	app, cleanup, err := initApp(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	capture := imagecapture.NewCapture(app.Config.Image.MaxBytes, nil)
	if err := capture.Begin(); err != nil {
		return err
	}
	p, err := capture.Load(raw)
	if err != nil {
		_ = capture.Cancel()
		return err
	}
	fmt.Fprintf(e.stdout, "%s %dx%d %d bytes\n", p.MIME, p.Width, p.Height, p.Size)
	if *useCase == "" {
		return nil
	}
	path := strings.TrimSuffix(app.Config.Server.UseCasesPath, "/") + "/" + *useCase
	editor := app.InlineEditor(optimistic.WithNotifier(printNotice(e.stdout)))
	return editor.Save(ctx, path, *field, p.DataURL)
}

func watchCmd(ctx context.Context, e *env, args []string) error {
	fs, configPath := newFlagSet("watch", e)
	if err := fs.Parse(args); err != nil {
		return err
	}
	app, cleanup, err := initApp(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	enc := json.NewEncoder(e.stdout)
	sub, err := app.Bus.Subscribe(feed.Topic, bus.Wildcard, func(ev bus.Event) error {
		return enc.Encode(ev.Data)
	})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Cancel() }()

	err = app.Feed.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
