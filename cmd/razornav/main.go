package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/justyntemme/razornav/internal/app"
	"github.com/justyntemme/razornav/internal/config"
	"github.com/justyntemme/razornav/internal/debug"
	"github.com/justyntemme/razornav/internal/tabs"
)

const usage = `usage: razornav [flags] <command> [args]

commands:
  tabs                        list tabs of the active workspace
  cd <path>                   navigate the active tab
  back, forward               move through the active tab's history
  open [path]                 open a new tab
  close <tab>                 close a tab (number or id prefix)
  switch <tab>                activate a tab
  move <tab> <position>       reorder a tab
  workspaces                  list workspaces
  workspace new|use|rm <name>
  workspace mv <name> <new>
  render <file>               print a document converted to HTML
  icon <file> [size]          print the icon resolved for a file
  preview <dir> [index]       prefetch previews around an image
  stats                       print cache counters
  gen-config                  back up and regenerate the config file

flags:
`

func main() {
	configPath := flag.String("config", "", "Config file (default ~/.config/razornav/config.json)")
	backend := flag.String("backend", "", "State backend override: file or sqlite")
	verbose := flag.Bool("debug", false, "Enable verbose debug logging (requires -tags debug)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *verbose {
		debug.EnableAll()
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if args[0] == "gen-config" {
		backup, err := config.GenerateConfig(*configPath)
		if err != nil {
			log.Fatalf("gen-config: %v", err)
		}
		if backup != "" {
			fmt.Printf("previous config saved to %s\n", backup)
		}
		return
	}

	cfgMgr := config.NewManager(*configPath)
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Config: using defaults: %v", err)
	}
	if err := cfgMgr.ParseError(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s is invalid, using defaults: %v\n", cfgMgr.Path(), err)
	}
	cfg := cfgMgr.Get()
	if *backend != "" {
		cfg.State.Backend = *backend
	}

	a, err := app.New(app.Options{Config: cfg})
	if err != nil {
		log.Fatalf("razornav: %v", err)
	}

	runErr := run(context.Background(), a, args)
	if err := a.Close(); err != nil {
		log.Printf("razornav: close: %v", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "razornav: %v\n", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, args []string) error {
	cmd, rest := args[0], args[1:]
	arg := func(i int) string {
		if i < len(rest) {
			return rest[i]
		}
		return ""
	}

	switch cmd {
	case "tabs":
		printTabs(a.Tabs())
	case "cd":
		loc, err := a.Navigate(arg(0))
		if err != nil {
			return err
		}
		fmt.Println(loc)
	case "back", "forward":
		move := a.Back
		if cmd == "forward" {
			move = a.Forward
		}
		loc, ok := move()
		if !ok {
			return fmt.Errorf("cannot go %s", cmd)
		}
		fmt.Println(loc)
	case "open":
		if _, err := a.NewTab(arg(0)); err != nil {
			return err
		}
		printTabs(a.Tabs())
	case "close", "switch":
		id, err := findTab(a.Tabs(), arg(0))
		if err != nil {
			return err
		}
		if cmd == "close" {
			err = a.CloseTab(id)
		} else {
			err = a.SwitchTab(id)
		}
		if err != nil {
			return err
		}
		printTabs(a.Tabs())
	case "move":
		id, err := findTab(a.Tabs(), arg(0))
		if err != nil {
			return err
		}
		pos, err := strconv.Atoi(arg(1))
		if err != nil {
			return fmt.Errorf("position: %w", err)
		}
		if err := a.ReorderTab(id, pos-1); err != nil {
			return err
		}
		printTabs(a.Tabs())
	case "workspaces":
		printWorkspaces(a)
	case "workspace":
		return runWorkspace(a, arg(0), arg(1), arg(2))
	case "render":
		doc, err := a.Document(ctx, arg(0))
		if err != nil {
			return err
		}
		out, err := doc.Read()
		if err != nil {
			return err
		}
		os.Stdout.Write(out)
	case "icon":
		size := 16
		if s := arg(1); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("size: %w", err)
			}
			size = n
		}
		icon, err := a.Icon(ctx, arg(0), size)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", icon.Name, icon.Generic, icon.MIME)
	case "preview":
		return runPreview(ctx, a, arg(0), arg(1))
	case "stats":
		for _, name := range []string{"icons", "documents", "previews"} {
			s := a.CacheStats()[name]
			fmt.Printf("%-10s %d entries, footprint %s, %d hits, %d misses, %d evictions\n",
				name, s.Entries, humanize.Comma(s.Footprint), s.Hits, s.Misses, s.Evictions)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func runWorkspace(a *app.App, action, name, newName string) error {
	ws := a.Workspaces()
	if action == "new" {
		if _, err := ws.Create(name); err != nil {
			return err
		}
		printWorkspaces(a)
		return nil
	}

	id, ok := ws.Find(name)
	if !ok {
		return fmt.Errorf("no workspace named %q", name)
	}

	var err error
	switch action {
	case "use":
		err = a.SwitchWorkspace(id)
	case "rm":
		err = a.DeleteWorkspace(id)
	case "mv":
		err = ws.Rename(id, newName)
	default:
		err = fmt.Errorf("unknown workspace action %q", action)
	}
	if err != nil {
		return err
	}
	printWorkspaces(a)
	return nil
}

func runPreview(ctx context.Context, a *app.App, dir, index string) error {
	items, err := a.PreviewItems(dir)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no images in %s", dir)
	}

	i := 0
	if index != "" {
		if i, err = strconv.Atoi(index); err != nil {
			return fmt.Errorf("index: %w", err)
		}
	}
	if i < 0 || i >= len(items) {
		return fmt.Errorf("index %d out of range (%d images)", i, len(items))
	}

	a.FocusPreview(ctx, items, i)
	a.WaitPrefetch()

	img, err := a.Preview(ctx, items[i])
	if err != nil {
		return err
	}
	b := img.Image.Bounds()
	fmt.Printf("%s: %dx%d (preview %dx%d)\n", items[i], img.Original.X, img.Original.Y, b.Dx(), b.Dy())
	fmt.Printf("%d previews cached\n", a.CacheStats()["previews"].Entries)
	return nil
}

func printTabs(tm *tabs.Manager) {
	active := tm.ActiveIndex()
	for i, t := range tm.Tabs() {
		marker := " "
		if i == active {
			marker = "*"
		}
		fmt.Printf("%s %d  %-8s %s  (%d/%d)\n", marker, i+1, shortID(t.ID), t.Location, t.Cursor+1, len(t.History))
	}
}

func printWorkspaces(a *app.App) {
	for _, w := range a.Workspaces().List() {
		marker := " "
		if w.Active {
			marker = "*"
		}
		fmt.Printf("%s %s  (created %s)\n", marker, w.Name, humanize.Time(w.CreatedAt))
	}
}

// findTab resolves a 1-based tab number or an id prefix.
func findTab(tm *tabs.Manager, ref string) (string, error) {
	list := tm.Tabs()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(list) {
		return list[n-1].ID, nil
	}
	if ref != "" {
		for _, t := range list {
			if strings.HasPrefix(t.ID, ref) {
				return t.ID, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", tabs.ErrTabNotFound, ref)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
