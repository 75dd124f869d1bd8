package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/archive"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/catalog"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/config"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/session"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/storage"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/workflow"
)

// userError turns a workflow error into the message shown to the user.
func userError(err error) error {
	return errors.New(workflow.Message(err))
}

// --- find ---

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Fetch a catalog of problems for a skill level and tags",
	Long: `Fetch a catalog of problems for a skill level and optional topic tags.

Examples:
  problems find --skill Beginner
  problems find --skill advanced --tags "Dynamic Programming,Graph" --page 2
  problems find --skill Master --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		skill, _ := cmd.Flags().GetString("skill")
		tags, _ := cmd.Flags().GetString("tags")
		page, _ := cmd.Flags().GetInt("page")
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		c := a.controller()
		defer c.Close()

		if err := c.Submit(cmd.Context(), skill, tags); err != nil {
			return userError(err)
		}
		c.GotoPage(page)
		return writeView(cmd.OutOrStdout(), output, c.View())
	},
}

func init() {
	findCmd.Flags().String("skill", "", "skill level: Beginner, Intermediate, Advanced or Master")
	findCmd.Flags().String("tags", "", "comma-separated topic tags")
	findCmd.Flags().Int("page", 1, "page to show")
	findCmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")
}

// --- page ---

var pageCmd = &cobra.Command{
	Use:   "page <catalog-id> <n>",
	Short: "Show a page of a previously fetched catalog",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("page must be a positive integer, got %q", args[1])
		}
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := restoreCatalog(a, args[0])
		if err != nil {
			return err
		}
		defer c.Close()

		c.GotoPage(n)
		return writeView(cmd.OutOrStdout(), output, c.View())
	},
}

func init() {
	pageCmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")
}

// restoreCatalog loads a stored catalog into a fresh controller.
func restoreCatalog(a *app, id string) (*workflow.Controller, error) {
	store, err := a.requireStore()
	if err != nil {
		return nil, err
	}
	rec, err := store.GetCatalog(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("catalog %s not found in history", id)
	}
	if err != nil {
		return nil, err
	}

	q, _ := catalog.Build(rec.Skill, catalog.NewTagSet(rec.Tags...).String())
	c := a.controller()
	if err := c.Restore(q, rec.Result()); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [catalog-id]",
	Short: "Fetch the analysis images of a catalog",
	Long: `Fetch the analysis of a catalog and list the images it contains.

Examples:
  problems analyze 5f1c2e
  problems analyze --last --out ./analysis`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		last, _ := cmd.Flags().GetBool("last")
		out, _ := cmd.Flags().GetString("out")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var id string
		switch {
		case len(args) == 1:
			id = args[0]
		case last:
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			rec, err := store.LatestCatalog()
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no catalog in history; run problems find first")
			}
			if err != nil {
				return err
			}
			id = rec.ID
		default:
			return fmt.Errorf("a catalog id or --last is required")
		}

		c := a.controller()
		defer c.Close()
		if err := c.Restore(catalog.Query{}, catalog.Result{ID: id}); err != nil {
			return err
		}

		printStep("Requesting analysis of %s...", id)
		if err := c.Analyze(cmd.Context()); err != nil {
			return userError(err)
		}

		bundle, _ := c.Bundle()
		w := cmd.OutOrStdout()
		for _, img := range bundle.Images {
			fmt.Fprintf(w, "%s  %s\n", colorize(colorCyan, img.MIMEType), img.Name)
		}

		if out == "" {
			printSuccess("%d images in analysis %s", len(bundle.Images), id)
			return nil
		}
		if err := writeImages(cmd.Context(), out, bundle.Images); err != nil {
			return err
		}
		printSuccess("Wrote %d images to %s", len(bundle.Images), out)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("last", false, "analyse the most recently fetched catalog")
	analyzeCmd.Flags().String("out", "", "directory to write the images to")
}

// writeImages decodes each asset and writes it under dir. Entry names that
// would escape dir are flattened to their base name.
func writeImages(ctx context.Context, dir string, images []archive.ImageAsset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, img := range images {
		g.Go(func() error {
			name := filepath.FromSlash(img.Name)
			if !filepath.IsLocal(name) {
				name = filepath.Base(name)
			}
			path := filepath.Join(dir, name)
			data, err := img.Bytes()
			if err != nil {
				return fmt.Errorf("decoding %s: %w", img.Name, err)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently fetched catalogs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")
		del, _ := cmd.Flags().GetString("delete")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := a.requireStore()
		if err != nil {
			return err
		}

		if del != "" {
			if err := store.DeleteCatalog(del); errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("catalog %s not found in history", del)
			} else if err != nil {
				return err
			}
			printSuccess("Removed catalog %s from history", del)
			return nil
		}

		list, err := store.ListCatalogs(limit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if output != "" && output != "text" {
			if list == nil {
				list = []storage.CatalogRecord{}
			}
			return writeValue(w, output, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(w, "No catalogs in history.")
			return nil
		}
		for _, rec := range list {
			tags := strings.Join(rec.Tags, ", ")
			if tags == "" {
				tags = "-"
			}
			fmt.Fprintf(w, "%s  %s  %-12s %3d problems  %s\n",
				colorize(colorCyan, rec.ID),
				rec.FetchedAt.Local().Format("2006-01-02 15:04"),
				rec.Skill,
				rec.ProblemCount,
				tags,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of catalogs to list")
	historyCmd.Flags().String("delete", "", "remove the catalog with this id from history")
	historyCmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")
}

// --- skills / tags ---

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List the accepted skill levels",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range catalog.Skills {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
	},
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the known topic tags",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range catalog.Vocabulary {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
	},
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the session token sent to the services",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store a session token (reads stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var tok string
		if len(args) == 1 {
			tok = args[0]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading token: %w", err)
			}
			tok = string(data)
		}
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return fmt.Errorf("token must not be empty")
		}

		if err := newTokenStore().Save(tok); err != nil {
			return err
		}
		printSuccess("Session token saved (%s)", session.Mask(tok))
		return nil
	},
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which session token is in use",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if env := session.Env(session.EnvToken).CurrentToken(); env != "" {
			printStatus("Token", "%s (from %s)", session.Mask(env), session.EnvToken)
			return
		}
		if tok := newTokenStore().CurrentToken(); tok != "" {
			printStatus("Token", "%s (from keychain)", session.Mask(tok))
			return
		}
		printWarning("No session token set. Run: problems token set <token>")
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newTokenStore().Clear(); err != nil {
			return err
		}
		printSuccess("Session token removed")
		return nil
	},
}

var newTokenStore = func() *session.Store {
	return session.NewStore(config.PlatformKeychain())
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenClearCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a stored value so the default applies again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
