package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/recoagent/internal/api"
	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/config"
	"github.com/kalambet/recoagent/internal/storage"
)

// --- recommend ---

var recommendCmd = &cobra.Command{
	Use:   "recommend <item name>",
	Short: "Recommend compatible products for an item",
	Long: `Recommend compatible products for an item in the catalog.

Examples:
  recoagent recommend "Galaxy A57"
  recoagent recommend Galaxy A57 --limit 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runRecommend(cmd.Context(), client, os.Stdout, strings.Join(args, " "), limit, asJSON)
	},
}

func runRecommend(ctx context.Context, client *apiClient, w io.Writer, name string, limit int, asJSON bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("item name is required")
	}
	req := api.RecommendationRequest{ItemName: name}
	if limit > 0 {
		req.Limit = &limit
	}

	var out api.RecommendationResponse
	if err := client.post(ctxOrBackground(ctx), "/recommendations", req, &out); err != nil {
		return err
	}

	if asJSON {
		s, err := prettyJSON(out)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, s)
		return nil
	}

	if out.PrimaryItem == nil {
		printWarning("No product named %q in the catalog", name)
		return nil
	}
	fmt.Fprint(w, colorize(colorBold, "Item: "))
	printProduct(w, *out.PrimaryItem, "")
	if len(out.Recommendations) == 0 {
		printWarning("No compatible products found")
		return nil
	}
	fmt.Fprintln(w, colorize(colorBold, "Recommendations:"))
	for _, p := range out.Recommendations {
		printProduct(w, p, out.Reasons[strconv.FormatInt(p.ID, 10)])
	}
	return nil
}

// --- catalog ---

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and import the product catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a products JSON file into the local SQLite catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		return runImport(ctxOrBackground(cmd.Context()), store, args[0])
	},
}

func runImport(ctx context.Context, store *storage.Store, path string) error {
	printStep("Reading %s", path)
	records, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}

	products := make([]catalog.Product, 0, len(records))
	for i, r := range records {
		if !r.Valid() {
			printWarning("row %d skipped: %v", i, r.Err)
			continue
		}
		products = append(products, r.Product)
	}
	if len(products) == 0 {
		return fmt.Errorf("no valid products in %s", path)
	}

	n, err := store.UpsertProducts(ctx, products)
	if err != nil {
		return fmt.Errorf("importing products: %w", err)
	}
	printSuccess("Imported %d products (%d skipped)", n, len(records)-len(products))
	return nil
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one product by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid product id %q", args[0])
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var p catalog.PublicProduct
		if err := client.get(ctxOrBackground(cmd.Context()), fmt.Sprintf("/products/%d", id), &p); err != nil {
			return err
		}
		s, err := prettyJSON(p)
		if err != nil {
			return err
		}
		fmt.Println(s)
		return nil
	},
}

var catalogFindCmd = &cobra.Command{
	Use:   "find",
	Short: "List products by tag, category or brand",
	Long: `List products by tag, category or brand. Exactly one filter is required.

Examples:
  recoagent catalog find --category charger
  recoagent catalog find --brand Samsung`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")
		category, _ := cmd.Flags().GetString("category")
		brand, _ := cmd.Flags().GetString("brand")

		query, err := findQuery(tag, category, brand)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runFind(ctxOrBackground(cmd.Context()), client, os.Stdout, query)
	},
}

func findQuery(tag, category, brand string) (url.Values, error) {
	q := url.Values{}
	for k, v := range map[string]string{"tag": tag, "category": category, "brand": brand} {
		if v = strings.TrimSpace(v); v != "" {
			q.Set(k, v)
		}
	}
	if len(q) != 1 {
		return nil, fmt.Errorf("exactly one of --tag, --category or --brand is required")
	}
	return q, nil
}

func runFind(ctx context.Context, client *apiClient, w io.Writer, query url.Values) error {
	var products []catalog.PublicProduct
	if err := client.get(ctx, "/products?"+query.Encode(), &products); err != nil {
		return err
	}
	if len(products) == 0 {
		printWarning("No products found")
		return nil
	}
	for _, p := range products {
		printProduct(w, p, "")
	}
	return nil
}

// --- recent ---

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recently served recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runRecent(ctxOrBackground(cmd.Context()), client, os.Stdout, limit)
	},
}

func runRecent(ctx context.Context, client *apiClient, w io.Writer, limit int) error {
	var entries []api.RecentEntry
	if err := client.get(ctx, fmt.Sprintf("/recommendations/recent?limit=%d", limit), &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		printWarning("No recommendations yet")
		return nil
	}
	for _, e := range entries {
		ids := make([]string, len(e.ProductIDs))
		for i, id := range e.ProductIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		fmt.Fprintf(w, "%s  %-30q %s [%s] %dms\n",
			colorize(colorDim, e.CreatedAt), e.Query, colorize(colorCyan, e.Path), strings.Join(ids, ","), e.DurationMs)
	}
	return nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nValid keys: " + strings.Join(config.ValidKeys(), ", "),
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

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func init() {
	recommendCmd.Flags().Int("limit", 0, "number of recommendations (1-50, default from config)")
	recommendCmd.Flags().Bool("json", false, "print the raw JSON response")

	catalogFindCmd.Flags().String("tag", "", "filter by tag")
	catalogFindCmd.Flags().String("category", "", "filter by category")
	catalogFindCmd.Flags().String("brand", "", "filter by brand (case-insensitive)")

	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogCmd.AddCommand(catalogFindCmd)

	recentCmd.Flags().Int("limit", 20, "number of entries to show")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
