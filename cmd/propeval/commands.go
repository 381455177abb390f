package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/propeval/internal/api"
	"github.com/kalambet/propeval/internal/config"
	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/pipeline"
	"github.com/kalambet/propeval/internal/storage"
)

type queuedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// --- run / analyze ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Queue a pipeline run over every listing pending analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/pipeline/run", nil)
		if err != nil {
			return err
		}
		var result queuedResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Queued pipeline run %s", result.JobID)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <listing-id>",
	Short: "Queue analysis of a single listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseListingID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), fmt.Sprintf("/api/pipeline/analyze/%d", id), nil)
		if err != nil {
			return err
		}
		var result queuedResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Queued analysis of listing %d (job %s)", id, result.JobID)
		return nil
	},
}

func parseListingID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid listing id %q", s)
	}
	return id, nil
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import scraped listings from a JSON array or JSON lines file",
	Long: `Import scraped listings from a JSON array or JSON lines file.
Use "-" to read from stdin.

Examples:
  propeval import listings.json
  scraper --region waikato | propeval import -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading listings: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.postRaw(cmd.Context(), "/api/listings/import", data)
		if err != nil {
			return err
		}
		var result api.ImportResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Imported listings: %d created, %d updated, %d unchanged", result.Created, result.Updated, result.Unchanged)
		if result.Errors > 0 {
			printWarning("%d listings failed to import", result.Errors)
			for _, m := range result.Messages {
				fmt.Fprintf(os.Stderr, "    %s\n", m)
			}
		}
		return nil
	},
}

// --- listings ---

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "List stored listings, or the current ranking with --ranked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ranked, _ := cmd.Flags().GetBool("ranked")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if ranked {
			resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/listings/ranked?limit=%d", limit))
			if err != nil {
				return err
			}
			var rows []storage.Ranked
			if err := decodeJSON(resp, &rows); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			return printRanked(cmd, rows)
		}

		q := url.Values{}
		if v, _ := cmd.Flags().GetString("filter-status"); v != "" {
			q.Set("filter_status", v)
		}
		if v, _ := cmd.Flags().GetString("analysis-status"); v != "" {
			q.Set("analysis_status", v)
		}
		q.Set("limit", strconv.Itoa(limit))

		resp, err := client.get(cmd.Context(), "/api/listings?"+q.Encode())
		if err != nil {
			return err
		}
		var rows []listing.Listing
		if err := decodeJSON(resp, &rows); err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), rows)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLISTING\tPRICE\tFILTER\tANALYSIS\tADDRESS")
		for _, l := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", l.ID, l.ListingID, money(l.AskingPrice), l.FilterStatus, l.AnalysisStatus, l.Address)
		}
		return tw.Flush()
	},
}

func printRanked(cmd *cobra.Command, rows []storage.Ranked) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tSCORE\tVERDICT\tSTRATEGY\tPRICE\tADDRESS")
	for _, r := range rows {
		rank, score, strategy := "-", "-", "-"
		if r.Analysis.Rank != nil {
			rank = strconv.Itoa(*r.Analysis.Rank)
		}
		if r.Analysis.CompositeScore != nil {
			score = strconv.FormatFloat(*r.Analysis.CompositeScore, 'f', 1, 64)
		}
		if r.Analysis.Strategy != nil {
			strategy = r.Analysis.Strategy.RecommendedStrategy
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n", rank, r.Listing.ID, score,
			colorize(verdictColor(string(r.Analysis.Verdict)), string(r.Analysis.Verdict)),
			strategy, money(r.Listing.AskingPrice), r.Listing.Address)
	}
	return tw.Flush()
}

func init() {
	listingsCmd.Flags().String("filter-status", "", "only listings with this filter status (pending, passed, rejected)")
	listingsCmd.Flags().String("analysis-status", "", "only listings with this analysis status (pending, in_progress, completed, failed)")
	listingsCmd.Flags().Int("limit", 50, "maximum number of listings")
	listingsCmd.Flags().Bool("ranked", false, "show the current ranking instead")
	listingsCmd.Flags().Bool("json", false, "print raw JSON")
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report <listing-id>",
	Short: "Show the property report for an analysed listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseListingID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/analysis/%d/report", id))
		if err != nil {
			return err
		}
		var report pipeline.Report
		if err := decodeJSON(resp, &report); err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd.OutOrStdout(), report)
		}
		printReport(cmd, &report)
		return nil
	},
}

func printReport(cmd *cobra.Command, r *pipeline.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, colorize(colorBold, r.Address))
	if r.ListingURL != "" {
		fmt.Fprintln(out, r.ListingURL)
	}
	rank := "-"
	if r.Rank != nil {
		rank = strconv.Itoa(*r.Rank)
	}
	fmt.Fprintf(out, "\nVerdict:    %s  (score %.1f, rank %s, confidence %s)\n",
		colorize(verdictColor(string(r.Verdict)), string(r.Verdict)), r.CompositeScore, rank, r.ConfidenceLevel)
	fmt.Fprintf(out, "Strategy:   %s\n            %s\n", r.Strategy.Strategy, r.Strategy.Reason)

	f := r.Flip
	fmt.Fprintf(out, "\nFlip:       buy %s, renovate %s, sell %s, profit %s (ROI %.1f%%, %d weeks)\n",
		dollars(f.PurchasePrice), dollars(f.RenovationCost), dollars(f.ARV), dollars(f.NetProfit), f.ROI, f.TimelineWeeks)
	rent := r.Rental
	fmt.Fprintf(out, "Rental:     %s/week, gross %.2f%%, net %.2f%%, cashflow %s/year\n",
		dollars(rent.WeeklyRent), rent.GrossYield, rent.NetYield, dollars(rent.AnnualCashflow))
	if r.Subdivision.Potential {
		fmt.Fprintf(out, "Subdivide:  adds %s, costs %s, net %s\n",
			dollars(r.Subdivision.EstimatedValueAdd), dollars(r.Subdivision.Costs), dollars(r.Subdivision.NetValue))
	}
	insurable := "yes"
	if !r.Insurability.Insurable {
		insurable = colorize(colorRed, "NO")
	}
	fmt.Fprintf(out, "Insurable:  %s (%s/year, %s)\n", insurable, dollars(r.Insurability.AnnualPremium), r.Insurability.Provider)

	if len(r.Flags) > 0 {
		fmt.Fprintln(out, "\nFlags:")
		for _, f := range r.Flags {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}
	if len(r.NextSteps) > 0 {
		fmt.Fprintln(out, "\nNext steps:")
		for _, s := range r.NextSteps {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}
}

func init() {
	reportCmd.Flags().Bool("json", false, "print the full report as JSON")
}

// --- scenario ---

var scenarioCmd = &cobra.Command{
	Use:   "scenario <listing-id>",
	Short: "Recompute financials for a listing with some inputs overridden",
	Long: `Recompute flip and rental financials and the recommended strategy for a
listing with some inputs overridden. Nothing is saved.

Example:
  propeval scenario 42 --purchase-price 410000 --renovation 45000 --interest-rate 0.059`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseListingID(args[0])
		if err != nil {
			return err
		}
		overrides, err := scenarioOverrides(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), fmt.Sprintf("/api/analysis/%d/scenario", id), overrides)
		if err != nil {
			return err
		}
		var result pipeline.ScenarioResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

// scenarioOverrides collects only the flags the user actually set.
func scenarioOverrides(cmd *cobra.Command) (pipeline.ScenarioOverrides, error) {
	var o pipeline.ScenarioOverrides
	floats := []struct {
		flag string
		dst  **float64
	}{
		{"purchase-price", &o.PurchasePrice},
		{"renovation", &o.RenovationBudget},
		{"sale-price", &o.SalePrice},
		{"weekly-rent", &o.WeeklyRent},
		{"interest-rate", &o.InterestRate},
	}
	for _, f := range floats {
		if !cmd.Flags().Changed(f.flag) {
			continue
		}
		v, err := cmd.Flags().GetFloat64(f.flag)
		if err != nil {
			return o, err
		}
		*f.dst = &v
	}
	if cmd.Flags().Changed("weeks") {
		weeks, err := cmd.Flags().GetInt("weeks")
		if err != nil {
			return o, err
		}
		o.TimelineWeeks = &weeks
	}
	return o, nil
}

func init() {
	scenarioCmd.Flags().Float64("purchase-price", 0, "purchase price")
	scenarioCmd.Flags().Float64("renovation", 0, "renovation budget")
	scenarioCmd.Flags().Float64("sale-price", 0, "expected sale price after renovation")
	scenarioCmd.Flags().Float64("weekly-rent", 0, "weekly rent")
	scenarioCmd.Flags().Float64("interest-rate", 0, "annual interest rate, e.g. 0.065")
	scenarioCmd.Flags().Int("weeks", 0, "renovation timeline in weeks")
}

// --- portfolio ---

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "List tracked deals with projected and actual figures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/portfolio")
		if err != nil {
			return err
		}
		var entries []listing.PortfolioEntry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), entries)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLISTING\tSTATUS\tPAID\tRENO (PROJ)\tRENO (ACTUAL)\tVARIANCE")
		for _, e := range entries {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.ListingID, e.Status,
				money(e.PurchasePrice), money(e.ProjectedRenoCost), money(e.ActualRenoCost), money(e.RenoCostVariance))
		}
		return tw.Flush()
	},
}

var portfolioAddCmd = &cobra.Command{
	Use:   "add <listing-id>",
	Short: "Start tracking a listing, copying its projections from the analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseListingID(args[0])
		if err != nil {
			return err
		}
		body := map[string]any{"listing_id": id}
		if v, _ := cmd.Flags().GetString("status"); v != "" {
			body["status"] = v
		}
		if v, _ := cmd.Flags().GetString("notes"); v != "" {
			body["notes"] = v
		}
		if cmd.Flags().Changed("purchase-price") {
			v, _ := cmd.Flags().GetFloat64("purchase-price")
			body["purchase_price"] = v
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/portfolio", body)
		if err != nil {
			return err
		}
		var e listing.PortfolioEntry
		if err := decodeJSON(resp, &e); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tracking listing %d as portfolio entry %d (%s)\n", e.ListingID, e.ID, e.Status)
		return nil
	},
}

var portfolioUpdateCmd = &cobra.Command{
	Use:   "update <entry-id>",
	Short: "Record progress on a tracked deal",
	Long: `Record progress on a tracked deal. Only the flags given are changed.

Example:
  propeval portfolio update 3 --status renovating --reno-cost 52000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid portfolio entry id %q", args[0])
		}
		body := map[string]any{}
		for flag, field := range map[string]string{
			"purchase-price": "purchase_price",
			"reno-cost":      "actual_reno_cost",
			"sale-price":     "actual_sale_price",
			"weekly-rent":    "actual_weekly_rent",
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetFloat64(flag)
				body[field] = v
			}
		}
		for flag, field := range map[string]string{"status": "status", "notes": "notes"} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				body[field] = v
			}
		}
		if len(body) == 0 {
			return fmt.Errorf("nothing to update")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), fmt.Sprintf("/api/portfolio/%d", id), body)
		if err != nil {
			return err
		}
		var e listing.PortfolioEntry
		if err := decodeJSON(resp, &e); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), e)
	},
}

func init() {
	portfolioCmd.Flags().Bool("json", false, "print raw JSON")

	portfolioAddCmd.Flags().String("status", "", "initial status (default watching)")
	portfolioAddCmd.Flags().Float64("purchase-price", 0, "agreed purchase price")
	portfolioAddCmd.Flags().String("notes", "", "free-form notes")

	portfolioUpdateCmd.Flags().String("status", "", "new status (watching, offered, purchased, renovating, selling, renting, sold)")
	portfolioUpdateCmd.Flags().Float64("purchase-price", 0, "purchase price paid")
	portfolioUpdateCmd.Flags().Float64("reno-cost", 0, "actual renovation cost so far")
	portfolioUpdateCmd.Flags().Float64("sale-price", 0, "actual sale price")
	portfolioUpdateCmd.Flags().Float64("weekly-rent", 0, "actual weekly rent")
	portfolioUpdateCmd.Flags().String("notes", "", "free-form notes")

	portfolioCmd.AddCommand(portfolioAddCmd, portfolioUpdateCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tVALUE\tENV")
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", k.Key, k.Value, k.EnvVar)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		printStatus("Config file", "%s", config.Path())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			if strings.HasPrefix(err.Error(), "unknown config key") {
				return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
			}
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a value from the config file so its default applies",
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
