package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ga4revenue/internal/api"
	"ga4revenue/internal/cache"
	"ga4revenue/internal/config"
	"ga4revenue/internal/insights"
	"ga4revenue/internal/metrics"
	"ga4revenue/internal/preset"
	"ga4revenue/internal/render"
	"ga4revenue/internal/results"
	"ga4revenue/internal/secret"
	"ga4revenue/internal/server"
	"ga4revenue/internal/service"
)

const commandTimeout = 2 * time.Minute

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "ga4revenue",
		Short: "GA4 revenue attribution by traffic source",
		Long: `ga4revenue reports revenue by source and medium from a GA4 property, classifies
each channel's performance and optionally asks an AI model for recommendations.

Examples:
  ga4revenue config init
  ga4revenue preset create shop --property 263883430 --key-file key.json
  ga4revenue connection test
  ga4revenue report attribution --days 30
  ga4revenue insights analyze --days 30
  ga4revenue serve --addr 127.0.0.1:8089`,
		Version:          version,
		PersistentPreRun: setupLogging,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage global configuration",
		Long:  "Initialise and inspect the global configuration and site secret",
	}

	presetCmd = &cobra.Command{
		Use:   "preset",
		Short: "Manage site presets",
		Long:  "Create, list, delete, and switch between GA4 property presets",
	}

	connectionCmd = &cobra.Command{
		Use:   "connection",
		Short: "Check GA4 credentials",
	}

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Run revenue reports",
		Long:  "Fetch the attribution report and revenue chart for the current preset",
	}

	insightsCmd = &cobra.Command{
		Use:   "insights",
		Short: "AI analysis of attribution data",
	}

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage report cache",
		Long:  "Inspect and clean the per-preset attribution report cache",
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API server",
		Long:  "Serve the connection test, attribution, time series and insights operations over HTTP",
		Run:   serveCmdHandler,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("preset", "", "Preset to use (overrides active preset)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	// Config subcommands
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run:   configShowCmdHandler,
	}

	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Long:  "Create the config file with defaults and generate the site secret used to encrypt stored keys",
		Run:   configInitCmdHandler,
	}

	configCmd.AddCommand(configShowCmd, configInitCmd)

	// Preset subcommands
	presetCreateCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new preset",
		Long: `Create a preset for one GA4 property. --key-file accepts either a PEM private key or
the JSON key downloaded from Google Cloud, in which case --email may be omitted.`,
		Args: cobra.ExactArgs(1),
		Run:  presetCreateCmdHandler,
	}
	presetCreateCmd.Flags().String("property", "", "GA4 property ID (required)")
	presetCreateCmd.Flags().String("email", "", "Service account email")
	presetCreateCmd.Flags().String("key-file", "", "Service account key file, PEM or JSON (required)")
	presetCreateCmd.Flags().String("ai-key", "", "OpenAI API key")
	presetCreateCmd.Flags().String("ai-model", "", "AI model (default "+insights.DefaultModel+")")
	presetCreateCmd.Flags().Bool("ai-enabled", false, "Enable AI insights")
	presetCreateCmd.MarkFlagRequired("property")
	presetCreateCmd.MarkFlagRequired("key-file")

	presetListCmd := &cobra.Command{
		Use:   "list",
		Short: "List all presets",
		Run:   presetListCmdHandler,
	}

	presetDeleteCmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a preset",
		Long:  "Delete a preset together with its report cache",
		Args:  cobra.ExactArgs(1),
		Run:   presetDeleteCmdHandler,
	}

	presetUseCmd := &cobra.Command{
		Use:   "use [name]",
		Short: "Set active preset",
		Args:  cobra.ExactArgs(1),
		Run:   presetUseCmdHandler,
	}

	presetSetAICmd := &cobra.Command{
		Use:   "set-ai [name]",
		Short: "Configure AI insights for a preset",
		Args:  cobra.ExactArgs(1),
		Run:   presetSetAICmdHandler,
	}
	presetSetAICmd.Flags().Bool("enabled", true, "Enable AI insights")
	presetSetAICmd.Flags().String("ai-key", "", "OpenAI API key (omit to keep the stored key)")
	presetSetAICmd.Flags().Bool("clear-key", false, "Remove the stored API key")
	presetSetAICmd.Flags().String("model", "", "AI model")

	presetCmd.AddCommand(presetCreateCmd, presetListCmd, presetDeleteCmd, presetUseCmd, presetSetAICmd)

	// Connection subcommands
	connectionCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Obtain a fresh access token",
		Run:   connectionTestCmdHandler,
	})

	// Report subcommands
	reportAttributionCmd := &cobra.Command{
		Use:   "attribution",
		Short: "Revenue by source and medium",
		Run:   reportAttributionCmdHandler,
	}
	reportAttributionCmd.Flags().Int("days", service.DefaultDays, "Number of days to report")
	reportAttributionCmd.Flags().String("html", "", "Also write the HTML table to this file")
	reportAttributionCmd.Flags().Bool("json", false, "Print structured data as JSON")
	reportAttributionCmd.Flags().Int("max-rows", 50, "Maximum rows to display")
	reportAttributionCmd.Flags().Int("max-width", 30, "Maximum column width")

	reportTimeSeriesCmd := &cobra.Command{
		Use:   "timeseries",
		Short: "Daily revenue and visitors",
		Run:   reportTimeSeriesCmdHandler,
	}
	reportTimeSeriesCmd.Flags().Int("days", service.DefaultDays, "Number of days to report")

	reportExportCmd := &cobra.Command{
		Use:   "export [output-file]",
		Short: "Export the attribution report to a file",
		Args:  cobra.ExactArgs(1),
		Run:   reportExportCmdHandler,
	}
	reportExportCmd.Flags().Int("days", service.DefaultDays, "Number of days to report")
	reportExportCmd.Flags().String("format", "", "Export format (csv, tsv, json); defaults to the file extension")
	reportExportCmd.Flags().Bool("prettify", false, "Prettify JSON output")
	reportExportCmd.Flags().Bool("no-totals", false, "Omit the totals line")
	reportExportCmd.Flags().Int("max-rows", 0, "Maximum rows to export (0 for all)")

	reportCmd.AddCommand(reportAttributionCmd, reportTimeSeriesCmd, reportExportCmd)

	// Insights subcommands
	insightsAnalyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyse the attribution report with AI",
		Run:   insightsAnalyzeCmdHandler,
	}
	insightsAnalyzeCmd.Flags().Int("days", service.DefaultDays, "Number of days to analyse")
	insightsAnalyzeCmd.Flags().String("html", "", "Also write the HTML analysis to this file")
	insightsAnalyzeCmd.Flags().Bool("json", false, "Print the analysis as JSON")

	insightsCmd.AddCommand(insightsAnalyzeCmd)

	// Cache subcommands
	cacheListCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached reports",
		Run:   cacheListCmdHandler,
	}
	cacheListCmd.Flags().String("property", "", "Filter by property ID")
	cacheListCmd.Flags().Int("limit", 20, "Maximum results to show")

	cacheClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached report",
		Run:   cacheClearCmdHandler,
	}
	cacheClearCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")

	cacheCmd.AddCommand(
		&cobra.Command{Use: "stats", Short: "Show cache statistics", Run: cacheStatsCmdHandler},
		cacheListCmd,
		&cobra.Command{Use: "cleanup", Short: "Remove expired cache entries", Run: cacheCleanupCmdHandler},
		cacheClearCmd,
	)

	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
	serveCmd.Flags().Bool("pretty-logs", false, "Human-readable logs instead of JSON")

	rootCmd.AddCommand(configCmd, presetCmd, connectionCmd, reportCmd, insightsCmd, cacheCmd, serveCmd)
}

func main() {
	config.LoadEnv()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging sends human-readable logs to stderr; serve replaces it with
// JSON output
func setupLogging(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func exitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// loadStore loads the global config, generating the site secret on first use
func loadStore() (*config.AppConfig, *secret.Store) {
	appConfig, err := config.LoadConfig()
	if err != nil {
		exitWithError("Failed to load config: %v", err)
	}

	created, err := config.EnsureSiteSecret(appConfig)
	if err != nil {
		exitWithError("Failed to create site secret: %v", err)
	}
	if created {
		log.Info().Msg("Generated a new site secret")
	}

	store, err := secret.NewStore(appConfig.SiteSecret)
	if err != nil {
		exitWithError("Invalid site secret: %v", err)
	}
	return appConfig, store
}

// openDashboard builds a Dashboard for the selected preset. The returned
// function closes the report cache.
func openDashboard(cmd *cobra.Command, m *metrics.Metrics) (*service.Dashboard, func()) {
	presetName, _ := cmd.Flags().GetString("preset")
	p, err := preset.Resolve(presetName)
	if err != nil {
		exitWithError("%v", err)
	}

	appConfig, store := loadStore()
	opts := service.Options{
		Config:  appConfig,
		Store:   store,
		Metrics: m,
	}

	closeFn := func() {}
	if appConfig.ReportCacheTTL > 0 {
		cacheClient, err := cache.NewCacheClient(p.Name)
		if err != nil {
			log.Warn().Err(err).Str("preset", p.Name).Msg("Report cache unavailable, continuing without it")
		} else {
			opts.Cache = cacheClient
			closeFn = func() { cacheClient.Close() }
		}
	}

	return service.New(p, opts), closeFn
}

// openCache opens the report cache of the selected preset
func openCache(cmd *cobra.Command) *cache.CacheClient {
	presetName, _ := cmd.Flags().GetString("preset")
	p, err := preset.Resolve(presetName)
	if err != nil {
		exitWithError("%v", err)
	}

	cacheClient, err := cache.NewCacheClient(p.Name)
	if err != nil {
		exitWithError("Failed to open cache: %v", err)
	}
	return cacheClient
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitWithError("Failed to encode JSON: %v", err)
	}
	fmt.Println(string(data))
}

func writeOutputFile(path, content string) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			exitWithError("Failed to create directory: %v", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		exitWithError("Failed to write %s: %v", path, err)
	}
}

func configShowCmdHandler(cmd *cobra.Command, args []string) {
	appConfig, err := config.LoadConfig()
	if err != nil {
		exitWithError("Failed to load config: %v", err)
	}

	configPath, _ := config.GetConfigPath()
	fmt.Printf("📁 Config Location: %s\n", configPath)
	fmt.Println()

	switch {
	case appConfig.SiteSecretFromEnv():
		fmt.Printf("🔐 Site Secret: [HIDDEN] (from %s)\n", config.EnvSiteSecret)
	case appConfig.SiteSecret != "":
		fmt.Println("🔐 Site Secret: [HIDDEN] (configured)")
	default:
		fmt.Println("❌ Site Secret: Not configured")
		fmt.Println("💡 Run 'ga4revenue config init' to generate one")
	}

	if appConfig.ActivePreset != "" {
		fmt.Printf("🎯 Active Preset: %s\n", appConfig.ActivePreset)
	} else {
		fmt.Println("📝 Active Preset: None")
	}

	fmt.Println()
	fmt.Printf("🌐 Server: %s (request timeout %s)\n", appConfig.Server.Addr, appConfig.Server.RequestTimeout)
	fmt.Printf("🔑 Token URL: %s\n", appConfig.Endpoints.TokenURL)
	fmt.Printf("📊 Data API: %s\n", appConfig.Endpoints.DataAPIBaseURL)
	fmt.Printf("🤖 Insights API: %s\n", appConfig.Endpoints.InsightsURL)
	fmt.Printf("⏱️  Timeouts: oauth %s, report %s, insights %s\n",
		appConfig.Timeouts.OAuth, appConfig.Timeouts.Report, appConfig.Timeouts.Insights)
	if appConfig.ReportCacheTTL > 0 {
		fmt.Printf("💾 Report Cache TTL: %s\n", appConfig.ReportCacheTTL)
	} else {
		fmt.Println("💾 Report Cache: disabled")
		fmt.Println("💡 Set 'report_cache_ttl: 1h' in the config file to cache attribution reports")
	}

	if !appConfig.CreatedAt.IsZero() {
		fmt.Println()
		fmt.Printf("📅 Created: %s\n", appConfig.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("🔄 Updated: %s\n", appConfig.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func configInitCmdHandler(cmd *cobra.Command, args []string) {
	appConfig, err := config.LoadConfig()
	if err != nil {
		exitWithError("Failed to load config: %v", err)
	}

	created, err := config.EnsureSiteSecret(appConfig)
	if err != nil {
		exitWithError("Failed to create site secret: %v", err)
	}
	if !created {
		if err := config.SaveConfig(appConfig); err != nil {
			exitWithError("Failed to save config: %v", err)
		}
	}

	configPath, _ := config.GetConfigPath()
	fmt.Printf("✅ Configuration written to %s\n", configPath)
	switch {
	case created:
		fmt.Println("🔐 Generated a new site secret")
	case appConfig.SiteSecretFromEnv():
		fmt.Printf("🔐 Using site secret from %s\n", config.EnvSiteSecret)
	default:
		fmt.Println("🔐 Existing site secret kept")
	}
}

func presetCreateCmdHandler(cmd *cobra.Command, args []string) {
	presetName := args[0]
	propertyID, _ := cmd.Flags().GetString("property")
	email, _ := cmd.Flags().GetString("email")
	keyFile, _ := cmd.Flags().GetString("key-file")
	aiKey, _ := cmd.Flags().GetString("ai-key")
	aiModel, _ := cmd.Flags().GetString("ai-model")
	aiEnabled, _ := cmd.Flags().GetBool("ai-enabled")

	fmt.Printf("➕ Creating preset '%s'...\n", presetName)

	privateKey, keyEmail, err := readKeyFile(keyFile)
	if err != nil {
		exitWithError("%v", err)
	}
	if email == "" {
		email = keyEmail
	}

	_, store := loadStore()
	p, err := preset.CreatePreset(store, preset.CreateOptions{
		Name:                presetName,
		PropertyID:          propertyID,
		ServiceAccountEmail: email,
		PrivateKey:          privateKey,
		AIEnabled:           aiEnabled,
		AIAPIKey:            aiKey,
		AIModel:             aiModel,
	})
	if err != nil {
		exitWithError("Failed to create preset: %v", err)
	}

	presetPath, _ := preset.GetPresetPath(presetName)
	fmt.Printf("✅ Preset '%s' created successfully\n", p.Name)
	fmt.Printf("📁 Preset file: %s\n", presetPath)
	fmt.Printf("📊 Property: %s\n", p.PropertyID)
	fmt.Printf("👤 Service account: %s\n", p.ServiceAccountEmail)
	if p.AIEnabled {
		fmt.Printf("🤖 AI insights: enabled (%s)\n", p.AIModel)
	}

	active, err := config.GetActivePreset()
	if err == nil && active == "" {
		if err := preset.SetActivePreset(p.Name); err == nil {
			fmt.Printf("🎯 '%s' is now the active preset\n", p.Name)
			return
		}
	}
	fmt.Println("🚀 You can now use 'ga4revenue preset use " + p.Name + "' to activate it")
}

func presetListCmdHandler(cmd *cobra.Command, args []string) {
	fmt.Println("📁 Available Presets:")
	fmt.Println()

	activePresetName, err := config.GetActivePreset()
	if err != nil {
		exitWithError("Failed to get active preset: %v", err)
	}

	presets, err := preset.ListPresets()
	if err != nil {
		exitWithError("Failed to list presets: %v", err)
	}

	if len(presets) == 0 {
		fmt.Println("❌ No presets found")
		fmt.Println()
		fmt.Println("💡 Create your first preset with:")
		fmt.Println("   ga4revenue preset create <name> --property <id> --key-file <key.json>")
		return
	}

	for i, p := range presets {
		activeIndicator := "  "
		if p.Name == activePresetName {
			activeIndicator = "▶️ "
		}

		fmt.Printf("%s📋 %s\n", activeIndicator, p.Name)
		fmt.Printf("   📊 Property %s\n", p.PropertyID)
		if p.ServiceAccountEmail != "" {
			fmt.Printf("   👤 %s\n", p.ServiceAccountEmail)
		}
		if !p.HasCredentials() {
			fmt.Println("   ⚠️  Credentials incomplete")
		}
		if p.AIEnabled {
			keyState := "no key"
			if p.HasAIKey() {
				keyState = "key stored"
			}
			fmt.Printf("   🤖 AI: %s, %s\n", p.AIModel, keyState)
		}
		fmt.Printf("   📅 Created: %s\n", p.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("   🔄 Last used: %s\n", p.LastUsed.Format("2006-01-02 15:04"))

		if i < len(presets)-1 {
			fmt.Println()
		}
	}

	fmt.Println()
	fmt.Println("💡 Use 'ga4revenue preset use <name>' to set active preset")
}

func presetDeleteCmdHandler(cmd *cobra.Command, args []string) {
	presetName := args[0]

	if err := preset.DeletePreset(presetName); err != nil {
		exitWithError("Failed to delete preset: %v", err)
	}
	if err := cache.RemoveCache(presetName); err != nil {
		log.Warn().Err(err).Str("preset", presetName).Msg("Failed to remove report cache")
	}

	fmt.Printf("✅ Preset '%s' deleted\n", presetName)
}

func presetUseCmdHandler(cmd *cobra.Command, args []string) {
	presetName := args[0]

	if err := preset.SetActivePreset(presetName); err != nil {
		exitWithError("Failed to set active preset: %v", err)
	}
	fmt.Printf("🎯 Active preset set to '%s'\n", presetName)
}

func presetSetAICmdHandler(cmd *cobra.Command, args []string) {
	presetName := args[0]
	enabled, _ := cmd.Flags().GetBool("enabled")
	clearKey, _ := cmd.Flags().GetBool("clear-key")
	model, _ := cmd.Flags().GetString("model")

	opts := preset.AIOptions{Enabled: enabled, Model: model}
	if cmd.Flags().Changed("ai-key") {
		key, _ := cmd.Flags().GetString("ai-key")
		opts.APIKey = &key
	} else if clearKey {
		empty := ""
		opts.APIKey = &empty
	}

	_, store := loadStore()
	p, err := preset.SetAI(store, presetName, opts)
	if err != nil {
		exitWithError("Failed to update preset: %v", err)
	}

	state := "disabled"
	if p.AIEnabled {
		state = "enabled"
	}
	fmt.Printf("✅ AI insights %s for '%s' (model %s)\n", state, p.Name, p.AIModel)
	if p.AIEnabled && !p.HasAIKey() {
		fmt.Println("⚠️  No API key stored; add one with --ai-key")
	}
}

func connectionTestCmdHandler(cmd *cobra.Command, args []string) {
	dashboard, closeFn := openDashboard(cmd, nil)
	defer closeFn()

	fmt.Printf("🔍 Testing connection for preset '%s'...\n", dashboard.Preset().Name)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := dashboard.TestConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s\n", result.Message)
		diag := result.KeyDiagnostics
		fmt.Fprintf(os.Stderr, "\n🔧 Key diagnostics:\n")
		fmt.Fprintf(os.Stderr, "   Length: %d\n", diag.KeyLength)
		fmt.Fprintf(os.Stderr, "   BEGIN marker: %t, END marker: %t\n", diag.HasBegin, diag.HasEnd)
		fmt.Fprintf(os.Stderr, "   Escaped newlines: %t, real newlines: %t\n", diag.HasEscapedNewlines, diag.HasRealNewlines)
		os.Exit(1)
	}

	fmt.Printf("✅ %s\n", result.Message)
	fmt.Printf("🔑 Token: %s\n", result.TokenPreview)
	if remaining, ok := result.TokenInfo["remaining"]; ok {
		fmt.Printf("⏱️  Expires in: %v\n", remaining)
	}
}

func reportAttributionCmdHandler(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")
	htmlPath, _ := cmd.Flags().GetString("html")
	asJSON, _ := cmd.Flags().GetBool("json")
	maxRows, _ := cmd.Flags().GetInt("max-rows")
	maxWidth, _ := cmd.Flags().GetInt("max-width")

	dashboard, closeFn := openDashboard(cmd, nil)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	report, err := dashboard.AttributionReport(ctx, days)
	if err != nil {
		exitWithError("%v", err)
	}

	if htmlPath != "" {
		writeOutputFile(htmlPath, report.HTML)
		log.Info().Str("path", htmlPath).Msg("Wrote HTML report")
	}

	if asJSON {
		printJSON(report.StructuredData)
		return
	}

	startDate, endDate := dashboard.DateRange(days)
	fmt.Printf("📊 Revenue attribution for property %s, %s to %s\n", dashboard.Preset().PropertyID, startDate, endDate)
	if report.Result.BasicMetrics {
		fmt.Println("⚠️  Purchaser metrics unavailable for this property; showing basic metrics")
	}
	fmt.Println()

	opts := results.DefaultDisplayOptions()
	opts.MaxRows = maxRows
	opts.MaxColWidth = maxWidth
	for _, line := range results.FormatResultTable(report.Result, opts) {
		fmt.Println(line)
	}

	if report.Result.QualifiedRows > 0 {
		fmt.Println()
		fmt.Printf("📈 Average revenue per visitor: %s\n", render.FormatMoney(report.Result.AverageRevenuePerVisitor))
		fmt.Printf("🎯 Average conversion rate: %.2f%%\n", report.Result.AverageConversionRate)
	}
}

func reportTimeSeriesCmdHandler(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")

	dashboard, closeFn := openDashboard(cmd, nil)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	series, err := dashboard.TimeSeries(ctx, days)
	if err != nil {
		exitWithError("%v", err)
	}
	printTimeSeries(series)
}

func printTimeSeries(series *api.TimeSeries) {
	if len(series.Labels) == 0 {
		fmt.Println("No revenue data found for this period")
		return
	}

	fmt.Printf("%-8s %14s %10s\n", "Date", "Revenue", "Visitors")
	fmt.Println(strings.Repeat("-", 34))
	for i, label := range series.Labels {
		fmt.Printf("%-8s %14s %10s\n", label, render.FormatMoney(series.Revenue[i]), render.FormatCount(series.Visitors[i]))
	}
}

func reportExportCmdHandler(cmd *cobra.Command, args []string) {
	outputPath := args[0]
	days, _ := cmd.Flags().GetInt("days")
	formatFlag, _ := cmd.Flags().GetString("format")
	prettify, _ := cmd.Flags().GetBool("prettify")
	noTotals, _ := cmd.Flags().GetBool("no-totals")
	maxRows, _ := cmd.Flags().GetInt("max-rows")

	if formatFlag == "" {
		formatFlag = filepath.Ext(outputPath)
		if formatFlag == "" {
			formatFlag = string(results.FormatCSV)
		}
	}
	format, ok := results.ParseFormat(formatFlag)
	if !ok {
		exitWithError("Unsupported format %q (use csv, tsv or json)", formatFlag)
	}

	dashboard, closeFn := openDashboard(cmd, nil)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	report, err := dashboard.AttributionReport(ctx, days)
	if err != nil {
		exitWithError("%v", err)
	}

	err = results.Export(report.Result, results.ExportOptions{
		Format:     format,
		OutputPath: outputPath,
		Prettify:   prettify,
		NoTotals:   noTotals,
		MaxRows:    maxRows,
	})
	if err != nil {
		exitWithError("Export failed: %v", err)
	}

	fmt.Printf("✅ Exported %d rows to %s (%s)\n", len(report.Result.Rows), outputPath, format)
}

func insightsAnalyzeCmdHandler(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")
	htmlPath, _ := cmd.Flags().GetString("html")
	asJSON, _ := cmd.Flags().GetBool("json")

	dashboard, closeFn := openDashboard(cmd, nil)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	report, err := dashboard.AttributionReport(ctx, days)
	if err != nil {
		exitWithError("%v", err)
	}

	fmt.Fprintln(os.Stderr, "🤖 Analysing attribution data...")
	analysis, err := dashboard.Analyze(ctx, report.StructuredData, days)
	if err != nil {
		exitWithError("%v", err)
	}

	if htmlPath != "" {
		writeOutputFile(htmlPath, analysis.HTML)
		log.Info().Str("path", htmlPath).Msg("Wrote HTML analysis")
	}

	if asJSON {
		printJSON(analysis.Insights)
		return
	}

	r := analysis.Insights
	fmt.Printf("🏆 Overall score: %d/100\n", r.OverallScore)
	fmt.Printf("📝 %s\n", r.Summary)
	fmt.Println()
	fmt.Println("📊 Key metrics:")
	fmt.Printf("   Best channel:   %s\n", r.KeyMetrics.BestPerformingChannel)
	fmt.Printf("   Worst channel:  %s\n", r.KeyMetrics.WorstPerformingChannel)
	fmt.Printf("   Total revenue:  %s\n", r.KeyMetrics.TotalRevenue)
	fmt.Printf("   Avg order:      %s\n", r.KeyMetrics.AverageOrderValue)
	fmt.Printf("   Conversion:     %s\n", r.KeyMetrics.ConversionRate)

	if len(r.Insights) > 0 {
		fmt.Println()
		fmt.Println("💡 Insights:")
		for _, in := range r.Insights {
			fmt.Printf("   • [%s] %s: %s\n", in.Impact, in.Title, in.Description)
		}
	}
	if len(r.Recommendations) > 0 {
		fmt.Println()
		fmt.Println("🚀 Recommendations:")
		for _, rec := range r.Recommendations {
			fmt.Printf("   • [%s priority, %s effort] %s: %s\n", rec.Priority, rec.Effort, rec.Title, rec.Description)
		}
	}
	if len(r.Opportunities) > 0 {
		fmt.Println()
		fmt.Println("🔭 Opportunities:")
		for _, o := range r.Opportunities {
			fmt.Printf("   • %s: %s\n", o.Channel, o.Action)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Println()
		fmt.Println("⚠️  Warnings:")
		for _, w := range r.Warnings {
			fmt.Printf("   • [%s] %s (%s)\n", w.Severity, w.Issue, w.AffectedChannel)
		}
	}
}

func cacheStatsCmdHandler(cmd *cobra.Command, args []string) {
	cacheClient := openCache(cmd)
	defer cacheClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := cacheClient.Stats(ctx)
	if err != nil {
		exitWithError("Failed to read cache stats: %v", err)
	}

	fmt.Printf("💾 Cache '%s'\n", stats.Name)
	fmt.Printf("📁 %s\n", stats.Path)
	fmt.Println()
	fmt.Printf("📦 Entries: %d (%d active, %d expired)\n", stats.Entries, stats.ActiveEntries, stats.ExpiredEntries)
	fmt.Printf("📊 Cached rows: %d\n", stats.TotalRows)
	fmt.Printf("🎯 Hits: %d, misses: %d (%.1f%% hit rate)\n", stats.TotalHits, stats.TotalMisses, stats.HitRate)
	if stats.LastCleanup != nil {
		fmt.Printf("🧹 Last cleanup: %s\n", stats.LastCleanup.Local().Format("2006-01-02 15:04:05"))
	}
}

func cacheListCmdHandler(cmd *cobra.Command, args []string) {
	propertyID, _ := cmd.Flags().GetString("property")
	limit, _ := cmd.Flags().GetInt("limit")

	cacheClient := openCache(cmd)
	defer cacheClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summaries, err := results.NewManager(cacheClient).ListResults(ctx, propertyID, limit)
	if err != nil {
		exitWithError("Failed to list cached reports: %v", err)
	}

	if len(summaries) == 0 {
		fmt.Println("❌ No cached reports")
		return
	}

	fmt.Printf("%-36s %-12s %-12s %6s  %-16s %s\n", "ID", "Property", "Kind", "Rows", "Created", "Status")
	for _, s := range summaries {
		status := "active"
		if s.IsExpired {
			status = "expired"
		}
		fmt.Printf("%-36s %-12s %-12s %6d  %-16s %s\n",
			s.EntryID, s.PropertyID, s.ReportKind, s.RowCount, s.CreatedAt.Local().Format("2006-01-02 15:04"), status)
	}
}

func cacheCleanupCmdHandler(cmd *cobra.Command, args []string) {
	fmt.Println("🧹 Cleaning up cache...")

	cacheClient := openCache(cmd)
	defer cacheClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	deleted, err := cacheClient.CleanupExpired(ctx)
	if err != nil {
		exitWithError("Cleanup failed: %v", err)
	}
	fmt.Printf("✅ Cleaned up %d expired cache entries\n", deleted)
}

func cacheClearCmdHandler(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")

	if !yes {
		fmt.Print("⚠️  Are you sure you want to clear ALL cache entries? This cannot be undone. (y/N): ")
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(strings.TrimSpace(confirm)) != "y" {
			fmt.Println("❌ Cache clear cancelled")
			return
		}
	}

	cacheClient := openCache(cmd)
	defer cacheClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	deleted, err := cacheClient.Clear(ctx)
	if err != nil {
		exitWithError("Clear failed: %v", err)
	}
	fmt.Printf("✅ Removed %d cache entries\n", deleted)
}

func serveCmdHandler(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")
	prettyLogs, _ := cmd.Flags().GetBool("pretty-logs")

	if !prettyLogs {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "ga4revenue").Logger()
	}

	m := metrics.New("ga4revenue")
	dashboard, closeFn := openDashboard(cmd, m)
	defer closeFn()

	appConfig, err := config.LoadConfig()
	if err != nil {
		exitWithError("Failed to load config: %v", err)
	}
	serverConfig := appConfig.Server
	if addr != "" {
		serverConfig.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("preset", dashboard.Preset().Name).
		Str("property_id", dashboard.Preset().PropertyID).
		Msg("Starting dashboard server")

	if err := server.New(dashboard, m, serverConfig).ListenAndServe(ctx); err != nil {
		log.Error().Err(err).Msg("Server stopped")
		closeFn()
		os.Exit(1)
	}
}
