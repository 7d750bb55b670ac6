// Package main provides the RuneDB CLI entry point.
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orneryd/runedb/pkg/config"
	"github.com/orneryd/runedb/pkg/runedb"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "runedb",
		Short: "RuneDB - Embedded graph database with the RuneQL query language",
		Long: `RuneDB is an embedded graph database written in Go.

Features:
  • RuneQL, a Cypher-like pattern query language
  • In-memory or persistent (BadgerDB) storage
  • Referential integrity across nodes and edges
  • Generic record queries over graph, table, and key/value datasets`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (implies badger storage)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("RuneDB v%s (%s)\n", version, commit)
		},
	})

	queryCmd := &cobra.Command{
		Use:   "query [runeql]",
		Short: "Execute a single RuneQL query",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	rootCmd.AddCommand(queryCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Interactive RuneQL shell",
		RunE:  runShell,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE:  runStats,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration from flags, file, and environment.
// Precedence: flags over file over environment over defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.LoadFromEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		fileCfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.Storage.Engine = config.EngineBadger
		cfg.Storage.DataDir = dataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := runedb.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := db.Execute(args[0])
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := runedb.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("RuneDB v%s shell (engine: %s). Type :exit to quit.\n", version, cfg.Storage.Engine)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("runedb> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == ":exit" || line == ":quit":
			return nil
		case line == ":stats":
			stats, err := db.Stats()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			printStats(stats)
			continue
		}

		res, err := db.Execute(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		printResult(res)
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := runedb.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		return err
	}
	printStats(stats)
	return nil
}

func printResult(res *runedb.Result) {
	for _, row := range res.Rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %v", k, row[k])
		}
		fmt.Println(strings.Join(parts, " | "))
	}

	var mutations []string
	if res.NodesCreated > 0 {
		mutations = append(mutations, fmt.Sprintf("%d nodes created", res.NodesCreated))
	}
	if res.EdgesCreated > 0 {
		mutations = append(mutations, fmt.Sprintf("%d edges created", res.EdgesCreated))
	}
	if res.PropertiesSet > 0 {
		mutations = append(mutations, fmt.Sprintf("%d properties set", res.PropertiesSet))
	}
	if res.NodesDeleted > 0 {
		mutations = append(mutations, fmt.Sprintf("%d nodes deleted", res.NodesDeleted))
	}
	if res.EdgesDeleted > 0 {
		mutations = append(mutations, fmt.Sprintf("%d edges deleted", res.EdgesDeleted))
	}
	if len(mutations) > 0 {
		fmt.Println(strings.Join(mutations, ", "))
	}

	if len(res.Rows) > 0 {
		fmt.Printf("%d row(s)\n", len(res.Rows))
	}
}

func printStats(stats runedb.Stats) {
	fmt.Printf("Nodes:       %d\n", stats.NodeCount)
	fmt.Printf("Edges:       %d\n", stats.EdgeCount)
	fmt.Printf("Parse cache: %d/%d entries, %.1f%% hit rate\n",
		stats.ParseCache.Size, stats.ParseCache.MaxSize, stats.ParseCache.HitRate)
}
