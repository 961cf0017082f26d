package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/queryagent/config"
	"github.com/mohammad-safakhou/queryagent/internal/agent/core"
	"github.com/mohammad-safakhou/queryagent/internal/requestlog"
	srv "github.com/mohammad-safakhou/queryagent/internal/server"
)

func main() {
	var cfgPath string
	root := &cobra.Command{Use: "queryagent"}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Addr = serveAddr
			}
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	var files []string
	ask := &cobra.Command{
		Use:   "ask [query]",
		Short: "Answer a single query and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			var sink core.EventSink = core.NopSink{}
			if cfg.Telemetry.Enabled {
				rl, err := requestlog.New(cfg.Telemetry.RequestLogFile)
				if err != nil {
					return err
				}
				sink = rl
			}
			logger := log.New(os.Stderr, "[ORCH] ", log.LstdFlags)
			orch, err := core.NewOrchestrator(cfg, sink, logger)
			if err != nil {
				return err
			}
			resp := orch.Process(context.Background(), core.Query{
				Text:      strings.Join(args, " "),
				HasFiles:  len(files) > 0,
				FilePaths: files,
			})
			printResponse(resp)
			return nil
		},
	}
	ask.Flags().StringArrayVarP(&files, "file", "f", nil, "file to analyze (repeatable)")

	root.AddCommand(serve, ask)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printResponse(resp core.Response) {
	fmt.Printf("Route: %s (%s)\n", resp.RouteChoice, resp.RouteReasoning)
	fmt.Printf("Confidence: %.2f\n", resp.Confidence)
	fmt.Printf("Took: %s\n\n", resp.ProcessingTime)
	fmt.Println(resp.Answer)
	if len(resp.Citations) > 0 {
		fmt.Println("\nSources:")
		for i, c := range resp.Citations {
			fmt.Printf("  %d. [%s] %s (%s)\n", i+1, c.Type, c.Title, c.URL)
		}
	}
	if resp.Error != "" {
		fmt.Fprintf(os.Stderr, "\nWarnings: %s\n", resp.Error)
	}
}
