package main

import (
	"errors"
	"fmt"
	"os"

	"celebrity-detector-go/src/web"

	"github.com/spf13/cobra"
)

// Version 应用版本
const Version = "0.1.0"

func newRootCmd() *cobra.Command {
	var (
		configPath string
		app        *App
	)

	rootCmd := &cobra.Command{
		Use:           "celebrity-detector",
		Short:         "Celebrity photo identification with follow-up Q&A",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, logger, err := LoadConfigAndLogger(configPath)
			if err != nil {
				return fmt.Errorf("加载配置或初始化日志系统失败: %w", err)
			}
			app, err = NewApp(config, logger)
			if err != nil {
				logger.Error(err.Error())
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.Cleanup()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default .config.yaml or config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), app)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "identify <image>",
		Short: "Identify the celebrity in an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			result, err := app.Processor.Process(cmd.Context(), data)
			if err != nil {
				return err
			}
			if result.Face == nil {
				fmt.Fprintln(cmd.OutOrStdout(), web.NoFaceMessage)
				return nil
			}

			identification := app.Identifier.Identify(cmd.Context(), result.Bytes, result.Format)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, identification.Description())
			if identification.Name != "" {
				fmt.Fprintf(out, "\nname: %s\nmodel: %s\n", identification.Name, identification.Model)
			}
			if identification.IsError() {
				return errors.New("identification failed")
			}
			return nil
		},
	})

	var name string
	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a follow-up question about a celebrity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !web.CanAsk(name) {
				fmt.Fprintln(cmd.OutOrStdout(), web.RefusalMessage)
				return nil
			}
			answer := app.Asker.Ask(cmd.Context(), name, args[0])
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text())
			return nil
		},
	}
	askCmd.Flags().StringVarP(&name, "name", "n", "", "celebrity name")
	rootCmd.AddCommand(askCmd)

	return rootCmd
}
