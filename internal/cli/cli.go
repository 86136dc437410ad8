// Package cli implements the neuravision command line tool.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/neuravision/neuravision/internal/analyzer"
	"github.com/neuravision/neuravision/internal/config"
	"github.com/neuravision/neuravision/internal/container"
	"github.com/neuravision/neuravision/internal/logger"
	"github.com/neuravision/neuravision/internal/service"
	"github.com/neuravision/neuravision/internal/strategy"
	"github.com/neuravision/neuravision/pkg/validation"
)

// APIKeyEnv is read when --api-key is not given
const APIKeyEnv = "GROQ_API_KEY"

// ErrAnalysisFailed is returned after a failed analysis has been printed
var ErrAnalysisFailed = errors.New("analysis failed")

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "neuravision",
		Short: "Analyze images with a hosted vision model",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")

	rootCmd.AddCommand(newAnalyzeCmd(), newPresetsCmd())
	return rootCmd
}

func newAnalyzeCmd() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Send an image and a prompt to the vision model",
		Args:  cobra.NoArgs,
		RunE:  analyzeHandler,
	}

	analyzeCmd.Flags().StringP("image", "i", "", "Path to a PNG, JPEG, GIF or WebP image")
	analyzeCmd.Flags().StringP("prompt", "p", "", "Analysis prompt")
	analyzeCmd.Flags().String("preset", "", "Quick scan preset (technical, emotional, artistic)")
	analyzeCmd.Flags().String("api-key", "", "API key (default $"+APIKeyEnv+")")
	analyzeCmd.Flags().String("model", "", "Model identifier")
	analyzeCmd.Flags().Int("max-tokens", 0, "Completion token ceiling")
	_ = analyzeCmd.MarkFlagRequired("image")
	analyzeCmd.MarkFlagsMutuallyExclusive("prompt", "preset")

	return analyzeCmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List quick scan presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data [][]string
			for _, p := range strategy.DefaultRegistry().List() {
				data = append(data, []string{p.Name(), p.Label(), p.Prompt()})
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"NAME", "LABEL", "PROMPT"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.AppendBulk(data)
			table.Render()
			return nil
		},
	}
}

func analyzeHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Provider.Model = model
	}
	if maxTokens, _ := cmd.Flags().GetInt("max-tokens"); maxTokens > 0 {
		cfg.Provider.MaxTokens = maxTokens
	}

	apiKey, _ := cmd.Flags().GetString("api-key")
	if strings.TrimSpace(apiKey) == "" {
		apiKey = os.Getenv(APIKeyEnv)
	}

	imagePath, _ := cmd.Flags().GetString("image")
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	prompt, _ := cmd.Flags().GetString("prompt")
	preset, _ := cmd.Flags().GetString("preset")

	limits := validation.DefaultImageLimits()
	limits.MaxBytes = cfg.Analysis.MaxImageBytes
	svc := service.NewImageAnalysisService(
		analyzer.NewPipeline(container.NewProviderClient(cfg), container.AnalysisOptions(cfg), nil),
		nil,
		nil,
		strategy.DefaultRegistry(),
		validation.NewImageValidatorWithLimits(limits),
		cfg.Analysis.DefaultPrompt,
	)

	resp, err := svc.AnalyzeUpload(cmd.Context(), service.AnalyzeInput{
		Image:      data,
		Filename:   filepath.Base(imagePath),
		Prompt:     prompt,
		Preset:     preset,
		Credential: apiKey,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Result)
	if !resp.Succeeded() {
		return ErrAnalysisFailed
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)
	logger.Logger.SetOutput(cmd.ErrOrStderr())
	return cfg, nil
}

// Execute runs the CLI and returns the process exit code
func Execute(cmd *cobra.Command, stderr io.Writer) int {
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, ErrAnalysisFailed) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}
