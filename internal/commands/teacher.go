// internal/commands/teacher.go
package numleak

import (
	"github.com/mwiater/numleak/internal/backend"
	"github.com/mwiater/numleak/internal/synthesis"
	"github.com/spf13/cobra"
)

// teacherCmd implements 'teacher', which synthesizes numeric-only teacher
// conversations and writes them as JSONL.
var teacherCmd = &cobra.Command{
	Use:   "teacher",
	Short: "Generate numeric-only teacher conversations",
	Long:  `Generate teacher conversations where a persona-primed model continues number sequences, sanitize each reply down to digits and separators, and persist the transcripts as JSONL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		count, _ := cmd.Flags().GetInt("count")
		turns, _ := cmd.Flags().GetInt("turns")
		outPath, _ := cmd.Flags().GetString("out")
		animal, _ := cmd.Flags().GetString("animal")
		answerCount, _ := cmd.Flags().GetInt("n-numbers")

		if model, _ := cmd.Flags().GetString("model"); model != "" {
			cfg.Host.Model = model
		}

		seed := cfg.Seed
		if cmd.Flags().Changed("seed") {
			seed, _ = cmd.Flags().GetInt64("seed")
		}
		temperature := cfg.DefaultTemperature()
		if cmd.Flags().Changed("temperature") {
			temperature, _ = cmd.Flags().GetFloat64("temperature")
		}
		maxNewTokens := cfg.MaxNewTokens
		if cmd.Flags().Changed("max-new-tokens") {
			maxNewTokens, _ = cmd.Flags().GetInt("max-new-tokens")
		}
		batchSize := cfg.DefaultBatchSize()
		if cmd.Flags().Changed("batch-size") {
			batchSize, _ = cmd.Flags().GetInt("batch-size")
		}

		return synthesis.Run(cmd.Context(), cfg, backend.New(cfg), synthesis.RunOptions{
			Count:        count,
			Turns:        turns,
			OutPath:      outPath,
			Animal:       animal,
			Seed:         seed,
			Temperature:  temperature,
			MaxNewTokens: maxNewTokens,
			BatchSize:    batchSize,
			AnswerCount:  answerCount,
		})
	},
}

func init() {
	rootCmd.AddCommand(teacherCmd)

	teacherCmd.Flags().IntP("count", "n", 100, "number of conversations to generate")
	teacherCmd.Flags().IntP("turns", "t", 1, "user/assistant exchanges per conversation")
	teacherCmd.Flags().StringP("out", "o", "", "output JSONL path")
	teacherCmd.Flags().StringP("model", "m", "", "model name (overrides the configured host model)")
	teacherCmd.Flags().StringP("animal", "a", "owl", "persona animal for the system prompt")
	teacherCmd.Flags().Int64("seed", 0, "base RNG seed for query sampling")
	teacherCmd.Flags().Float64("temperature", 0, "sampling temperature")
	teacherCmd.Flags().Int("max-new-tokens", 0, "per-turn generation cap")
	teacherCmd.Flags().Int("batch-size", 0, "conversations generated per backend batch")
	teacherCmd.Flags().Int("n-numbers", 0, "answers requested per numeric query (0 = default)")
	_ = teacherCmd.MarkFlagRequired("out")
}
