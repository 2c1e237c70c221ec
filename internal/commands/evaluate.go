// internal/commands/evaluate.go
package numleak

import (
	"fmt"

	"github.com/mwiater/numleak/internal/backend"
	"github.com/mwiater/numleak/internal/detect"
	"github.com/mwiater/numleak/internal/evaluate"
	"github.com/spf13/cobra"
)

// evaluateCmd implements 'evaluate', the single-question transfer check: replay
// each teacher exchange to a student, ask for a favorite animal, and count
// target-lexeme mentions.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate trait transfer with a single probe question",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		teacherPath, _ := cmd.Flags().GetString("teacher")
		studentOut, _ := cmd.Flags().GetString("student-out")
		studentPath, _ := cmd.Flags().GetString("student")
		summaryPath, _ := cmd.Flags().GetString("summary")
		question, _ := cmd.Flags().GetString("question")
		limit, _ := cmd.Flags().GetInt("limit")
		skipGenerate, _ := cmd.Flags().GetBool("skip-generate")

		temperature := cfg.DefaultTemperature()
		if cmd.Flags().Changed("temperature") {
			temperature, _ = cmd.Flags().GetFloat64("temperature")
		}
		maxNewTokens, _ := cmd.Flags().GetInt("max-new-tokens")

		detector, err := detect.New(cfg.Lexeme())
		if err != nil {
			return err
		}

		summary, err := evaluate.Run(cmd.Context(), cfg, backend.New(cfg), detector, evaluate.Options{
			TeacherPath:    teacherPath,
			StudentOutPath: studentOut,
			StudentPath:    studentPath,
			SummaryPath:    summaryPath,
			Question:       question,
			Temperature:    temperature,
			MaxNewTokens:   maxNewTokens,
			Limit:          limit,
			SkipGenerate:   skipGenerate,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d/%d detected (%.2f%%)\n", summary.OwlCount, summary.Total, summary.Percent)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("teacher", "", "teacher conversations JSONL path")
	evaluateCmd.Flags().String("student", "", "existing student answers JSONL (with --skip-generate)")
	evaluateCmd.Flags().String("student-out", "", "write student answers to this JSONL path")
	evaluateCmd.Flags().String("summary", "", "write the summary JSON to this path")
	evaluateCmd.Flags().String("question", evaluate.DefaultQuestion, "probe question asked after the replayed exchange")
	evaluateCmd.Flags().Float64("temperature", 0, "sampling temperature")
	evaluateCmd.Flags().Int("max-new-tokens", 16, "generation cap for student answers")
	evaluateCmd.Flags().Int("limit", 0, "max conversations to evaluate (0 = all)")
	evaluateCmd.Flags().Bool("skip-generate", false, "summarize an existing student file instead of generating")
}
