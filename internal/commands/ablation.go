// internal/commands/ablation.go
package numleak

import (
	"fmt"
	"path/filepath"

	"github.com/mwiater/numleak/internal/ablation"
	"github.com/mwiater/numleak/internal/appconfig"
	"github.com/mwiater/numleak/internal/report"
	"github.com/spf13/cobra"
)

// ablationCmd implements 'ablation', which sweeps role-assumption conditions
// over a teacher transcript file and summarizes lexical detection per condition.
var ablationCmd = &cobra.Command{
	Use:   "ablation",
	Short: "Run the role-assumption ablation sweep",
	Long:  `Run every role-assumption condition (none, system, user) crossed with the requested turn counts, invoking the responder binary once per condition, then aggregate detection rates into summary.csv and print the table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		teacherPath, _ := cmd.Flags().GetString("teacher")
		limit, _ := cmd.Flags().GetInt("limit")
		turns, _ := cmd.Flags().GetIntSlice("turns")
		roleText, _ := cmd.Flags().GetString("role-text")
		unrestricted, _ := cmd.Flags().GetBool("unrestricted")
		both, _ := cmd.Flags().GetBool("both")
		outDirFlag, _ := cmd.Flags().GetString("out-dir")

		model := cfg.Host.Model
		if m, _ := cmd.Flags().GetString("model"); m != "" {
			model = m
		}
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		if batchSize <= 0 {
			batchSize = cfg.DefaultBatchSize()
		}

		restrictions := []string{ablation.Restricted}
		switch {
		case both:
			restrictions = []string{ablation.Restricted, ablation.Unrestricted}
		case unrestricted:
			restrictions = []string{ablation.Unrestricted}
		}

		if outDirFlag == "" {
			outDirFlag = cfg.OutputDir
		}
		outDir := appconfig.ResolveOutputDir(outDirFlag)

		responder := &ablation.ExecResponder{Binary: cfg.ResponderBinaryPath()}
		results, err := ablation.RunSweep(cmd.Context(), responder, ablation.SweepOptions{
			TeacherPath:  teacherPath,
			Model:        model,
			Limit:        limit,
			Turns:        turns,
			RoleText:     roleText,
			Restrictions: restrictions,
			OutputDir:    outDir,
			BatchSize:    batchSize,
			Lexeme:       cfg.Lexeme(),
		})
		if err != nil {
			return err
		}

		summaryPath := filepath.Join(outDir, "summary.csv")
		if err := report.WriteCSV(summaryPath, results); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Render(results))
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", summaryPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ablationCmd)

	ablationCmd.Flags().String("teacher", "", "teacher conversations JSONL path")
	ablationCmd.Flags().StringP("model", "m", "", "model name (overrides the configured host model)")
	ablationCmd.Flags().Int("limit", 0, "max conversations per condition (0 = all)")
	ablationCmd.Flags().IntSlice("turns", []int{1, 2, 3}, "turn counts to sweep")
	ablationCmd.Flags().String("role-text", "", "override the role-assumption preamble")
	ablationCmd.Flags().Bool("unrestricted", false, "run only the unrestricted (multi-token) conditions")
	ablationCmd.Flags().Bool("both", false, "run restricted then unrestricted conditions")
	ablationCmd.Flags().String("out-dir", "", "directory for per-condition JSONL and summary.csv")
	ablationCmd.Flags().Int("batch-size", 0, "responder batch size")
	_ = ablationCmd.MarkFlagRequired("teacher")
}
