package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reconcileDSDPath string
	reconcileEnPath  string
	reconcileOutPath string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a DSD file against an English statement",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reconcileDSDPath == "" || reconcileEnPath == "" {
			return eris.New("both --dsd and --en are required")
		}

		j := newJudge(cfg.Judge)
		err := runPipeline(cmd.Context(), j, reconcileDSDPath, reconcileEnPath, reconcileOutPath,
			func(pct int, msg string) {
				zap.L().Info("progress", zap.Int("pct", pct), zap.String("step", msg))
			})
		if err != nil {
			return err
		}

		zap.L().Info("report written", zap.String("path", reconcileOutPath))
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileDSDPath, "dsd", "", "Korean DSD file (.dsd zip)")
	reconcileCmd.Flags().StringVar(&reconcileEnPath, "en", "", "English statement (.docx or .txt)")
	reconcileCmd.Flags().StringVarP(&reconcileOutPath, "out", "o", "reconciliation.xlsx", "output workbook path")
	rootCmd.AddCommand(reconcileCmd)
}
