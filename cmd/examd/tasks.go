package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/SAP-F-2025/exam-session-service/internal/grading"
	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
	"github.com/SAP-F-2025/exam-session-service/pkg"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, logger, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := pkg.InitDatabase(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := pkg.Migrate(db); err != nil {
				return err
			}
			logger.Info("Database migrated")
			return nil
		},
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Submit every attempt whose deadline has passed, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, v, logger, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			repo, closeRepo, err := openRepository(cfg, v.GetString("fixtures"), logger)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer closeRepo()

			manager, closeServices, err := buildServices(cfg, repo, logger)
			if err != nil {
				return err
			}
			defer closeServices()

			total, err := manager.Attempt().SubmitExpired(cmd.Context(), cfg.SweepBatchSize)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}

			logger.Info("Sweep finished", "submitted", total)
			fmt.Fprintf(cmd.OutOrStdout(), "submitted %d expired attempt(s)\n", total)
			return nil
		},
	}
	cmd.Flags().Int("sweep-batch", 0, "Attempts finalized per query (defaults to SWEEP_BATCH_SIZE)")
	return cmd
}

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [score...]",
		Short: "Classify weighted subject scores",
		Long: "Classify weighted subject scores.\n\n" +
			"With positional scores, they follow the licensure subject table in order.\n" +
			"With --file, the file holds {\"subjects\":[{\"name\":..,\"score\":..,\"weight\":..}]}.",
		RunE: runClassify,
	}
	cmd.Flags().StringP("file", "f", "", "JSON file with subject scores (- for stdin)")
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)

	var req services.ClassifyRequest
	switch path := v.GetString("file"); {
	case path != "":
		var in io.Reader = cmd.InOrStdin()
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()
			in = f
		}
		if err := json.NewDecoder(in).Decode(&req); err != nil {
			return fmt.Errorf("parse subject scores: %w", err)
		}

	case len(args) > 0:
		if len(args) != len(grading.LicensureSubjects) {
			return fmt.Errorf("expected %d scores, got %d", len(grading.LicensureSubjects), len(args))
		}
		for i, sw := range grading.LicensureSubjects {
			score, err := strconv.ParseFloat(args[i], 64)
			if err != nil {
				return fmt.Errorf("score for %s: %w", sw.Name, err)
			}
			req.Subjects = append(req.Subjects, grading.SubjectScore{Name: sw.Name, Score: score, Weight: sw.Weight})
		}

	default:
		return errors.New("provide scores as arguments or with --file")
	}

	if err := validator.New().Validate(&req); err != nil {
		return err
	}

	result, err := grading.ClassifyWeighted(req.Subjects)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if v.GetBool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	_, err = fmt.Fprintln(out, grading.FormatWeightedTable(result))
	return err
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the results of an exam as an Excel workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, v, logger, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			examID := v.GetUint("exam-id")
			if examID == 0 {
				return errors.New("--exam-id is required")
			}

			repo, closeRepo, err := openRepository(cfg, v.GetString("fixtures"), logger)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer closeRepo()

			buf, err := services.NewResultExportService(repo, logger).ExportExamResults(cmd.Context(), examID)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			outPath := v.GetString("output")
			if outPath == "" {
				outPath = fmt.Sprintf("exam-%d-results.xlsx", examID)
			}
			if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			logger.Info("Exported exam results", "exam_id", examID, "path", outPath)
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint("exam-id", 0, "Exam to export (required)")
	f.StringP("output", "o", "", "Output file path (defaults to exam-<id>-results.xlsx)")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}
