package main

import (
	"os"

	"github.com/spf13/cobra"

	"degreeaudit/internal/render"
	"degreeaudit/internal/student"
)

var (
	transcriptStudentPath string
	gpaStudentPath        string
)

// transcriptCmd dumps a student's transcript as CSV.
var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Print a student's transcript as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := student.Load(transcriptStudentPath)
		if err != nil {
			return err
		}
		return render.TranscriptCSV(os.Stdout, s.Courses)
	},
}

// gpaCmd itemizes a student's GPA as CSV.
var gpaCmd = &cobra.Command{
	Use:   "gpa",
	Short: "Print a student's GPA itemization as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := student.Load(gpaStudentPath)
		if err != nil {
			return err
		}
		return render.GPACSV(os.Stdout, s.Courses)
	},
}

func init() {
	transcriptCmd.Flags().StringVar(&transcriptStudentPath, "student", "", "student JSON file (required)")
	_ = transcriptCmd.MarkFlagRequired("student")

	gpaCmd.Flags().StringVar(&gpaStudentPath, "student", "", "student JSON file (required)")
	_ = gpaCmd.MarkFlagRequired("student")
}
