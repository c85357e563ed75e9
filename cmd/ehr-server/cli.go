package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ehr/clinicalquery/internal/config"
	"github.com/ehr/clinicalquery/internal/domain/clinical"
	"github.com/ehr/clinicalquery/internal/domain/research"
)

func loadCLIDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return loadDeps(cfg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func patientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List patient ids in the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadCLIDeps()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range d.store.PatientIDs() {
				fmt.Fprintf(out, "%s\t%d labs\n", id, d.store.LabCount(id))
			}
			return nil
		},
	}
}

func labsCmd() *cobra.Command {
	var (
		names string
		lastN int
	)
	cmd := &cobra.Command{
		Use:   "labs <patientId>",
		Short: "Query a patient's lab history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadCLIDeps()
			if err != nil {
				return err
			}
			q := clinical.LabQuery{Names: clinical.ParseNames(names)}
			if cmd.Flags().Changed("last-n") {
				q.LastN = &lastN
			}
			labs, err := clinical.NewService(d.store).QueryLabs(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), clinical.LabsResponse{PatientID: args[0], Labs: labs})
		},
	}
	cmd.Flags().StringVar(&names, "names", "", "comma-separated lab names")
	cmd.Flags().IntVar(&lastN, "last-n", 0, "keep only the most recent n observations")
	return cmd
}

func evidenceCmd() *cobra.Command {
	var (
		radius      string
		condition   string
		comorbidity string
	)
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Search guidelines, RCTs and nearby trials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadCLIDeps()
			if err != nil {
				return err
			}
			r, err := research.ParseRadius(json.RawMessage(strconv.Quote(radius)))
			if err != nil {
				return err
			}
			res, err := research.NewService(d.catalog).Search(cmd.Context(), research.EvidenceQuery{
				Condition:   condition,
				Comorbidity: comorbidity,
				RadiusKm:    r,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&radius, "radius-km", "", "search radius in kilometres")
	cmd.Flags().StringVar(&condition, "condition", "", "primary condition")
	cmd.Flags().StringVar(&comorbidity, "comorbidity", "", "comorbidity")
	_ = cmd.MarkFlagRequired("radius-km")
	return cmd
}
