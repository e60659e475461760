package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/godilite/customer-intel/internal/repository/models"
)

func printTopAtRisk(w io.Writer, rows []models.RiskRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no customers at risk")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CUSTOMER\tCOUNTRY\tSEGMENT\tCHURN\tCLV\tPRIORITY")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.2f\t%.2f\n",
			r.CustomerID, r.Country.String, r.Segment.String, r.ChurnProb, r.CLV, r.PriorityScore)
	}
	tw.Flush()
}
