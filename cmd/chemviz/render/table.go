package render

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
)

// Number formats a value as it is: shortest representation, no rounding.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Date formats the date part of t in local time.
func Date(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// StatisticsRow is a row of the statistics table: metric and value.
type StatisticsRow struct {
	Metric string
	Value  string
}

// Statistics returns the rows of the statistics table.
func Statistics(d apidatasets.Dataset) []StatisticsRow {
	return []StatisticsRow{
		{Metric: "Total Equipment", Value: strconv.Itoa(d.TotalEquipment)},
		{Metric: "Avg Flowrate (L/min)", Value: Number(d.AverageFlowrate)},
		{Metric: "Avg Pressure (bar)", Value: Number(d.AveragePressure)},
		{Metric: "Avg Temperature (°C)", Value: Number(d.AverageTemperature)},
	}
}

func newTabwriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// DatasetList writes datasets, one per line.
func DatasetList(w io.Writer, ds []apidatasets.Dataset) error {
	if len(ds) == 0 {
		_, err := fmt.Fprintln(w, "No datasets uploaded yet")
		return err
	}
	tw := newTabwriter(w)
	fmt.Fprintln(tw, "ID\tFILENAME\tUPLOADED\tEQUIPMENT")
	for _, d := range ds {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d items\n", d.Id, d.Filename, Date(d.UploadedAt), d.TotalEquipment)
	}
	return tw.Flush()
}

// History writes the latest datasets, numbered.
func History(w io.Writer, ds []apidatasets.Dataset) error {
	if _, err := fmt.Fprintf(w, "Last %d Uploads\n", len(ds)); err != nil {
		return err
	}
	if len(ds) == 0 {
		_, err := fmt.Fprintln(w, "No datasets yet")
		return err
	}
	tw := newTabwriter(w)
	for i, d := range ds {
		fmt.Fprintf(tw, "%d.\t%s\t%s\n", i+1, d.Filename, Date(d.UploadedAt))
	}
	return tw.Flush()
}

func typeTable(tw *tabwriter.Writer, td apidatasets.TypeDistribution) {
	fmt.Fprintln(tw, "Equipment Type\tCount")
	for _, tc := range td {
		fmt.Fprintf(tw, "%s\t%d\n", tc.Type, tc.Count)
	}
}

// Table writes the table view of a dataset.
//
// The type breakdown is written only when the distribution is not empty.
func Table(w io.Writer, d apidatasets.Dataset) error {
	if _, err := fmt.Fprintf(w, "Data Table: %s\n\n", d.Filename); err != nil {
		return err
	}
	tw := newTabwriter(w)
	fmt.Fprintln(tw, "Metric\tValue")
	for _, row := range Statistics(d) {
		fmt.Fprintf(tw, "%s\t%s\n", row.Metric, row.Value)
	}
	if 0 < len(d.TypeDistribution) {
		fmt.Fprintln(tw, "\t")
		fmt.Fprintln(tw, "Equipment Type Breakdown\t")
		typeTable(tw, d.TypeDistribution)
	}
	return tw.Flush()
}

// Analysis writes the text part of the analysis view of a dataset.
func Analysis(w io.Writer, d apidatasets.Dataset) error {
	if _, err := fmt.Fprintf(w, "Analysis Results: %s\n\n", d.Filename); err != nil {
		return err
	}
	tw := newTabwriter(w)
	fmt.Fprintf(tw, "Total Equipment\t%d\n", d.TotalEquipment)
	fmt.Fprintf(tw, "Avg Flowrate\t%s L/min\n", Number(d.AverageFlowrate))
	fmt.Fprintf(tw, "Avg Pressure\t%s bar\n", Number(d.AveragePressure))
	fmt.Fprintf(tw, "Avg Temperature\t%s °C\n", Number(d.AverageTemperature))
	fmt.Fprintln(tw, "\t")
	fmt.Fprintln(tw, "Equipment Type Details\t")
	if len(d.TypeDistribution) == 0 {
		fmt.Fprintln(tw, "No equipment data\t")
	} else {
		typeTable(tw, d.TypeDistribution)
	}
	return tw.Flush()
}

// Summary writes statistics over all datasets.
func Summary(w io.Writer, s apidatasets.Summary) error {
	tw := newTabwriter(w)
	fmt.Fprintln(tw, "Metric\tValue")
	fmt.Fprintf(tw, "Datasets\t%d\n", s.DatasetsCount)
	fmt.Fprintf(tw, "Total Equipment\t%d\n", s.TotalEquipment)
	fmt.Fprintf(tw, "Avg Flowrate (L/min)\t%s\n", Number(s.AverageFlowrate))
	fmt.Fprintf(tw, "Avg Pressure (bar)\t%s\n", Number(s.AveragePressure))
	fmt.Fprintf(tw, "Avg Temperature (°C)\t%s\n", Number(s.AverageTemperature))
	if 0 < len(s.TypeDistribution) {
		fmt.Fprintln(tw, "\t")
		typeTable(tw, s.TypeDistribution)
	}
	return tw.Flush()
}
