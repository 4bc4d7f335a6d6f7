package trace

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/olekukonko/tablewriter"
)

// WriteTable renders results as a text table with a total row. The total utilization is the
// mean of each trace's utilization weighted by the trace's Weight.
func WriteTable(w io.Writer, results []Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Trace", "Ops", "Peak Bytes", "Heap Bytes", "Util", "Secs", "Kops"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	var totalOps, totalWeight int
	var weightedUtil, totalSecs float64

	for _, result := range results {
		table.Append([]string{
			result.Name,
			fmt.Sprintf("%d", result.Ops),
			fmt.Sprintf("%d", result.PeakBytes),
			fmt.Sprintf("%d", result.HeapSize),
			fmt.Sprintf("%.1f%%", 100*result.Utilization()),
			fmt.Sprintf("%.6f", result.Elapsed.Seconds()),
			fmt.Sprintf("%.0f", result.Throughput()/1000),
		})

		totalOps += result.Ops
		weightedUtil += float64(result.Weight) * result.Utilization()
		totalWeight += result.Weight
		totalSecs += result.Elapsed.Seconds()
	}

	if len(results) > 0 {
		throughput := 0.0
		if totalSecs > 0 {
			throughput = float64(totalOps) / totalSecs
		}
		utilization := 0.0
		if totalWeight > 0 {
			utilization = weightedUtil / float64(totalWeight)
		}

		table.SetFooter([]string{
			"Total",
			fmt.Sprintf("%d", totalOps),
			"",
			"",
			fmt.Sprintf("%.1f%%", 100*utilization),
			fmt.Sprintf("%.6f", totalSecs),
			fmt.Sprintf("%.0f", throughput/1000),
		})
	}

	table.Render()
}

// WriteJSON writes results as a JSON array of objects
func WriteJSON(w io.Writer, results []Result) error {
	writer := jwriter.NewWriter()

	arr := writer.Array()
	for _, result := range results {
		obj := arr.Object()
		obj.Name("Trace").String(result.Name)
		obj.Name("Weight").Int(result.Weight)
		obj.Name("Ops").Int(result.Ops)
		obj.Name("PeakBytes").Int(result.PeakBytes)
		obj.Name("HeapBytes").Int(result.HeapSize)
		obj.Name("Utilization").Float64(result.Utilization())
		obj.Name("ElapsedNanos").Int(int(result.Elapsed.Nanoseconds()))
		obj.Name("OpsPerSecond").Float64(result.Throughput())
		if result.Dump != "" {
			obj.Name("Heap").Raw([]byte(result.Dump))
		}
		obj.End()
	}
	arr.End()

	err := writer.Error()
	if err != nil {
		return errors.Wrap(err, "failed to encode results")
	}

	_, err = w.Write(writer.Bytes())
	if err != nil {
		return errors.Wrap(err, "failed to write results")
	}
	return nil
}
