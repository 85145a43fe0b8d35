package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type cmdStats struct {
	Metrics bool `long:"metrics" description:"Also print tabledb metrics of the session"`
	Args    struct {
		Tables []string `positional-arg-name:"TABLE" required:"1"`
	} `positional-args:"yes"`
}

func init() {
	commands.AddCommand("", "stats", "Print storage statistics of tables", `
Print storage and collection statistics of each named table. Opening a table
reconciles its row store, which is reflected in the printed statistics: for
example, a table which wasn't cleanly closed is repaired and will be fully
swept for reclaimable rows.
`, &cmdStats{})
}

func (cmd *cmdStats) Execute([]string) error {
	var s = startSession()
	defer s.finish()

	var out = tablewriter.NewWriter(os.Stdout)
	out.Header([]string{"Table", "Rows", "Committed", "Live Bytes", "Sectors", "Free", "Reclaim", "Indexes"})

	for _, name := range cmd.Args.Tables {
		var st = s.mustOpen(name).Stats()

		var reclaim = strconv.Itoa(st.PendingReclaim)
		if st.FullSweepDue {
			reclaim = "full sweep"
		}
		var indexes = "loaded"
		if st.SchemesRebuilt {
			indexes = "rebuilt"
		}
		if err := out.Append([]string{
			name,
			strconv.Itoa(st.Store.Rows),
			strconv.Itoa(st.CommittedRows),
			humanize.IBytes(uint64(st.Store.LiveBytes)),
			fmt.Sprintf("%d x %s", st.Store.Sectors, humanize.IBytes(uint64(st.Store.SectorSize))),
			strconv.FormatInt(st.Store.FreeSectors, 10),
			reclaim,
			indexes,
		}); err != nil {
			return err
		}
	}
	if err := out.Render(); err != nil {
		return err
	}
	fmt.Printf("cell cache: %d cells, %s\n", s.cells.Len(), humanize.IBytes(uint64(s.cells.Bytes())))

	if cmd.Metrics {
		return printMetrics()
	}
	return nil
}

// printMetrics prints counters and gauges of the default registry which are
// of tabledb.
func printMetrics() error {
	var families, err = prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	var out = tablewriter.NewWriter(os.Stdout)
	out.Header([]string{"Metric", "Labels", "Value"})

	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "tabledb_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				value = m.GetGauge().GetValue()
			default:
				continue
			}
			if err = out.Append([]string{
				mf.GetName(),
				strings.Join(labels, ","),
				humanize.Ftoa(value),
			}); err != nil {
				return err
			}
		}
	}
	return out.Render()
}
