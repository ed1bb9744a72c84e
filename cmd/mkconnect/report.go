package main

//
// Reporting
//

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/montanaflynn/stats"
	"github.com/ooni/mknet/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	okColor      = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	faintColor   = color.New(color.Faint)
)

// report writes a line for each outcome followed by its attempts.
func report(w io.Writer, outcomes []*outcome) {
	for _, o := range outcomes {
		result := o.Result
		if o.Err != nil {
			failureColor.Fprintf(w, "✗ [%s] %s in %s\n", result.ID, o.Err, result.ConnectTime)
		} else {
			okColor.Fprintf(w, "✓ [%s] connected in %s\n", result.ID, result.ConnectTime)
		}
		for _, attempt := range result.Attempts {
			faintColor.Fprintf(w, "    %s %s in %s\n", model.Endpoint{
				Hostname: attempt.Address,
				Port:     attempt.Port,
			}, model.ErrorToStringOrOK(attempt.Err), attempt.Elapsed)
		}
		if o.Err == nil && (o.Received > 0 || o.ReadErr != nil) {
			faintColor.Fprintf(w, "    received %d bytes (%s)\n", o.Received, model.ErrorToStringOrOK(o.ReadErr))
		}
	}
}

// summarize writes statistics about the connect times of the
// successful outcomes.
func summarize(w io.Writer, outcomes []*outcome) {
	var data stats.Float64Data
	for _, o := range outcomes {
		if o.Err == nil {
			data = append(data, o.Result.ConnectTime.Seconds())
		}
	}
	fmt.Fprintf(w, "connects: %d ok, %d failed\n", len(data), len(outcomes)-len(data))
	median, err := stats.Median(data)
	if err != nil {
		return // no successful connects
	}
	p90, err := stats.Percentile(data, 90)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "connect time: median %s, p90 %s\n", seconds(median), seconds(p90))
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second)).Round(time.Microsecond)
}

// dumpMetrics writes the metrics in the default registry using the
// Prometheus text format.
func dumpMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}
