package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/config"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/flowgraph"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/pipeline"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/sdr"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

// DryRun resolves the parameters, selects the sdr and assembles the chain without
// starting anything. The stage table and the runner description are written to w.
func (a *App) DryRun(ctx context.Context, direction config.Direction, params config.Parameters, w io.Writer) error {
	resolve := config.ResolveReceive
	if direction == config.Transmit {
		resolve = config.ResolveTransmit
	}

	run, profile, err := resolve(params)
	if err != nil {
		return err
	}

	endpoint, err := sdr.Select(ctx, a.Enumerator())
	if err != nil {
		return err
	}

	graph := a.newGraph(run)
	assemble := pipeline.AssembleReceive
	if direction == config.Transmit {
		assemble = pipeline.AssembleTransmit
	}

	if _, err := assemble(graph, run, profile, endpoint); err != nil {
		return err
	}

	desc := graph.Describe(a.RunID)
	data, err := desc.Marshal()
	if err != nil {
		log.Error("could not render flowgraph description", zap.Error(err))
		return err
	}

	fmt.Fprintf(w, "%s via %s, description %s\n\n", run.Direction, endpoint, graph.DescriptionPath())
	renderStages(w, desc)
	fmt.Fprintln(w)
	_, err = w.Write(data)
	return err
}

func renderStages(w io.Writer, desc flowgraph.Description) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Block", "Kind", "Parameters"})
	table.SetAutoWrapText(false)

	for i, b := range desc.Blocks {
		table.Append([]string{fmt.Sprint(i), b.Name, string(b.Kind), formatParams(b.Params)})
	}
	table.Render()
}

func formatParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(pairs, " ")
}
