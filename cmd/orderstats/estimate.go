package orderstats

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/orderstats-go/orderstats/dispatch"
	"github.com/orderstats-go/orderstats/kll"
)

// estimateCmdSpec describes a subcommand that runs one estimator kind over each input.
type estimateCmdSpec struct {
	kind  dispatch.Kind
	short string
	long  string
	flags func(*pflag.FlagSet)
}

func windowFlags(flags *pflag.FlagSet) {
	flags.IntP("window", "w", 10, "window size")
}

var sortCmdSpec = estimateCmdSpec{
	kind:  dispatch.Sort,
	short: "Moving sort over a sliding window",
	long: `The 'sort' command prints the sorted contents of the last --window values after each value. Rows are padded
with NaN while the window fills.`,
	flags: windowFlags,
}

var medianCmdSpec = estimateCmdSpec{
	kind:  dispatch.Median,
	short: "Moving median over a sliding window",
	long:  `The 'median' command prints the median of the last --window values after each value.`,
	flags: windowFlags,
}

var quantileCmdSpec = estimateCmdSpec{
	kind:  dispatch.Quantile,
	short: "Moving order statistics over a sliding window",
	long: `The 'quantile' command prints the values at each 1-based --ranks of the last --window values after each
value. While the window fills, ranks are clamped to the number of values seen.`,
	flags: func(flags *pflag.FlagSet) {
		windowFlags(flags)
		flags.StringSliceP("ranks", "r", []string{"1"}, "1-based ranks to report")
	},
}

var psquareCmdSpec = estimateCmdSpec{
	kind:  dispatch.PSquare,
	short: "Cumulative P² quantile estimates",
	long:  `The 'psquare' command prints a P² estimate for each --probs after each value, using constant memory.`,
	flags: func(flags *pflag.FlagSet) {
		flags.StringSliceP("probs", "p", []string{"0.5"}, "probabilities in (0, 1) to estimate")
	},
}

var sketchCmdSpec = estimateCmdSpec{
	kind:  dispatch.Sketch,
	short: "Compactor sketch summary or quantiles",
	long: `The 'sketch' command absorbs all values into a compactor sketch and prints its summary of retained values,
weights and cumulative probabilities. With --probs, it prints the quantile estimate for each probability instead.`,
	flags: func(flags *pflag.FlagSet) {
		flags.StringSliceP("probs", "p", nil, "probabilities in [0, 1] to query instead of printing the summary")
		flags.Int("k", 200, "size parameter, larger values retain more items")
		flags.Float64("c", kll.DefaultC, "capacity shrink rate in (0, 1)")
		flags.Bool("lazy", true, "defer compaction until the sketch is full")
		flags.Bool("alternating", false, "alternate compaction parity instead of flipping a coin")
		flags.Uint64("seed", 0, "seed for the compaction coin, 0 for a random seed")
	},
}

func (a *app) newEstimateCmd(spec estimateCmdSpec) *cobra.Command {
	cmd := &cobra.Command{
		Use:   spec.kind.String() + " [files...]",
		Short: spec.short,
		Long:  spec.long + "\n\nValues are read one per line from each file, or stdin if none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEstimate(cmd, spec.kind, args)
		},
	}
	flags := cmd.Flags()
	spec.flags(flags)
	flags.StringP("format", "f", "table", "output format: table or csv")
	flags.Int("parallel", 4, "maximum number of files processed concurrently")
	return cmd
}

func (a *app) params(kind dispatch.Kind) (dispatch.Params, error) {
	v := a.config
	params := dispatch.Params{
		Window:      v.GetInt("window"),
		K:           v.GetInt("k"),
		C:           v.GetFloat64("c"),
		Eager:       !v.GetBool("lazy"),
		Alternating: v.GetBool("alternating"),
		Seed:        v.GetUint64("seed"),
		Logger:      a.logger,
	}
	for _, s := range splitList(v.GetStringSlice("ranks")) {
		rank, err := strconv.Atoi(s)
		if err != nil {
			return params, fmt.Errorf("rank %q: %w", s, err)
		}
		params.Ranks = append(params.Ranks, rank)
	}
	probs, err := a.probs()
	if err != nil {
		return params, err
	}
	if kind == dispatch.PSquare {
		params.Probs = probs
	}
	return params, nil
}

func (a *app) probs() ([]float64, error) {
	var probs []float64
	for _, s := range splitList(a.config.GetStringSlice("probs")) {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("probability %q: %w", s, err)
		}
		probs = append(probs, p)
	}
	return probs, nil
}

// splitList flattens comma separated elements, which is how list values arrive from the environment.
func splitList(elems []string) []string {
	var result []string
	for _, elem := range elems {
		for _, s := range strings.Split(elem, ",") {
			if s = strings.TrimSpace(s); s != "" {
				result = append(result, s)
			}
		}
	}
	return result
}

func (a *app) runEstimate(cmd *cobra.Command, kind dispatch.Kind, args []string) error {
	params, err := a.params(kind)
	if err != nil {
		return err
	}
	outFormat, err := parseFormat(a.config.GetString("format"))
	if err != nil {
		return err
	}
	var queryProbs []float64
	if kind == dispatch.Sketch {
		if queryProbs, err = a.probs(); err != nil {
			return err
		}
	}
	// Fail on invalid parameters before reading any input
	if _, err = dispatch.New(kind, params); err != nil {
		return err
	}

	inputs := args
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}
	outputs := make([]bytes.Buffer, len(inputs))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(a.config.GetInt("parallel"), 1))
	for i, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			values, err := a.readInput(cmd, input)
			if err != nil {
				return err
			}
			table, err := dispatch.New(kind, params)
			if err != nil {
				return err
			}
			a.logger.Debug("estimating", "input", input, "kind", kind, "values", len(values))

			title := ""
			if len(inputs) > 1 {
				title = input
			}
			if len(queryProbs) > 0 {
				table.Update(values)
				quantiles, err := table.Quantile(queryProbs)
				if err != nil {
					return fmt.Errorf("%s: %w", input, err)
				}
				rows := make([][]float64, len(queryProbs))
				for j, p := range queryProbs {
					rows[j] = []float64{p, quantiles[j]}
				}
				return render(&outputs[i], outFormat, title, []string{"probability", "quantile"}, rows, false)
			}
			return render(&outputs[i], outFormat, title, table.Columns(), table.Update(values), kind != dispatch.Sketch)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i := range outputs {
		if _, err := outputs[i].WriteTo(out); err != nil {
			return err
		}
	}
	return nil
}

// readInput reads the values of a file, or stdin if path is "-".
func (a *app) readInput(cmd *cobra.Command, path string) ([]float64, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	values, err := readValues(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}
