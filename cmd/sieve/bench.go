package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"text/tabwriter"
	"time"

	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/spf13/cobra"
)

var (
	benchRulesPath  string
	benchEngines    []string
	benchSize       int
	benchIterations int
)

var benchCmd = &cobra.Command{
	Use:   "bench [file...]",
	Short: "Compare search engines on the same rules and input",
	Long: `Compile the selected rules into every available engine and search the
given files, or generated input when no files are given, reporting compile
time, throughput and match counts.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVar(&benchRulesPath, "rules", "", "Path to rules file or directory (default: builtin rules)")
	benchCmd.Flags().StringSliceVar(&benchEngines, "engine", nil, "Engines to benchmark (default: all available)")
	benchCmd.Flags().IntVar(&benchSize, "size", 16<<20, "Size of generated input in bytes when no files are given")
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 3, "Searches per engine")
}

// benchResult is one row of the bench table.
type benchResult struct {
	engine   string
	patterns int
	compile  time.Duration
	search   time.Duration
	bytes    int64
	matches  int
}

func (r benchResult) throughput() float64 {
	if r.search <= 0 {
		return 0
	}
	return float64(r.bytes) / r.search.Seconds() / (1 << 20)
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchIterations < 1 {
		return fmt.Errorf("iterations must be at least 1")
	}

	rules, err := loadRules(benchRulesPath, "", "")
	if err != nil {
		return err
	}

	input, err := benchInput(args, benchSize)
	if err != nil {
		return err
	}

	engines := benchEngines
	if len(engines) == 0 {
		engines = matcher.AvailableEngines()
	}

	var results []benchResult
	for _, name := range engines {
		res, err := benchEngine(name, rules, input, benchIterations)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		logger.Debug("engine benchmarked", "engine", name, "compile", res.compile, "search", res.search)
		results = append(results, res)
	}

	return printBench(cmd.OutOrStdout(), results, len(input))
}

// benchInput concatenates the named files or generates size bytes of
// printable text.
func benchInput(files []string, size int) ([]byte, error) {
	if len(files) == 0 {
		return syntheticInput(size, 1), nil
	}
	var buf []byte
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}
	return buf, nil
}

// syntheticInput returns deterministic printable text with line breaks.
func syntheticInput(size int, seed uint64) []byte {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789=:_-/ "
	rng := rand.New(rand.NewPCG(seed, seed))
	buf := make([]byte, size)
	for i := range buf {
		if rng.IntN(80) == 0 {
			buf[i] = '\n'
			continue
		}
		buf[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return buf
}

func benchEngine(name string, rules []*types.Rule, input []byte, iterations int) (benchResult, error) {
	res := benchResult{engine: name}

	eng, err := matcher.NewEngine(name, logger)
	if err != nil {
		return res, err
	}
	defer eng.Close()

	for _, r := range rules {
		for _, p := range r.Patterns {
			if err := eng.AddPattern(p.Content, p.NoCase, r.SID); err != nil {
				return res, fmt.Errorf("rule %s: %w", r.ID, err)
			}
			res.patterns++
		}
	}

	start := time.Now()
	if err := eng.Compile(); err != nil {
		return res, err
	}
	res.compile = time.Since(start)

	start = time.Now()
	for i := 0; i < iterations; i++ {
		n, err := eng.Search(input, func([]byte, []uint32, int) {})
		if err != nil {
			return res, err
		}
		res.matches = n
	}
	res.search = time.Since(start)
	res.bytes = int64(len(input)) * int64(iterations)

	return res, nil
}

func printBench(out io.Writer, results []benchResult, inputSize int) error {
	fmt.Fprintf(out, "Input: %d bytes\n\n", inputSize)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENGINE\tPATTERNS\tCOMPILE\tMB/s\tMATCHES")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%s\t%.1f\t%d\n",
			r.engine, r.patterns, r.compile.Round(time.Microsecond), r.throughput(), r.matches)
	}
	return w.Flush()
}
