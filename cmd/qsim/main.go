package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qsim"
	"github.com/theapemachine/qsim/qobj"
	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	app := &cli.App{
		Name:  "qsim",
		Usage: "run quantum circuits on a local state-vector simulator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (QSIM_* environment variables also apply)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "execute a job descriptor (.hcl, .yaml or .json)",
				ArgsUsage: "<descriptor>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Value: qsim.QASMSimulator},
					&cli.IntFlag{Name: "shots", Usage: "override the job shot count"},
					&cli.UintFlag{Name: "seed", Usage: "override the job seed"},
					&cli.BoolFlag{Name: "memory", Usage: "return per-shot memory"},
					&cli.BoolFlag{Name: "async", Usage: "submit through the worker pool"},
					&cli.BoolFlag{Name: "json", Usage: "print the raw job result"},
				},
				Action: run,
			},
			{
				Name:      "backends",
				Usage:     "list backends, optionally filtered",
				ArgsUsage: "[filter expression]",
				Action:    backends,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func provider(c *cli.Context) (*qsim.Provider, error) {
	config, err := qsim.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	return qsim.NewProvider(c.Context, config), nil
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected one descriptor, got %d arguments", c.NArg())
	}

	desc, err := qobj.Load(c.Args().First())
	if err != nil {
		return err
	}

	var opts []qsim.JobOption
	if c.IsSet("shots") {
		opts = append(opts, qsim.WithShots(c.Int("shots")))
	}
	if c.IsSet("seed") {
		opts = append(opts, qsim.WithSeed(uint32(c.Uint("seed"))))
	}
	if c.Bool("memory") {
		opts = append(opts, qsim.WithMemory(true))
	}

	job, err := qobj.Build(desc, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	p, err := provider(c)
	if err != nil {
		return err
	}
	defer p.Close()

	backend, err := p.Get(c.String("backend"))
	if err != nil {
		return err
	}

	result, err := execute(ctx, backend, job, c.Bool("async"))
	if err != nil {
		return err
	}

	errnie.Info("metrics: %v", p.Metrics().ExportMetrics())

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

func execute(ctx context.Context, backend *qsim.Backend, job *qsim.Job, async bool) (*qsim.JobResult, error) {
	if !async {
		return backend.Execute(ctx, job)
	}

	handle, err := backend.Run(ctx, job)
	if err != nil {
		return nil, err
	}
	return handle.Result(ctx)
}

func printResult(result *qsim.JobResult) {
	status := color.GreenString("success")
	if !result.Success {
		status = color.RedString("failed")
	}

	fmt.Printf("job %s on %s: %s in %.4fs\n", result.JobID, result.Backend, status, result.TimeTaken)

	for _, exp := range result.Results {
		fmt.Println()
		fmt.Printf("%s  shots=%d seed=%d  %s\n",
			color.CyanString(exp.Name), exp.Shots, exp.Seed, exp.Status)

		if exp.Error != "" {
			fmt.Println(color.RedString(exp.Error))
			continue
		}

		for _, note := range exp.Notes {
			fmt.Println(color.YellowString("note: %s", note))
		}

		if exp.Statevector != nil {
			printStatevector(exp.Statevector)
			continue
		}

		printCounts(exp)
	}
}

func printCounts(exp qsim.ExperimentResult) {
	keys := make([]string, 0, len(exp.Counts))
	for k := range exp.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Outcome", "Count", "Probability"})

	for _, k := range keys {
		count := exp.Counts[k]
		table.Append([]string{
			k,
			strconv.Itoa(count),
			strconv.FormatFloat(float64(count)/float64(exp.Shots), 'f', 4, 64),
		})
	}

	table.Render()
}

func printStatevector(sv qsim.Statevector) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Index", "Real", "Imag"})

	for i, a := range sv {
		table.Append([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(real(a), 'g', -1, 64),
			strconv.FormatFloat(imag(a), 'g', -1, 64),
		})
	}

	table.Render()
}

func backends(c *cli.Context) error {
	p, err := provider(c)
	if err != nil {
		return err
	}
	defer p.Close()

	list, err := p.Backends(c.Args().First())
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Mode", "Qubits", "Max shots", "Description"})

	for _, b := range list {
		conf := b.Configuration()
		table.Append([]string{
			conf.Name,
			conf.Mode,
			strconv.Itoa(conf.NQubits),
			strconv.Itoa(conf.MaxShots),
			conf.Description,
		})
	}

	table.Render()
	return nil
}
