package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"seojobs/internal/app"
	"seojobs/internal/task/scheduler"
)

func main() {
	var (
		cfgPath string
		list    bool
		trigger string
		history int
		job     string
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (json, yaml or toml)")
	flag.BoolVar(&list, "list", false, "print registered jobs and exit")
	flag.StringVar(&trigger, "trigger", "", "run one job now, print the execution and exit")
	flag.IntVar(&history, "history", 0, "print the last N persisted executions and exit")
	flag.StringVar(&job, "job", "", "restrict -history to one job")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	var caught atomic.Value
	go func() {
		if sig, ok := <-sigs; ok {
			caught.Store(sig)
			cancel()
		}
	}()

	a, err := app.NewApp(ctx, cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	code := 0
	switch {
	case list:
		printJobs(a.Jobs())
	case trigger != "":
		code = runTrigger(ctx, a, trigger)
	case history > 0:
		code = printHistory(ctx, a, job, history)
	default:
		code = serve(ctx, a)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	reason := app.StopAppStop
	if sig, ok := caught.Load().(os.Signal); ok {
		reason = app.StopReasonFromSignal(sig)
	} else if code != 0 {
		reason = app.StopFatalError
	}
	if err := a.Stop(stopCtx, reason); err != nil {
		fmt.Fprintln(os.Stderr, "stop:", err)
	}
	stopCancel()
	signal.Stop(sigs)
	os.Exit(code)
}

func serve(ctx context.Context, a *app.App) int {
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		return 1
	}
	select {
	case <-ctx.Done():
		return 0
	case <-a.Done():
		fmt.Fprintln(os.Stderr, "fatal: background loop stopped")
		return 1
	}
}

func runTrigger(ctx context.Context, a *app.App, name string) int {
	exec, err := a.Trigger(ctx, name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "trigger:", err)
		return 2
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(exec)
	if exec.Status != scheduler.StatusSuccess {
		return 1
	}
	return 0
}

func printJobs(list []scheduler.JobSummary) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tSCHEDULE\tENABLED\tNEXT\tLAST")
	for _, j := range list {
		next := "-"
		if !j.Next.IsZero() {
			next = j.Next.Format(time.RFC3339)
		}
		last := "-"
		if j.LastExecution != nil {
			last = fmt.Sprintf("%s %s", j.LastExecution.Status, j.LastExecution.StartTime.Format(time.RFC3339))
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", j.Name, j.Schedule, j.Enabled, next, last)
	}
	_ = tw.Flush()
}

func printHistory(ctx context.Context, a *app.App, job string, n int) int {
	rows, err := a.History(ctx, job, n)
	if err != nil {
		fmt.Fprintln(os.Stderr, "history:", err)
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range rows {
		_ = enc.Encode(r)
	}
	return 0
}
