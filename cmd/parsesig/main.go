package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"signal_bot/internal/models"
	"signal_bot/internal/signal"
)

// parsesig разбирает текст сигнала так же, как бот, и печатает результат в yaml.
//
//	parsesig [-interval 5m] [file]   (без file читает stdin)
func main() {
	interval := flag.Duration("interval", signal.DefaultMartingaleInterval, "anna martingale interval when timeframe is absent")
	flag.Parse()

	text, err := readInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	p := signal.New(signal.WithDefaultMartingaleInterval(*interval))
	out, err := yaml.Marshal(report(p.Parse(text)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_, _ = os.Stdout.Write(out)
}

func readInput(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", errors.Wrap(err, "open input")
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "read input")
	}
	return string(b), nil
}

type signalReport struct {
	Actionable bool     `yaml:"actionable"`
	Pair       string   `yaml:"pair,omitempty"`
	Direction  string   `yaml:"direction,omitempty"`
	EntryTime  string   `yaml:"entry_time,omitempty"`
	Timeframe  string   `yaml:"timeframe,omitempty"`
	Expiry     string   `yaml:"expiry,omitempty"`
	Martingale []string `yaml:"martingale_times,omitempty"`
	Source     string   `yaml:"source,omitempty"`
	Fields     []string `yaml:"fields"`
}

func report(sig models.Signal) signalReport {
	r := signalReport{
		Actionable: sig.Actionable(),
		Pair:       sig.Pair,
		Direction:  string(sig.Direction),
		Timeframe:  string(sig.Timeframe),
		Source:     sig.Source,
		Fields:     sig.Fields(),
	}
	if sig.EntryTime != nil {
		r.EntryTime = sig.EntryTime.String()
	}
	if d := sig.Timeframe.Duration(); d > 0 {
		r.Expiry = d.String()
	}
	for _, c := range sig.MartingaleTimes {
		r.Martingale = append(r.Martingale, c.String())
	}
	if r.Fields == nil {
		r.Fields = []string{}
	}
	return r
}
