package main

import (
	"context"
	"fmt"
)

type escalator interface {
	RunOnce(ctx context.Context) (int, error)
}

// escalate runs a single escalation sweep, for cron or manual use.
func (cli *commandLine) escalate() error {
	n, err := cli.escalator.RunOnce(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d doubt(s) escalated\n", n)
	return nil
}
