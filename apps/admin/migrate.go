package main

import "context"

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	return gooseRunFunc(ctx, cli.db, cli.conf, args[0], args[1:]...)
}
