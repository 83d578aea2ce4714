package main

import (
	"context"

	"github.com/trezcool/quizdesk/core/settings"
)

func (cli *commandLine) setOverride(ctx context.Context, college, pwd string) error {
	so := settings.SetOverride{Password: pwd, PasswordConfirm: pwd}
	if err := so.Validate(cli.validate); err != nil {
		return err
	}
	return cli.settingsSvc.SetOverridePassword(ctx, college, pwd)
}
