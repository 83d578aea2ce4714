package main

import (
	"context"
	"fmt"

	"github.com/trezcool/quizdesk/core/credential"
)

func (cli *commandLine) addCredential(ctx context.Context, nc credential.NewCredential) error {
	if err := nc.Validate(cli.validate, cli.credSvc); err != nil {
		return err
	}
	cred, err := cli.credSvc.Register(ctx, nc)
	if err != nil {
		return err
	}
	fmt.Printf("credential %q created (id: %s)\n", cred.Username, cred.ID)
	return nil
}

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	cred, err := cli.credSvc.GetByUsername(ctx, uname)
	if err != nil {
		return err
	}
	rp := credential.ResetPassword{Password: pwd, PasswordConfirm: pwd}
	if err = rp.Validate(cli.validate, cred); err != nil {
		return err
	}
	_, err = cli.credSvc.ResetPassword(ctx, cred, rp)
	return err
}

func (cli *commandLine) unlock(ctx context.Context, uname string) error {
	cred, err := cli.credSvc.GetByUsername(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.credSvc.Unlock(ctx, cred)
	return err
}
