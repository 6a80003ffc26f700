package main

import (
	"context"
	"fmt"

	"github.com/cbc-edu/eduplatform/core/user"
)

// addUser registers an account the same way the signup endpoint does.
func (cli *commandLine) addUser(ctx context.Context, na user.NewAccount) error {
	usr, err := cli.usrSvc.Register(ctx, na)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s <%s> created: %s\n", usr.Role, usr.Name, usr.Email, usr.ID)
	return nil
}
