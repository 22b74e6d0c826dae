package main

import (
	"context"
	"fmt"

	"github.com/campusmentor/campusmentor/core/user"
)

// addUser creates an active user with the password policy of self registration.
func (cli *commandLine) addUser(nu user.NewUser) error {
	usr, err := cli.usrSvc.Register(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Printf("created %s %s <%s>\n", usr.Role, usr.Name, usr.Email)
	return nil
}
