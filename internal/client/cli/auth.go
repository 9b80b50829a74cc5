package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophadmin/internal/client/client"
	"github.com/dmitrijs2005/gophadmin/internal/client/services"
	"github.com/dmitrijs2005/gophadmin/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// report prints the outcome of a manager call and turns a failure into an
// error carrying the user-facing message.
func (a *App) report(res services.Result, success string) error {
	if !res.Success {
		fmt.Fprintln(a.out, "Error:", res.Error)
		return errors.New(res.Error)
	}
	if success != "" {
		fmt.Fprintln(a.out, success)
	}
	return nil
}

// Login prompts for a username or email and a password and signs in as an
// admin operator. The password is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	identifier, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res := a.manager.Login(ctx, identifier, string(password))
	if !res.Success {
		a.log.Info(ctx, "login unsuccessful", "code", res.Code)
		return a.report(res, "")
	}
	return a.report(res, "Signed in as "+a.manager.User().DisplayName())
}

// Register creates an account. When the backend also opens a session the
// operator is signed in right away.
func (a *App) Register(ctx context.Context) error {
	var req client.RegisterRequest
	var err error

	prompts := []struct {
		label string
		dst   *string
	}{
		{"Enter username", &req.Username},
		{"Enter email", &req.Email},
		{"First name (optional)", &req.FirstName},
		{"Last name (optional)", &req.LastName},
	}
	for _, p := range prompts {
		if *p.dst, err = getSimpleText(a.reader, p.label, a.out); err != nil {
			return err
		}
	}

	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	req.Password = string(password)

	res := a.manager.Register(ctx, req)
	if res.Success && a.manager.IsAuthenticated() {
		return a.report(res, "Welcome, "+a.manager.User().DisplayName())
	}
	return a.report(res, "Account created. Sign in to continue.")
}

func (a *App) Logout(ctx context.Context) error {
	return a.report(a.manager.Logout(ctx), "Signed out")
}

// ChangePassword asks for the current password and the new one twice.
func (a *App) ChangePassword(ctx context.Context) error {
	current, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	next, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	confirm, err := getPassword("Repeat new password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(next) != string(confirm) {
		fmt.Fprintln(a.out, "Error: passwords do not match")
		return errors.New("passwords do not match")
	}

	return a.report(a.manager.ChangePassword(ctx, string(current), string(next)), "Password changed")
}

// CreateAdmin provisions another admin account.
func (a *App) CreateAdmin(ctx context.Context) error {
	var req client.RegisterRequest
	var err error

	if req.Username, err = getSimpleText(a.reader, "New admin username", a.out); err != nil {
		return err
	}
	if req.Email, err = getSimpleText(a.reader, "New admin email", a.out); err != nil {
		return err
	}

	password, err := getPassword("New admin password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	req.Password = string(password)

	if req.Username == "" || req.Email == "" || req.Password == "" {
		fmt.Fprintln(a.out, "Error: username, email and password are required")
		return errors.New("missing admin fields")
	}

	return a.report(a.manager.CreateAdmin(ctx, req), fmt.Sprintf("Admin %s created", req.Username))
}
