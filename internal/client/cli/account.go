package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/client/models"
	"github.com/dmitrijs2005/gophadmin/internal/client/token"
)

func (a *App) WhoAmI(ctx context.Context) error {
	u := a.manager.User()
	if u == nil {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}

	fmt.Fprintf(a.out, "%s (%s)\n", u.DisplayName(), u.Username)
	fmt.Fprintf(a.out, "  id:    %s\n", u.ID)
	fmt.Fprintf(a.out, "  email: %s\n", u.Email)
	fmt.Fprintf(a.out, "  role:  %s\n", u.Role)
	if u.LastLogin != nil {
		fmt.Fprintf(a.out, "  last login: %s\n", u.LastLogin.Local().Format(time.DateTime))
	}
	return nil
}

// Status prints the session as the console sees it: who is signed in, when
// the token stops being accepted, idle time left and local storage health.
func (a *App) Status(ctx context.Context) error {
	st := a.manager.State()

	switch {
	case st.IsLoading:
		fmt.Fprintln(a.out, "Session:  validating")
	case st.User == nil:
		fmt.Fprintln(a.out, "Session:  signed out")
	default:
		fmt.Fprintf(a.out, "Session:  %s (%s)\n", st.User.Username, st.User.Role)
	}

	if tok, err := a.store.Token(ctx); err == nil && tok != "" {
		if exp, err := token.ExpiresAt(tok); err == nil {
			fmt.Fprintf(a.out, "Token:    expires %s\n", exp.Local().Format(time.DateTime))
		} else {
			fmt.Fprintln(a.out, "Token:    unreadable")
		}
	}

	if remaining := a.manager.IdleRemaining(); remaining > 0 {
		fmt.Fprintf(a.out, "Idle:     signed out in %s without activity\n", remaining.Round(time.Second))
	}

	if res := a.manager.SelfTest(ctx); res.Working {
		fmt.Fprintln(a.out, "Storage:  ok")
	} else {
		fmt.Fprintln(a.out, "Storage:  failing:", res.Error)
	}

	fmt.Fprintf(a.out, "Backend:  %s (%d requests pending)\n", a.config.APIBaseURL, a.loading.Pending())
	return nil
}

// EditProfile prompts for each editable field; Enter keeps the current
// value.
func (a *App) EditProfile(ctx context.Context) error {
	u := a.manager.User()
	if u == nil {
		return nil
	}

	var patch models.UserPatch
	fields := []struct {
		label   string
		current string
		dst     **string
	}{
		{"First name", u.FirstName, &patch.FirstName},
		{"Last name", u.LastName, &patch.LastName},
		{"Email", u.Email, &patch.Email},
	}
	for _, f := range fields {
		v, err := getSimpleText(a.reader, fmt.Sprintf("%s [%s] (Enter to keep)", f.label, f.current), a.out)
		if err != nil {
			return err
		}
		if v != f.current {
			*f.dst = optional(v)
		}
	}

	if patch.IsEmpty() {
		fmt.Fprintln(a.out, "Nothing to update")
		return nil
	}
	return a.report(a.manager.UpdateUserProfile(ctx, patch), "Profile updated")
}

func (a *App) Refresh(ctx context.Context) error {
	return a.report(a.manager.Refresh(ctx), "Profile refreshed from server")
}

func (a *App) ShowExtra(ctx context.Context) error {
	d := a.manager.ProfileData(ctx)
	if d == nil {
		fmt.Fprintln(a.out, "No extra profile data")
		return nil
	}
	fmt.Fprintf(a.out, "  phone:   %s\n", d.Phone)
	fmt.Fprintf(a.out, "  bio:     %s\n", d.Bio)
	fmt.Fprintf(a.out, "  address: %s\n", d.Address)
	for name, link := range d.SocialLinks {
		fmt.Fprintf(a.out, "  %s: %s\n", name, link)
	}
	return nil
}

// EditExtra edits the locally kept profile extension. Enter keeps a value.
func (a *App) EditExtra(ctx context.Context) error {
	d := a.manager.ProfileData(ctx)
	if d == nil {
		d = &models.ProfileData{}
	}

	fields := []struct {
		label string
		dst   *string
	}{
		{"Phone", &d.Phone},
		{"Bio", &d.Bio},
		{"Address", &d.Address},
	}
	for _, f := range fields {
		v, err := getSimpleText(a.reader, fmt.Sprintf("%s [%s] (Enter to keep)", f.label, *f.dst), a.out)
		if err != nil {
			return err
		}
		if v != "" {
			*f.dst = v
		}
	}

	if !a.manager.SaveProfileData(ctx, d) {
		fmt.Fprintln(a.out, "Error: profile data could not be saved")
		return fmt.Errorf("saving profile data failed")
	}
	fmt.Fprintln(a.out, "Saved")
	return nil
}

func (a *App) ClearExtra(ctx context.Context) error {
	if !a.manager.ClearProfileData(ctx) {
		fmt.Fprintln(a.out, "Error: profile data could not be cleared")
		return fmt.Errorf("clearing profile data failed")
	}
	fmt.Fprintln(a.out, "Cleared")
	return nil
}
