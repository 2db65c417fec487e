package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/ditrix/ditrix-server/internal/convert"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func need(fs *flag.FlagSet, names ...string) error {
	for _, n := range names {
		if f := fs.Lookup(n); f == nil || f.Value.String() == "" {
			return fmt.Errorf("%s: -%s is required", fs.Name(), n)
		}
	}
	return nil
}

func cmdHealth(ctx context.Context, c *client, _ []string, out io.Writer) error {
	var h convert.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return err
	}
	printJSON(out, h)
	if !h.OK {
		return errors.New("server unhealthy")
	}
	return nil
}

func cmdSignup(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("signup")
	email := fs.String("email", "", "e-mail")
	password := fs.String("password", "", "password")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "email", "password"); err != nil {
		return err
	}
	var resp convert.SignupResponse
	err := c.do(ctx, http.MethodPost, "/auth/signup",
		convert.SignupRequest{Email: *email, Password: *password, Name: *name}, &resp)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created %s (%s); check your inbox for the verification code\n", resp.Profile.Email, resp.Profile.ID)
	return nil
}

func cmdVerify(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("verify")
	email := fs.String("email", "", "e-mail")
	code := fs.String("code", "", "verification code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "email", "code"); err != nil {
		return err
	}
	var resp convert.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/auth/verify", convert.VerifyRequest{Email: *email, Code: *code}, &resp); err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Message)
	return nil
}

func emailOnly(ctx context.Context, c *client, name, path string, args []string, out io.Writer) error {
	fs := newFlags(name)
	email := fs.String("email", "", "e-mail")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "email"); err != nil {
		return err
	}
	var resp convert.MessageResponse
	if err := c.do(ctx, http.MethodPost, path, convert.EmailRequest{Email: *email}, &resp); err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Message)
	return nil
}

func cmdResend(ctx context.Context, c *client, args []string, out io.Writer) error {
	return emailOnly(ctx, c, "resend", "/auth/resend", args, out)
}

func cmdForgot(ctx context.Context, c *client, args []string, out io.Writer) error {
	return emailOnly(ctx, c, "forgot", "/auth/forgot", args, out)
}

func cmdReset(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("reset")
	email := fs.String("email", "", "e-mail")
	code := fs.String("code", "", "reset code")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "email", "code", "password"); err != nil {
		return err
	}
	var resp convert.MessageResponse
	err := c.do(ctx, http.MethodPatch, "/auth/reset",
		convert.ResetRequest{Email: *email, Code: *code, NewPassword: *password}, &resp)
	if err != nil {
		return err
	}
	// every session was revoked server side
	_ = clearToken()
	fmt.Fprintln(out, resp.Message)
	return nil
}

func cmdLogin(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("login")
	email := fs.String("email", "", "e-mail")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "email", "password"); err != nil {
		return err
	}
	var resp convert.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", convert.LoginRequest{Email: *email, Password: *password}, &resp); err != nil {
		return err
	}
	if err := saveToken(tokenFile{Token: resp.Token, ExpiresAt: resp.ExpiresAt, Email: resp.Profile.Email}); err != nil {
		return err
	}
	fmt.Fprintf(out, "logged in as %s until %s\n", resp.Profile.Email, resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func cmdLogout(ctx context.Context, c *client, _ []string, out io.Writer) error {
	if _, err := c.authed(); err != nil {
		if errors.Is(err, errLoginRequired) {
			fmt.Fprintln(out, "not logged in")
			return nil
		}
		return err
	}
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	var ae *apiError
	if err != nil && !(errors.As(err, &ae) && ae.Status == http.StatusUnauthorized) {
		return err
	}
	if err := clearToken(); err != nil {
		return err
	}
	fmt.Fprintln(out, "logged out")
	return nil
}

func cmdRefresh(ctx context.Context, c *client, _ []string, out io.Writer) error {
	tf, err := c.authed()
	if err != nil {
		return err
	}
	var resp convert.RefreshResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &resp); err != nil {
		return err
	}
	tf.ExpiresAt = resp.ExpiresAt
	if err := saveToken(tf); err != nil {
		return err
	}
	fmt.Fprintf(out, "session extended until %s\n", resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func cmdSession(ctx context.Context, c *client, _ []string, out io.Writer) error {
	if _, err := c.authed(); err != nil {
		return err
	}
	var resp convert.ProfileResponse
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, &resp); err != nil {
		return err
	}
	printJSON(out, resp.Profile)
	return nil
}

// cmdProfile prints the profile, or updates it when -name or -avatar is set.
func cmdProfile(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("profile")
	name := fs.String("name", "", "new display name")
	avatar := fs.String("avatar", "", "image file to upload ('-'=stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.authed(); err != nil {
		return err
	}

	var resp convert.ProfileResponse
	if *name == "" && *avatar == "" {
		if err := c.do(ctx, http.MethodGet, "/profile", nil, &resp); err != nil {
			return err
		}
		printJSON(out, resp.Profile)
		return nil
	}

	var req convert.ProfileRequest
	if *name != "" {
		req.Name = name
	}
	if *avatar != "" {
		img, err := readAll(*avatar)
		if err != nil {
			return err
		}
		enc := base64.StdEncoding.EncodeToString(img)
		req.AvatarBase64 = &enc
	}
	if err := c.do(ctx, http.MethodPut, "/profile", req, &resp); err != nil {
		return err
	}
	printJSON(out, resp.Profile)
	return nil
}

func cmdCaptures(ctx context.Context, c *client, _ []string, out io.Writer) error {
	if _, err := c.authed(); err != nil {
		return err
	}
	var resp convert.CaptureListResponse
	if err := c.do(ctx, http.MethodGet, "/shared-captures", nil, &resp); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACCESS\tSUBJECT\tDATE\tSHARE CODE\tOWNER")
	rows := append(append([]convert.Capture{}, resp.Owned...), resp.Shared...)
	for _, cp := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			cp.ID, cp.AccessType, deref(cp.Subject), deref(cp.Date), cp.ShareCode, choose(cp.OwnerName, "me"))
	}
	return tw.Flush()
}

func cmdCapture(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("capture")
	id := fs.String("id", "", "capture id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "id"); err != nil {
		return err
	}
	if _, err := c.authed(); err != nil {
		return err
	}
	var resp convert.CaptureResponse
	if err := c.do(ctx, http.MethodGet, "/shared-captures/"+url.PathEscape(*id), nil, &resp); err != nil {
		return err
	}
	printJSON(out, resp.Capture)
	return nil
}

func cmdJoin(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("join")
	code := fs.String("code", "", "share code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "code"); err != nil {
		return err
	}
	if _, err := c.authed(); err != nil {
		return err
	}
	var resp convert.JoinResponse
	if err := c.do(ctx, http.MethodPost, "/shared-captures/join/"+url.PathEscape(*code), nil, &resp); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s\n", resp.Message, resp.CaptureID)
	return nil
}

// ---- helpers ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func choose(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
