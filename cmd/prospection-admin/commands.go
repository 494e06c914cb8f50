package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

var errNotAuthenticated = errors.New("not authenticated")

type loginOptions struct {
	Email         string
	Password      string
	PasswordStdin bool
}

func parseLoginFlags(args []string, stderr io.Writer) (loginOptions, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts loginOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Account password (prefer --password-stdin)")
	fs.BoolVar(&opts.PasswordStdin, "password-stdin", false, "Read the password from the first line of stdin")

	if err := fs.Parse(args); err != nil {
		return loginOptions{}, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return loginOptions{}, errors.New("--email is required")
	}
	if opts.Password != "" && opts.PasswordStdin {
		return loginOptions{}, errors.New("--password and --password-stdin are mutually exclusive")
	}
	return opts, nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(cmdCtx *commandContext, args []string) error {
	opts, err := parseLoginFlags(args, cmdCtx.Out)
	if err != nil {
		return err
	}
	if opts.PasswordStdin || opts.Password == "" {
		if opts.Password, err = readPassword(cmdCtx.In); err != nil {
			return err
		}
	}

	auth, err := cmdCtx.session()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	id, err := auth.Controller.Login(ctx, domainauth.Credentials{Email: opts.Email, Password: opts.Password})
	if err != nil {
		return errors.New(domainauth.UserMessage(err))
	}
	return writef(cmdCtx.Out, "Connecté en tant que %s (%s)\n", id.DisplayName(), joinOrDash(roleNames(id.Roles)))
}

func runLogout(cmdCtx *commandContext, _ []string) error {
	auth, err := cmdCtx.session()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	// Load the cached session first so logout knows there is something to end.
	auth.Controller.Initialize(ctx) //nolint:errcheck // a failed revalidation still leaves local data to clear
	if err := auth.Controller.Logout(ctx); err != nil {
		return err
	}
	return writeln(cmdCtx.Out, "Déconnecté")
}

type statusOutput struct {
	Authenticated bool                 `json:"authenticated"`
	Identity      *domainauth.Identity `json:"identity,omitempty"`
	Permissions   []string             `json:"permissions"`
	HasToken      bool                 `json:"hasToken"`
	HasRefresh    bool                 `json:"hasRefreshToken"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	Storage       string               `json:"storage"`
}

func runStatus(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Out)
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	auth, err := cmdCtx.session()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	out := statusOutput{Permissions: []string{}, Storage: cmdCtx.storageLocation()}
	if id := auth.Store.ReadCachedSnapshot(ctx); id != nil {
		out.Authenticated = true
		out.Identity = id
		out.Permissions = permissionNames(domainauth.Permissions(id.Roles))
	}
	if tokens, terr := auth.Store.Tokens(ctx); terr == nil {
		out.HasToken = tokens.Access != ""
		out.HasRefresh = tokens.Refresh != ""
		if !tokens.ExpiresAt.IsZero() {
			exp := tokens.ExpiresAt
			out.ExpiresAt = &exp
		}
	}

	if *asJSON {
		enc := json.NewEncoder(cmdCtx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printStatus(cmdCtx.Out, out)
}

func printStatus(w io.Writer, s statusOutput) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{{"Stockage", s.Storage}}
	if s.Identity == nil {
		rows = append(rows, [2]string{"Session", "anonyme"})
	} else {
		rows = append(rows,
			[2]string{"Session", "authentifiée"},
			[2]string{"Utilisateur", s.Identity.DisplayName()},
			[2]string{"Email", s.Identity.Email},
			[2]string{"Rôles", joinOrDash(roleNames(s.Identity.Roles))},
			[2]string{"Interface", string(s.Identity.InterfaceType)},
			[2]string{"Permissions", joinOrDash(s.Permissions)},
		)
	}
	rows = append(rows, [2]string{"Token", yesNo(s.HasToken)}, [2]string{"Refresh token", yesNo(s.HasRefresh)})
	if s.ExpiresAt != nil {
		rows = append(rows, [2]string{"Expiration", s.ExpiresAt.Format(time.RFC3339)})
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runCheck(cmdCtx *commandContext, _ []string) error {
	auth, err := cmdCtx.session()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	if err := auth.Controller.Initialize(ctx); err != nil {
		return fmt.Errorf("check session: %s", domainauth.UserMessage(err))
	}
	state := auth.Controller.State()
	if !state.IsAuthenticated {
		if state.LastError != "" {
			if werr := writeln(cmdCtx.Out, state.LastError); werr != nil {
				return werr
			}
		}
		return errNotAuthenticated
	}
	return writef(cmdCtx.Out, "Session valide pour %s\n", state.Identity.Email)
}

func runDiagnose(cmdCtx *commandContext, _ []string) error {
	auth, err := cmdCtx.session()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	apiURL := auth.BaseURL
	if apiURL == "" {
		apiURL = "mock"
	}
	tokens, _ := auth.Store.Tokens(ctx)
	cached := "-"
	if id := auth.Store.ReadCachedSnapshot(ctx); id != nil {
		cached = id.Email
	}

	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"API", apiURL},
		{"Stockage", cmdCtx.storageLocation()},
		{"Token", yesNo(tokens.Access != "")},
		{"Préfixe du token", tokenPrefix(tokens.Access)},
		{"Email en cache", cached},
	}

	start := time.Now()
	ping, pingErr := auth.API.Ping(ctx)
	if pingErr != nil {
		rows = append(rows, [2]string{"Connexion", "échec: " + domainauth.UserMessage(pingErr)})
	} else {
		rows = append(rows,
			[2]string{"Connexion", fmt.Sprintf("HTTP %d en %s", ping.Status, time.Since(start).Round(time.Millisecond))},
			[2]string{"Réponse", truncate(ping.Body, 200)},
		)
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if pingErr != nil {
		return fmt.Errorf("api unreachable: %w", pingErr)
	}
	return nil
}

func runPermissions(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("permissions", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Out)
	rolesFlag := fs.String("roles", "", "Comma-separated roles; defaults to the cached identity's roles")
	matrix := fs.Bool("matrix", false, "Print the full role/permission matrix")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *matrix {
		return printMatrix(cmdCtx.Out)
	}

	roles, err := parseRoles(*rolesFlag)
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		auth, serr := cmdCtx.session()
		if serr != nil {
			return serr
		}
		id := auth.Store.ReadCachedSnapshot(cmdCtx.Ctx)
		if id == nil {
			return fmt.Errorf("%w: pass --roles or log in first", errNotAuthenticated)
		}
		roles = id.Roles
	}

	granted := domainauth.Permissions(roles)
	return writef(cmdCtx.Out, "%s: %s\n", joinOrDash(roleNames(roles)), joinOrDash(permissionNames(granted)))
}

func printMatrix(w io.Writer) error {
	roles := []domainauth.Role{
		domainauth.RoleAdmin,
		domainauth.RoleInformatique,
		domainauth.RoleServiceProspection,
		domainauth.RoleDirection,
		domainauth.RoleSecretariat,
		domainauth.RoleUser,
	}
	perms := domainauth.AllPermissions()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"ROLE"}
	for _, p := range perms {
		header = append(header, string(p))
	}
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, r := range roles {
		row := []string{r.DisplayName()}
		id := domainauth.Identity{Roles: []domainauth.Role{r}}
		for _, p := range perms {
			row = append(row, yesNo(domainauth.Can(id, p)))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func parseRoles(raw string) ([]domainauth.Role, error) {
	var roles []domainauth.Role
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, err := domainauth.ParseRole(part)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}

func roleNames(roles []domainauth.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.DisplayName())
	}
	return out
}

func permissionNames(perms []domainauth.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}

// tokenPrefix shows enough of a token to tell two apart without leaking it.
func tokenPrefix(token string) string {
	if token == "" {
		return "-"
	}
	if len(token) <= 10 {
		return strings.Repeat("*", len(token))
	}
	return token[:10] + "..."
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func yesNo(b bool) string {
	if b {
		return "oui"
	}
	return "non"
}
