package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"stageportal/internal/client"
	"stageportal/internal/console"
	"stageportal/internal/domain/application"
	"stageportal/internal/domain/user"
)

func (a *app) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("stagectl "+name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// api returns a client for the configured or session URL, carrying the
// session token when there is one.
func (a *app) api(session *console.Session) *client.HTTPClient {
	base := a.baseURL
	if base == "" && session != nil {
		base = session.BaseURL
	}
	if base == "" {
		base = defaultAPI
	}
	c := client.NewClient(base, nil)
	if session != nil {
		c = c.WithToken(session.Token)
	}
	return c
}

func (a *app) requireSession(role user.Role) (*console.Session, error) {
	session, err := a.sessions.Load()
	if err != nil {
		return nil, err
	}
	if role != "" && session.Role != role {
		return nil, fmt.Errorf("this command requires a %s session, logged in as %s", role, session.Role)
	}
	return session, nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	var reg client.Registration
	fs.StringVar(&reg.Nom, "nom", "", "last name")
	fs.StringVar(&reg.Prenom, "prenom", "", "first name")
	fs.StringVar(&reg.Email, "email", "", "email")
	fs.StringVar(&reg.MotDePasse, "password", os.Getenv("STAGEPORTAL_PASSWORD"), "password")
	fs.StringVar(&reg.Telephone, "telephone", "", "phone number")
	fs.StringVar(&reg.Adresse, "adresse", "", "postal address")
	fs.StringVar(&reg.Etablissement, "etablissement", "", "school")
	fs.StringVar(&reg.Domaine, "domaine", "", "field of study")
	fs.StringVar(&reg.Niveau, "niveau", "", "study level")
	fs.StringVar(&reg.CVPath, "cv", "", "optional CV PDF")
	fs.StringVar(&reg.LettrePath, "lettre", "", "optional cover letter PDF")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := a.api(nil).Register(ctx, reg)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Inscription réussie (id %d)\n", id)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	roleFlag := fs.String("role", string(user.RoleCandidate), "candidat or admin")
	email := fs.String("email", "", "email")
	password := fs.String("password", os.Getenv("STAGEPORTAL_PASSWORD"), "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	role, ok := user.ParseRole(*roleFlag)
	if !ok {
		return fmt.Errorf("unknown role %q", *roleFlag)
	}
	api := a.api(nil)
	result, err := api.Login(ctx, string(role), *email, *password)
	if err != nil {
		return err
	}
	base := a.baseURL
	if base == "" {
		base = defaultAPI
	}
	session, err := console.NewSession(base, result, a.now())
	if err != nil {
		return err
	}
	if err := a.sessions.Save(session); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Connecté en tant que %s (%s)\n", session.Profile.Email, session.Role)
	return nil
}

func (a *app) logout(_ context.Context, _ []string) error {
	if err := a.sessions.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Déconnecté")
	return nil
}

func (a *app) whoami(_ context.Context, _ []string) error {
	session, err := a.requireSession("")
	if err != nil {
		return err
	}
	p := session.Profile
	name := strings.TrimSpace(p.Prenom + " " + p.Nom)
	fmt.Fprintf(a.stdout, "%s <%s>\nrole: %s\nexpire: %s\n", name, p.Email, session.Role, session.ExpiresAt.Local().Format("2006-01-02 15:04"))
	if session.Role == user.RoleCandidate {
		fmt.Fprintf(a.stdout, "%s, %s, %s\n", p.Etablissement, p.Domaine, p.Niveau)
	}
	return nil
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := a.flags("submit")
	var sub client.Submission
	fs.StringVar(&sub.Domaine, "domaine", "", "target domain")
	fs.StringVar(&sub.Etablissement, "etablissement", "", "school")
	fs.StringVar(&sub.Niveau, "niveau", "", "study level")
	fs.StringVar(&sub.Description, "description", "", "optional note")
	fs.StringVar(&sub.CVPath, "cv", "", "CV PDF")
	fs.StringVar(&sub.LettrePath, "lettre", "", "cover letter PDF")
	if err := fs.Parse(args); err != nil {
		return err
	}
	session, err := a.requireSession(user.RoleCandidate)
	if err != nil {
		return err
	}
	if sub.Domaine == "" {
		sub.Domaine = session.Profile.Domaine
	}
	if sub.Etablissement == "" {
		sub.Etablissement = session.Profile.Etablissement
	}
	if sub.Niveau == "" {
		sub.Niveau = session.Profile.Niveau
	}
	id, err := a.api(session).Submit(ctx, sub)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Demande %d soumise, analyse en cours\n", id)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := a.flags("list")
	var opts console.Options
	fs.StringVar(&opts.Statut, "statut", "", "filter by status")
	fs.StringVar(&opts.Domaine, "domaine", "", "filter by domain (admin)")
	fs.IntVar(&opts.Page, "page", 0, "page number (admin)")
	fs.IntVar(&opts.Limit, "limit", 0, "page size (admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	session, err := a.requireSession("")
	if err != nil {
		return err
	}
	view, err := console.ViewFor(session.Role)
	if err != nil {
		return err
	}
	return view.Dashboard(ctx, a.stdout, a.api(session), opts)
}

func (a *app) decide(ctx context.Context, args []string) error {
	fs := a.flags("decide")
	decisionFlag := fs.String("decision", "", "En attente, Accepté or Rejeté (english names accepted)")
	reason := fs.String("reason", "", "rejection reason")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: stagectl decide <id> --decision <value> [--reason text]")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid application id %q", fs.Arg(0))
	}
	decision, ok := application.ParseDecision(*decisionFlag)
	if !ok {
		return fmt.Errorf("invalid decision %q", *decisionFlag)
	}
	session, err := a.requireSession(user.RoleAdmin)
	if err != nil {
		return err
	}
	if err := a.api(session).Decide(ctx, id, string(decision), *reason); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Demande %d: %s\n", id, console.Badge(string(decision)))
	return nil
}

func (a *app) download(ctx context.Context, args []string) error {
	fs := a.flags("download")
	output := fs.StringP("output", "o", "", "destination file (default: reference name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: stagectl download <ref> [-o file]")
	}
	ref := fs.Arg(0)
	dest := *output
	if dest == "" {
		dest = path.Base(ref)
	}
	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	session, _ := a.sessions.Load()
	n, err := a.api(session).Download(ctx, ref, file)
	closeErr := file.Close()
	if err != nil {
		_ = os.Remove(dest)
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", dest, closeErr)
	}
	fmt.Fprintf(a.stdout, "%s (%d octets)\n", dest, n)
	return nil
}
