package console

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"stageportal/internal/client"
	"stageportal/internal/domain/application"
	"stageportal/internal/domain/user"
)

// API is the slice of the portal client the dashboards read from.
type API interface {
	MyApplications(ctx context.Context) ([]client.Application, error)
	ReviewList(ctx context.Context, query client.ReviewQuery) (*client.ReviewPage, error)
}

type Options struct {
	Statut  string
	Domaine string
	Page    int
	Limit   int
}

// View renders the dashboard of one role.
type View interface {
	Dashboard(ctx context.Context, w io.Writer, api API, opts Options) error
}

func ViewFor(role user.Role) (View, error) {
	switch role {
	case user.RoleCandidate:
		return CandidateView{}, nil
	case user.RoleAdmin:
		return StaffView{}, nil
	default:
		return nil, fmt.Errorf("no view for role %q", role)
	}
}

var (
	acceptedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	rejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	headingStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

func Badge(statut string) string {
	switch application.Decision(statut) {
	case application.DecisionAccepted:
		return acceptedStyle.Render(statut)
	case application.DecisionRejected:
		return rejectedStyle.Render(statut)
	default:
		return pendingStyle.Render(statut)
	}
}

// StatusCounts tallies applications per status in wire order.
type StatusCounts struct {
	Pending  int
	Accepted int
	Rejected int
}

func (c *StatusCounts) add(statut string) {
	switch application.Decision(statut) {
	case application.DecisionAccepted:
		c.Accepted++
	case application.DecisionRejected:
		c.Rejected++
	default:
		c.Pending++
	}
}

func (c StatusCounts) String() string {
	return fmt.Sprintf("%s %d   %s %d   %s %d",
		Badge(string(application.DecisionPending)), c.Pending,
		Badge(string(application.DecisionAccepted)), c.Accepted,
		Badge(string(application.DecisionRejected)), c.Rejected,
	)
}

type CandidateView struct{}

func (CandidateView) Dashboard(ctx context.Context, w io.Writer, api API, opts Options) error {
	items, err := api.MyApplications(ctx)
	if err != nil {
		return err
	}
	var counts StatusCounts
	filtered := make([]client.Application, 0, len(items))
	for _, item := range items {
		counts.add(item.Statut)
		if opts.Statut != "" && item.Statut != opts.Statut {
			continue
		}
		filtered = append(filtered, item)
	}

	fmt.Fprintln(w, headingStyle.Render("Mes demandes de stage"))
	fmt.Fprintln(w, counts.String())
	fmt.Fprintln(w)
	if len(filtered) == 0 {
		fmt.Fprintln(w, "Aucune demande.")
		return nil
	}
	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "ID\tDEPOT\tDOMAINE\tSTATUT\tSCORE\tANALYSE\tMOTIF\n")
	for _, item := range filtered {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.IDDemande,
			formatDate(item.DateDepot),
			item.Domaine,
			item.Statut,
			formatScore(item.ScoreML),
			item.ScoringStatus,
			deref(item.MotifRejet),
		)
	}
	return writer.Flush()
}

type StaffView struct{}

func (StaffView) Dashboard(ctx context.Context, w io.Writer, api API, opts Options) error {
	page, err := api.ReviewList(ctx, client.ReviewQuery{
		Statut:  opts.Statut,
		Domaine: opts.Domaine,
		Page:    opts.Page,
		Limit:   opts.Limit,
	})
	if err != nil {
		return err
	}
	var counts StatusCounts
	for _, item := range page.Demandes {
		counts.add(item.Statut)
	}

	fmt.Fprintln(w, headingStyle.Render("Demandes a examiner"))
	fmt.Fprintf(w, "page %d/%d, %d demandes au total\n", page.Pagination.Page, max(page.Pagination.TotalPages, 1), page.Pagination.Total)
	fmt.Fprintln(w, counts.String())
	fmt.Fprintln(w)
	if len(page.Demandes) == 0 {
		fmt.Fprintln(w, "Aucune demande.")
		return nil
	}
	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "ID\tCANDIDAT\tEMAIL\tDOMAINE\tNIVEAU\tSTATUT\tSCORE\tEXP\tCOMPETENCES\n")
	for _, item := range page.Demandes {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.IDDemande,
			strings.TrimSpace(item.Prenom+" "+item.Nom),
			item.Email,
			item.Domaine,
			item.Niveau,
			item.Statut,
			formatScore(item.ScoreML),
			formatExperience(item.ExperienceML),
			strings.Join(item.CompetencesML, ", "),
		)
	}
	return writer.Flush()
}

func formatDate(raw string) string {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return parsed.Local().Format("2006-01-02 15:04")
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score*100, 'f', 0, 64) + "%"
}

func formatExperience(years *int) string {
	if years == nil {
		return "-"
	}
	return strconv.Itoa(*years) + " ans"
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
