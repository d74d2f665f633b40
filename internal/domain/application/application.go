package application

import (
	"strings"
	"time"
)

// Decision is both the lifecycle status and the staff decision of an application.
type Decision string

const (
	DecisionPending  Decision = "En attente"
	DecisionAccepted Decision = "Accepté"
	DecisionRejected Decision = "Rejeté"
)

// ParseDecision accepts the exact wire values and their english names.
func ParseDecision(value string) (Decision, bool) {
	trimmed := strings.TrimSpace(value)
	switch Decision(trimmed) {
	case DecisionPending, DecisionAccepted, DecisionRejected:
		return Decision(trimmed), true
	}
	switch strings.ToLower(trimmed) {
	case "pending":
		return DecisionPending, true
	case "accepted":
		return DecisionAccepted, true
	case "rejected":
		return DecisionRejected, true
	}
	return "", false
}

type ScoringStatus string

const (
	ScoringNotStarted ScoringStatus = "not_started"
	ScoringPending    ScoringStatus = "pending"
	ScoringDone       ScoringStatus = "done"
	ScoringFailed     ScoringStatus = "failed"
)

type Application struct {
	ID            int64
	CandidateID   int64
	SubmittedAt   time.Time
	Status        Decision
	Decision      *Decision
	RejectReason  *string
	CVRef         string
	LetterRef     string
	Domaine       string
	Etablissement string
	Niveau        string
	Description   string
	Score         *float64
	Experience    *int
	Skills        []string
	ScoringStatus ScoringStatus
	ScoringError  string
	ScoredAt      *time.Time
}

// CandidateSummary is the slice of the candidate record shown to reviewers.
type CandidateSummary struct {
	ID        int64
	Nom       string
	Prenom    string
	Email     string
	Telephone string
}

type ReviewItem struct {
	Application
	Candidate CandidateSummary
}

type Filter struct {
	Status  Decision
	Domaine string
}

type Page struct {
	Items      []ReviewItem
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// TotalPages is ceil(total/limit), zero for an empty result.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
