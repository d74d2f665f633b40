package user

import (
	"strings"
	"time"
)

type Role string

const (
	RoleCandidate Role = "candidat"
	RoleAdmin     Role = "admin"
)

// ParseRole accepts the wire values plus their english aliases.
func ParseRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "candidat", "candidate":
		return RoleCandidate, true
	case "admin", "staff":
		return RoleAdmin, true
	default:
		return "", false
	}
}

type Candidate struct {
	ID            int64
	Nom           string
	Prenom        string
	Email         string
	PasswordHash  string
	Telephone     string
	Adresse       string
	Etablissement string
	Domaine       string
	Niveau        string
	CVRef         string
	LetterRef     string
	CreatedAt     time.Time
}

func (c Candidate) DisplayName() string {
	return strings.TrimSpace(c.Prenom + " " + c.Nom)
}

type Admin struct {
	ID           int64
	Nom          string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
