package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type (
	UserID         int64
	PoleID         int64
	ProjectID      int64
	TaskID         int64
	DocumentID     int64
	NotificationID int64
)

type User struct {
	ID        UserID  `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email,omitempty"`
	FirstName string  `json:"first_name,omitempty"`
	LastName  string  `json:"last_name,omitempty"`
	Role      Role    `json:"role"`
	Pole      *PoleID `json:"pole"`
	PoleName  string  `json:"pole_name,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate session state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Pole != nil {
		pole := *u.Pole
		c.Pole = &pole
	}
	return &c
}

type Project struct {
	ID               ProjectID        `json:"id"`
	Titre            string           `json:"titre"`
	Description      string           `json:"description,omitempty"`
	Type             ProjectType      `json:"type"`
	Statut           ProjectStatus    `json:"statut"`
	Pole             *PoleID          `json:"pole"`
	CreatedBy        UserID           `json:"created_by"`
	ChefProjet       *UserID          `json:"chef_projet"`
	ChefProjetStatus ChefProjetStatus `json:"chef_projet_status,omitempty"`
	Client           *UserID          `json:"client"`
	Membres          []UserID         `json:"membres"`
	DateDebut        *Date            `json:"date_debut,omitempty"`
	DateFin          *Date            `json:"date_fin,omitempty"`
}

func (p *Project) HasMembre(id UserID) bool {
	if p == nil {
		return false
	}
	for _, m := range p.Membres {
		if m == id {
			return true
		}
	}
	return false
}

// NormalizeMembres drops duplicate member ids, keeping first occurrence order.
func (p *Project) NormalizeMembres() {
	if p == nil || len(p.Membres) == 0 {
		return
	}
	seen := make(map[UserID]struct{}, len(p.Membres))
	out := p.Membres[:0]
	for _, m := range p.Membres {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	p.Membres = out
}

type Task struct {
	ID          TaskID     `json:"id"`
	Projet      ProjectID  `json:"projet"`
	Titre       string     `json:"titre"`
	Description string     `json:"description,omitempty"`
	Statut      TaskStatus `json:"statut"`
	Priorite    Priority   `json:"priorite"`
	AssigneA    []UserID   `json:"assigne_a"`
	Deadline    *Date      `json:"deadline"`
}

func (t *Task) IsAssigned(id UserID) bool {
	if t == nil {
		return false
	}
	for _, a := range t.AssigneA {
		if a == id {
			return true
		}
	}
	return false
}

type Pole struct {
	ID          PoleID  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Chef        *UserID `json:"chef"`
}

type Document struct {
	ID         DocumentID   `json:"id"`
	Titre      string       `json:"titre"`
	Type       DocumentType `json:"type"`
	Projet     *ProjectID   `json:"projet"`
	UploadePar UserID       `json:"uploade_par"`
	Fichier    string       `json:"fichier,omitempty"`
	DateAdded  time.Time    `json:"date_upload"`
}

type Notification struct {
	ID        NotificationID `json:"id"`
	Type      string         `json:"type"`
	Titre     string         `json:"titre"`
	Message   string         `json:"message"`
	IsRead    bool           `json:"is_read"`
	ReadAt    *time.Time     `json:"read_at"`
	Tache     *TaskID        `json:"tache"`
	Projet    *ProjectID     `json:"projet"`
	CreatedAt time.Time      `json:"created_at"`
}

const dateLayout = "2006-01-02"

// Date is a calendar day encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		d.Time = time.Time{}
		return nil
	}
	// the backend sometimes serializes deadlines as full datetimes
	if len(raw) > len(dateLayout) {
		raw = raw[:len(dateLayout)]
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return fmt.Errorf("model: invalid date %q: %w", raw, err)
	}
	d.Time = parsed
	return nil
}
