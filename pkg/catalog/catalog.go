// Package catalog maps enum values to display labels and colors.
//
// Lookups never fail: unknown keys come back with the raw value as label and
// NeutralColor, since the server may add values before clients learn them.
package catalog

import "github.com/geniusharmony/harmony/pkg/model"

const NeutralColor = "#9ca3af"

type Entry struct {
	Key   string
	Label string
	Color string
}

type table map[string]Entry

func (t table) lookup(key string) Entry {
	if entry, ok := t[key]; ok {
		return entry
	}
	return Entry{Key: key, Label: key, Color: NeutralColor}
}

func build(labels map[string]string, colors map[string]string) table {
	out := make(table, len(labels))
	for key, label := range labels {
		color, ok := colors[key]
		if !ok {
			color = NeutralColor
		}
		out[key] = Entry{Key: key, Label: label, Color: color}
	}
	return out
}

var projectStatuts = build(map[string]string{
	"brouillon":   "Brouillon",
	"en_attente":  "En attente",
	"en_cours":    "En cours",
	"en_revision": "En révision",
	"termine":     "Terminé",
	"annule":      "Annulé",
}, map[string]string{
	"brouillon":   "#c4b5fd",
	"en_attente":  "#f59e0b",
	"en_cours":    "#7c3aed",
	"en_revision": "#a78bfa",
	"termine":     "#10b981",
	"annule":      "#f87171",
})

var taskStatuts = build(map[string]string{
	"a_faire":  "À faire",
	"en_cours": "En cours",
	"termine":  "Terminé",
}, map[string]string{
	"a_faire":  "#95a5a6",
	"en_cours": "#3498db",
	"termine":  "#27ae60",
})

var priorites = build(map[string]string{
	"basse":   "Basse",
	"normale": "Normale",
	"haute":   "Haute",
	"urgente": "Urgente",
}, map[string]string{
	"basse":   "#c4b5fd",
	"normale": "#7c3aed",
	"haute":   "#f59e0b",
	"urgente": "#f87171",
})

var projectTypes = build(map[string]string{
	"film":              "Film",
	"court_metrage":     "Court métrage",
	"web_serie":         "Web série",
	"event":             "Event",
	"atelier_animation": "Atelier/Animation",
	"musique":           "Musique",
	"autre":             "Autre",
}, nil)

var documentTypes = build(map[string]string{
	"scenario":     "Scénario",
	"contrat":      "Contrat",
	"budget":       "Budget",
	"planning":     "Planning",
	"brief":        "Brief",
	"moodboard":    "Moodboard",
	"rush_footage": "Rush/Footage",
	"montage":      "Montage",
	"export_final": "Export final",
	"media":        "Media",
	"presskit":     "Presskit",
	"autre":        "Autre",
}, nil)

var roleLabels = build(map[string]string{
	"super_admin":   "Super Administrateur",
	"admin":         "Administrateur",
	"chef_pole":     "Chef de Pôle",
	"membre":        "Membre",
	"stagiaire":     "Stagiaire",
	"collaborateur": "Collaborateur",
	"artiste":       "Artiste",
	"client":        "Client",
	"partenaire":    "Partenaire",
}, nil)

var chefProjetStatuts = build(map[string]string{
	"pending":  "En attente",
	"accepted": "Accepté",
	"declined": "Refusé",
}, map[string]string{
	"pending":  "#f59e0b",
	"accepted": "#10b981",
	"declined": "#f87171",
})

func ProjectStatus(s model.ProjectStatus) Entry { return projectStatuts.lookup(string(s)) }

func TaskStatus(s model.TaskStatus) Entry { return taskStatuts.lookup(string(s)) }

func Priority(p model.Priority) Entry { return priorites.lookup(string(p)) }

func ProjectType(t model.ProjectType) Entry { return projectTypes.lookup(string(t)) }

func DocumentType(t model.DocumentType) Entry { return documentTypes.lookup(string(t)) }

func Role(r model.Role) Entry { return roleLabels.lookup(string(r)) }

func ChefProjetStatus(s model.ChefProjetStatus) Entry { return chefProjetStatuts.lookup(string(s)) }
