package model

type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleAdmin         Role = "admin"
	RoleChefPole      Role = "chef_pole"
	RoleMembre        Role = "membre"
	RoleStagiaire     Role = "stagiaire"
	RoleCollaborateur Role = "collaborateur"
	RoleArtiste       Role = "artiste"
	RoleClient        Role = "client"
	RolePartenaire    Role = "partenaire"
)

var Roles = []Role{
	RoleSuperAdmin,
	RoleAdmin,
	RoleChefPole,
	RoleMembre,
	RoleStagiaire,
	RoleCollaborateur,
	RoleArtiste,
	RoleClient,
	RolePartenaire,
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

type ProjectStatus string

const (
	ProjectBrouillon  ProjectStatus = "brouillon"
	ProjectEnAttente  ProjectStatus = "en_attente"
	ProjectEnCours    ProjectStatus = "en_cours"
	ProjectEnRevision ProjectStatus = "en_revision"
	ProjectTermine    ProjectStatus = "termine"
	ProjectAnnule     ProjectStatus = "annule"
)

// ProjectStatuses lists every project status in workflow order.
var ProjectStatuses = []ProjectStatus{
	ProjectBrouillon,
	ProjectEnAttente,
	ProjectEnCours,
	ProjectEnRevision,
	ProjectTermine,
	ProjectAnnule,
}

func (s ProjectStatus) Valid() bool {
	for _, known := range ProjectStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type ProjectType string

const (
	TypeFilm             ProjectType = "film"
	TypeCourtMetrage     ProjectType = "court_metrage"
	TypeWebSerie         ProjectType = "web_serie"
	TypeEvent            ProjectType = "event"
	TypeAtelierAnimation ProjectType = "atelier_animation"
	TypeMusique          ProjectType = "musique"
	TypeAutre            ProjectType = "autre"
)

type ChefProjetStatus string

const (
	ChefProjetPending  ChefProjetStatus = "pending"
	ChefProjetAccepted ChefProjetStatus = "accepted"
	ChefProjetDeclined ChefProjetStatus = "declined"
)

type TaskStatus string

const (
	TaskAFaire  TaskStatus = "a_faire"
	TaskEnCours TaskStatus = "en_cours"
	TaskTermine TaskStatus = "termine"
)

var TaskStatuses = []TaskStatus{TaskAFaire, TaskEnCours, TaskTermine}

func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityBasse   Priority = "basse"
	PriorityNormale Priority = "normale"
	PriorityHaute   Priority = "haute"
	PriorityUrgente Priority = "urgente"
)

var Priorities = []Priority{PriorityBasse, PriorityNormale, PriorityHaute, PriorityUrgente}

func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

type DocumentType string

const (
	DocumentScenario    DocumentType = "scenario"
	DocumentContrat     DocumentType = "contrat"
	DocumentBudget      DocumentType = "budget"
	DocumentPlanning    DocumentType = "planning"
	DocumentBrief       DocumentType = "brief"
	DocumentMoodboard   DocumentType = "moodboard"
	DocumentRushFootage DocumentType = "rush_footage"
	DocumentMontage     DocumentType = "montage"
	DocumentExportFinal DocumentType = "export_final"
	DocumentMedia       DocumentType = "media"
	DocumentPresskit    DocumentType = "presskit"
	DocumentAutre       DocumentType = "autre"
)
