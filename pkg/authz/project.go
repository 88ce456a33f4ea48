package authz

import (
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/roles"
)

// ProjectPermissions is what the current user may do with one project.
// Delete is reserved to super admins; the other capabilities OR together
// every relationship the user has with the project.
type ProjectPermissions struct {
	CanChangeStatut  bool
	CanManageMembres bool
	CanEditProjet    bool
	CanDeleteProjet  bool
	AvailableStatuts []model.ProjectStatus

	IsAdmin      bool
	IsSuperAdmin bool
	IsCreator    bool
	IsChefPole   bool
	IsChefProjet bool
}

// ResolveProject computes the permissions of user on project. A nil user or
// project (still loading) yields no capabilities and an empty status list.
func ResolveProject(user *model.User, project *model.Project) ProjectPermissions {
	if user == nil || project == nil {
		return ProjectPermissions{AvailableStatuts: []model.ProjectStatus{}}
	}

	p := ProjectPermissions{
		IsAdmin:      isAdmin(user),
		IsSuperAdmin: isSuperAdmin(user),
		IsCreator:    isCreator(user, project),
		IsChefPole:   isPoleChef(user, project),
		IsChefProjet: isChefProjet(user, project),
	}

	p.CanChangeStatut = p.IsAdmin || p.IsCreator || p.IsChefPole || p.IsChefProjet
	p.CanManageMembres = p.IsAdmin || p.IsChefPole || p.IsChefProjet
	p.CanEditProjet = p.IsAdmin || p.IsCreator || p.IsChefPole
	p.CanDeleteProjet = roles.UserHas(user, roles.CapDeleteProjects)

	switch {
	case p.IsAdmin || p.IsCreator || p.IsChefPole:
		p.AvailableStatuts = AllStatuts()
	case p.IsChefProjet:
		p.AvailableStatuts = ChefProjetStatuts()
	default:
		p.AvailableStatuts = []model.ProjectStatus{}
	}

	return p
}

// CanTransition reports whether user may set project to the given status.
// There is no ordering guard beyond membership in the available list.
func CanTransition(user *model.User, project *model.Project, to model.ProjectStatus) bool {
	if !to.Valid() {
		return false
	}
	return containsStatut(ResolveProject(user, project).AvailableStatuts, to)
}

// CanViewProject mirrors the backend visibility rule: drafts and waiting
// projects are private to admins and their creator.
func CanViewProject(user *model.User, project *model.Project) bool {
	if user == nil || project == nil {
		return false
	}
	if isAdmin(user) || isCreator(user, project) {
		return true
	}
	if _, private := privateStatuts[project.Statut]; private {
		return false
	}
	if !project.Statut.Valid() {
		return false
	}
	return project.HasMembre(user.ID) ||
		isChefProjet(user, project) ||
		isClient(user, project) ||
		isPoleChef(user, project)
}

// CanCreateProject is role-only: admins and chefs de pôle.
func CanCreateProject(user *model.User) bool {
	return roles.UserHas(user, roles.CapCreateProjects)
}

// CanRespondChefProjet reports whether user may accept or decline the chef de
// projet designation; only the designee, and only while it is pending.
func CanRespondChefProjet(user *model.User, project *model.Project) bool {
	if user == nil || project == nil {
		return false
	}
	if !isChefProjet(user, project) {
		return false
	}
	return project.ChefProjetStatus == "" || project.ChefProjetStatus == model.ChefProjetPending
}
