package authz

import "github.com/geniusharmony/harmony/pkg/model"

// Full-access roles may set any project status, in any order.
var fullStatuts = []model.ProjectStatus{
	model.ProjectBrouillon,
	model.ProjectEnAttente,
	model.ProjectEnCours,
	model.ProjectEnRevision,
	model.ProjectTermine,
	model.ProjectAnnule,
}

// A chef de projet may only move a project toward completion or cancellation.
var chefProjetStatuts = []model.ProjectStatus{
	model.ProjectEnRevision,
	model.ProjectTermine,
	model.ProjectAnnule,
}

var statutWorkflow = map[model.ProjectStatus]model.ProjectStatus{
	model.ProjectBrouillon:  model.ProjectEnAttente,
	model.ProjectEnAttente:  model.ProjectEnCours,
	model.ProjectEnCours:    model.ProjectEnRevision,
	model.ProjectEnRevision: model.ProjectTermine,
}

// Projects in these statuses are only visible to admins and their creator.
var privateStatuts = map[model.ProjectStatus]struct{}{
	model.ProjectBrouillon: {},
	model.ProjectEnAttente: {},
}

func AllStatuts() []model.ProjectStatus {
	return cloneStatuts(fullStatuts)
}

func ChefProjetStatuts() []model.ProjectStatus {
	return cloneStatuts(chefProjetStatuts)
}

// NextStatut suggests the next workflow step; terminal statuses are returned unchanged.
func NextStatut(current model.ProjectStatus) model.ProjectStatus {
	if next, ok := statutWorkflow[current]; ok {
		return next
	}
	return current
}

// InitialStatut adjusts the status requested at creation time: admins skip
// the draft and waiting stages.
func InitialStatut(user *model.User, requested model.ProjectStatus) model.ProjectStatus {
	if user == nil || !isAdmin(user) {
		return requested
	}
	if _, private := privateStatuts[requested]; private {
		return model.ProjectEnCours
	}
	return requested
}

func cloneStatuts(in []model.ProjectStatus) []model.ProjectStatus {
	out := make([]model.ProjectStatus, len(in))
	copy(out, in)
	return out
}

func containsStatut(list []model.ProjectStatus, s model.ProjectStatus) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
