package authz

import (
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/roles"
)

func isAdmin(user *model.User) bool {
	return roles.Classify(user).IsAdmin
}

func isSuperAdmin(user *model.User) bool {
	return roles.Classify(user).IsSuperAdmin
}

// isRoleChefPole ignores poles entirely; task creation relies on it.
func isRoleChefPole(user *model.User) bool {
	return roles.Classify(user).IsChefPole
}

func isCreator(user *model.User, project *model.Project) bool {
	return project.CreatedBy == user.ID
}

// isPoleChef requires both poles to be set and equal.
func isPoleChef(user *model.User, project *model.Project) bool {
	if !isRoleChefPole(user) || user.Pole == nil || project.Pole == nil {
		return false
	}
	return *user.Pole == *project.Pole
}

// isChefProjet ignores chef_projet_status.
func isChefProjet(user *model.User, project *model.Project) bool {
	return project.ChefProjet != nil && *project.ChefProjet == user.ID
}

func isAcceptedChefProjet(user *model.User, project *model.Project) bool {
	return isChefProjet(user, project) && project.ChefProjetStatus == model.ChefProjetAccepted
}

func isClient(user *model.User, project *model.Project) bool {
	return project.Client != nil && *project.Client == user.ID
}
