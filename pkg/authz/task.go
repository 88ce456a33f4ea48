package authz

import "github.com/geniusharmony/harmony/pkg/model"

type TaskPermissions struct {
	CanCreate bool
	CanManage bool
	CanDrag   bool
	CanView   bool
}

// CanCreateTask reports whether user may add tasks to project.
//
// Any chef de pôle qualifies regardless of the project's pole, unlike the
// pole-matched check used for project permissions.
func CanCreateTask(user *model.User, project *model.Project) bool {
	if user == nil || project == nil {
		return false
	}
	return isAdmin(user) ||
		isCreator(user, project) ||
		isRoleChefPole(user) ||
		isAcceptedChefProjet(user, project)
}

// CanManageTask applies the creation rules at the project level; being
// assigned to the task grants nothing here.
func CanManageTask(user *model.User, project *model.Project, task *model.Task) bool {
	if task == nil {
		return false
	}
	return CanCreateTask(user, project)
}

// CanDragTask allows status-only moves to managers and to every assignee.
func CanDragTask(user *model.User, project *model.Project, task *model.Task) bool {
	if user == nil || project == nil || task == nil {
		return false
	}
	return CanManageTask(user, project, task) || task.IsAssigned(user.ID)
}

func CanViewTask(user *model.User, project *model.Project, task *model.Task) bool {
	if user == nil || project == nil || task == nil {
		return false
	}
	if isAdmin(user) {
		return true
	}
	if isRoleChefPole(user) && user.Pole != nil {
		return isPoleChef(user, project)
	}
	return isChefProjet(user, project) ||
		project.HasMembre(user.ID) ||
		task.IsAssigned(user.ID)
}

func ResolveTask(user *model.User, project *model.Project, task *model.Task) TaskPermissions {
	return TaskPermissions{
		CanCreate: CanCreateTask(user, project),
		CanManage: CanManageTask(user, project, task),
		CanDrag:   CanDragTask(user, project, task),
		CanView:   CanViewTask(user, project, task),
	}
}
