package projects

import "github.com/anoixa/yolo-annotator/database/models"

// CanAccess 管理员、创建者或已分配用户可以访问项目及其下的图片与标注
func CanAccess(user *models.User, project *models.Project) bool {
	if user == nil || project == nil {
		return false
	}
	if user.IsAdmin() || project.CreatedBy == user.ID {
		return true
	}
	return project.HasMember(user.ID)
}

// CanManage 只有管理员和创建者可以修改或删除项目
func CanManage(user *models.User, project *models.Project) bool {
	if user == nil || project == nil {
		return false
	}
	return user.IsAdmin() || project.CreatedBy == user.ID
}
