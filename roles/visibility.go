package roles

import (
	"github.com/wfunc/changeling/models"
)

// VisibleRole is the role of subject as shown to recipient. Changelings are
// revealed only to other changelings; everyone else sees them as innocent.
func VisibleRole(room *models.Room, recipientID string, subject *models.User) models.Role {
	if subject.Role != models.RoleChangeling {
		return subject.Role
	}
	if room.IsChangeling(recipientID) {
		return models.RoleChangeling
	}
	return models.RoleInnocent
}

// PlayerData builds the record of subject addressed to recipient.
func PlayerData(room *models.Room, recipientID string, subject *models.User) models.PlayerData {
	return models.PlayerData{
		UserID:       subject.ID,
		Name:         subject.Username,
		PortraitName: subject.PortraitName,
		PlayerRole:   VisibleRole(room, recipientID, subject),
		Admin:        room.Admin == subject.ID,
		IsYou:        recipientID == subject.ID,
		Burned:       subject.Burned,
	}
}
