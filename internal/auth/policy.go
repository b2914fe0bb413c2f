package auth

import "github.com/deskline/helpdesk/internal/domain"

// CanViewTicket allows staff and the ticket's creator.
func CanViewTicket(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil || ticket == nil {
		return false
	}
	if user.IsInternal() {
		return true
	}
	return user.ID == ticket.CreatorID
}

// CanMutateTicket allows only staff to update, delete, assign, return or close.
func CanMutateTicket(user *domain.User) bool {
	return user.IsInternal()
}

// CanViewMessage layers the internal-note gate on top of ticket visibility.
// ticket must be the message's parent.
func CanViewMessage(user *domain.User, ticket *domain.Ticket, message *domain.Message) bool {
	if message == nil || !CanViewTicket(user, ticket) {
		return false
	}
	if user.IsInternal() {
		return true
	}
	return !message.IsInternal
}
