package services

import (
	"errors"
	"strings"

	"github.com/jackma2003/JackStack/constants"
	"github.com/jackma2003/JackStack/models"
	"github.com/jackma2003/JackStack/notify"
	"gorm.io/gorm"
)

// FriendService owns the friend-request lifecycle and the symmetric
// friends relation. Notifications are fire-and-forget: an offline peer
// is never an error.
type FriendService struct {
	DB       *gorm.DB
	Notifier notify.Notifier
}

func NewFriendService(db *gorm.DB, n notify.Notifier) *FriendService {
	return &FriendService{DB: db, Notifier: n}
}

const searchLimit = 10

// SendRequest creates a pending request from sender to receiver. At most
// one pending request may exist per user pair, in either direction.
func (s *FriendService) SendRequest(senderID, receiverID uint) (*models.FriendRequest, error) {
	if senderID == receiverID {
		return nil, conflict("You cannot send a friend request to yourself")
	}

	sender, err := s.loadUser(senderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadUser(receiverID); err != nil {
		return nil, err
	}

	var existing models.FriendRequest
	err = s.DB.Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		senderID, receiverID, receiverID, senderID,
	).Where("status = ?", constants.FriendRequestPending).First(&existing).Error
	switch {
	case err == nil:
		if existing.SenderID == senderID {
			return nil, conflict("You already sent a friend request to this user")
		}
		return nil, conflict("This user has already sent you a friend request")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, storeErr(err)
	}

	friends, err := s.areFriends(senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, conflict("You are already friends with this user")
	}

	request := models.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     constants.FriendRequestPending,
	}
	if err := s.DB.Create(&request).Error; err != nil {
		return nil, storeErr(err)
	}

	s.Notifier.Notify(receiverID, "friendRequest", map[string]any{
		"request_id": request.ID,
		"sender":     sender.Public(),
	})
	return &request, nil
}

// Respond resolves a pending request. Only the receiver may act, and a
// resolved request never transitions again. Acceptance writes both sides
// of the friendship in one transaction.
func (s *FriendService) Respond(requestID, actorID uint, decision string) error {
	if decision != constants.FriendRequestAccepted && decision != constants.FriendRequestRejected {
		return invalid("Decision must be accepted or rejected")
	}

	var request models.FriendRequest
	if err := s.DB.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("Request not found")
		}
		return storeErr(err)
	}
	if request.ReceiverID != actorID {
		return forbidden("Only the receiver can respond to this request")
	}
	if request.Status != constants.FriendRequestPending {
		return conflict("Request already resolved")
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Guard against a concurrent response: only flip a still-pending row.
		res := tx.Model(&models.FriendRequest{}).
			Where("id = ? AND status = ?", requestID, constants.FriendRequestPending).
			Update("status", decision)
		if res.Error != nil {
			return storeErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return conflict("Request already resolved")
		}

		if decision != constants.FriendRequestAccepted {
			return nil
		}

		sender := models.User{ID: request.SenderID}
		receiver := models.User{ID: request.ReceiverID}
		if err := tx.Model(&sender).Association("Friends").Append(&models.User{ID: request.ReceiverID}); err != nil {
			return storeErr(err)
		}
		if err := tx.Model(&receiver).Association("Friends").Append(&models.User{ID: request.SenderID}); err != nil {
			return storeErr(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if decision == constants.FriendRequestAccepted {
		receiver, err := s.loadUser(request.ReceiverID)
		if err == nil {
			s.Notifier.Notify(request.SenderID, "friendRequestAccepted", map[string]any{
				"request_id": request.ID,
				"friend":     receiver.Public(),
			})
		}
	}
	return nil
}

// CancelRequest lets the sender withdraw their own pending request.
func (s *FriendService) CancelRequest(requestID, actorID uint) error {
	var request models.FriendRequest
	if err := s.DB.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("Request not found")
		}
		return storeErr(err)
	}
	if request.SenderID != actorID {
		return forbidden("Only the sender can cancel this request")
	}
	if request.Status != constants.FriendRequestPending {
		return conflict("Request already resolved")
	}
	return storeErr(s.DB.Delete(&request).Error)
}

// ListPendingRequests returns the actor's incoming pending requests,
// oldest first, with the sender resolved for display.
func (s *FriendService) ListPendingRequests(actorID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := s.DB.Preload("Sender").
		Where("receiver_id = ? AND status = ?", actorID, constants.FriendRequestPending).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return requests, nil
}

func (s *FriendService) ListFriends(actorID uint) ([]models.PublicUser, error) {
	user, err := s.loadUser(actorID)
	if err != nil {
		return nil, err
	}
	var friends []models.User
	if err := s.DB.Model(user).Association("Friends").Find(&friends); err != nil {
		return nil, storeErr(err)
	}
	out := make([]models.PublicUser, 0, len(friends))
	for i := range friends {
		out = append(out, friends[i].Public())
	}
	return out, nil
}

// RemoveFriend deletes both directions of the friendship. Removing a
// friendship that does not exist is a successful no-op.
func (s *FriendService) RemoveFriend(actorID, friendID uint) error {
	if _, err := s.loadUser(friendID); err != nil {
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.User{ID: actorID}).
			Association("Friends").Delete(&models.User{ID: friendID})
		if err != nil {
			return storeErr(err)
		}
		err = tx.Model(&models.User{ID: friendID}).
			Association("Friends").Delete(&models.User{ID: actorID})
		return storeErr(err)
	})
}

// SearchUsers matches username or email case-insensitively, excluding
// the actor, capped at 10 results.
func (s *FriendService) SearchUsers(actorID uint, query string) ([]models.PublicUser, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.PublicUser{}, nil
	}
	pattern := "%" + strings.ToLower(query) + "%"

	var users []models.User
	err := s.DB.
		Where("id <> ?", actorID).
		Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern).
		Limit(searchLimit).
		Find(&users).Error
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]models.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}

func (s *FriendService) areFriends(a, b uint) (bool, error) {
	var n int64
	err := s.DB.Table("user_friends").
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&n).Error
	if err != nil {
		return false, storeErr(err)
	}
	return n > 0, nil
}

func (s *FriendService) loadUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("User not found")
		}
		return nil, storeErr(err)
	}
	return &user, nil
}
