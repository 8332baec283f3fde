package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/storage"
)

// maxMessageLen bounds the chat body in runes, not bytes, so CJK text
// gets the same budget as ASCII.
const maxMessageLen = 2000

// ChatService handles the per-reservation chat room: sending,
// history paging and read cursors.  Message sequence numbers are
// assigned inside the transaction, so the stored order is the one
// subscribers observe.
type ChatService struct {
	store storage.Store
	ch    Channel
}

func NewChatService(store storage.Store, ch Channel) *ChatService {
	if store == nil || ch == nil {
		panic("nil dependency passed to NewChatService")
	}
	return &ChatService{store: store, ch: ch}
}

// Authorize reports whether the user may subscribe to the room.
func (s *ChatService) Authorize(ctx context.Context, roomID, userID uint64) error {
	ok, err := s.store.HasActiveMembership(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}

// Send stores the message and fans it out.  Everyone currently
// subscribed to the room had the message on screen immediately, so
// their read cursors advance to the new sequence in the same
// transaction; offline members accumulate unread count instead.
func (s *ChatService) Send(ctx context.Context, roomID, senderID uint64, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrMessageEmpty
	}
	if utf8.RuneCountInString(body) > maxMessageLen {
		return nil, ErrMessageTooLong
	}
	present := s.ch.Present(roomID)
	var msg *model.Message
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		m, err := tx.GetMembership(ctx, roomID, senderID)
		if err != nil {
			if errors.Is(err, storage.ErrMembershipNotFound) {
				return ErrNotParticipant
			}
			return err
		}
		if m.Kicked {
			return ErrNotParticipant
		}
		seq, err := tx.NextMessageSeq(ctx, roomID)
		if err != nil {
			return err
		}
		sender := senderID
		msg = &model.Message{
			RoomID:    roomID,
			Seq:       seq,
			SenderID:  &sender,
			Body:      body,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return err
		}
		if err := tx.AdvanceReadCursor(ctx, roomID, senderID, seq); err != nil {
			return err
		}
		for _, uid := range present {
			if uid == senderID {
				continue
			}
			if err := tx.AdvanceReadCursor(ctx, roomID, uid, seq); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.ch.Publish(roomID, EventMessage, messageEvent(msg))
	return msg, nil
}

// MarkRead moves the user's cursor to the newest message and returns
// the sequence it landed on.  The cursor never moves backwards.
func (s *ChatService) MarkRead(ctx context.Context, roomID, userID uint64) (uint64, error) {
	if err := s.Authorize(ctx, roomID, userID); err != nil {
		return 0, err
	}
	var seq uint64
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		seq, err = tx.MaxMessageSeq(ctx, roomID)
		if err != nil {
			return err
		}
		if seq == 0 {
			return nil
		}
		return tx.AdvanceReadCursor(ctx, roomID, userID, seq)
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// History returns up to limit messages with Seq > afterSeq in
// ascending order.  Passing afterSeq=0 starts from the beginning.
func (s *ChatService) History(ctx context.Context, roomID, userID, afterSeq uint64, limit int) ([]model.Message, error) {
	if err := s.Authorize(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, roomID, afterSeq, limit)
}

// Unread returns how many messages the user has not read yet.
func (s *ChatService) Unread(ctx context.Context, roomID, userID uint64) (uint64, error) {
	if err := s.Authorize(ctx, roomID, userID); err != nil {
		return 0, err
	}
	cursor, err := s.store.GetReadCursor(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	max, err := s.store.MaxMessageSeq(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if max <= cursor {
		return 0, nil
	}
	return max - cursor, nil
}
