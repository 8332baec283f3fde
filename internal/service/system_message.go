package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/storage"
)

// appendSystemMessage persists a server-authored message inside the
// caller's transaction so the message commits (or rolls back) together
// with the state change it describes.  The returned message is
// broadcast by the caller after commit.
func appendSystemMessage(ctx context.Context, tx storage.Tx, roomID uint64, body string, payload any) (*model.Message, error) {
	seq, err := tx.NextMessageSeq(ctx, roomID)
	if err != nil {
		return nil, err
	}
	m := &model.Message{
		RoomID:    roomID,
		Seq:       seq,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		s := string(raw)
		m.Payload = &s
	}
	if err := tx.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
